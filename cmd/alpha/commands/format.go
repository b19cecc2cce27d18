package commands

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/wonny/alphaterminal/backend/internal/brain"
	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintHeader prints a titled block header
func PrintHeader(title string) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", title)
	PrintSeparator()
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Printf("⚠️  %s\n", message)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

var pickColumns = []string{"#", "TICKER", "SECTOR", "COMPOSITE", "EFFIC.", "QUAL.", "SENTIMENT", "ACTION"}
var pickWidths = []int{3, 8, 14, 9, 7, 5, 10, 6}

// PrintPicks prints ranked picks as a table
func PrintPicks(picks []contracts.TopPick) {
	if len(picks) == 0 {
		PrintWarning("No ranked picks")
		return
	}

	PrintTableHeader(pickColumns, pickWidths)
	for _, p := range picks {
		qual, sent, action := "-", "-", "-"
		if p.Qualitative != nil {
			qual = fmt.Sprintf("%.1f", p.Qualitative.Score)
			if p.Qualitative.DividendTrap {
				qual += "*"
			}
		}
		if p.Pending {
			qual += "?"
		}
		if p.Sentiment != nil {
			sent = string(p.Sentiment.Level)
		}
		if p.Alert != nil {
			action = string(p.Alert.Action)
		}
		PrintTableRow([]string{
			fmt.Sprintf("%d", p.Rank),
			p.Ticker,
			p.Sector,
			fmt.Sprintf("%.2f", p.CompositeScore),
			fmt.Sprintf("%.2f", p.Efficiency.Score),
			qual,
			sent,
			action,
		}, pickWidths)
	}
}

// PrintRunResult prints the outcome of a pipeline run
func PrintRunResult(r *brain.RunResult) {
	PrintHeader("Ranking Run " + r.RunID)
	PrintKeyValue("Mode", string(r.Mode), 10)
	PrintKeyValue("State", string(r.State), 10)
	PrintKeyValue("Duration", r.Duration.Round(time.Millisecond).String(), 10)
	if r.FailedStage != "" {
		PrintKeyValue("Failed at", string(r.FailedStage), 10)
	}
	PrintSeparator()

	for _, s := range r.Stages {
		mark := "✅"
		if !s.Success {
			mark = "❌"
		}
		fmt.Printf("%s %-12s in=%-4d out=%-4d %s\n", mark, s.Stage, s.InputCount, s.OutputCount, s.Duration.Round(time.Millisecond))
		if s.Error != "" {
			fmt.Printf("     %s\n", s.Error)
		}
	}
	PrintSeparator()

	sum := r.Summary
	PrintKeyValue("Ranked", fmt.Sprintf("%d", sum.Ranked), 10)
	PrintKeyValue("Reused", fmt.Sprintf("%d", sum.CacheReused), 10)
	PrintKeyValue("Analyzed", fmt.Sprintf("%d", sum.NewlyAnalyzed), 10)
	for _, f := range sum.Failed {
		PrintError(fmt.Sprintf("%s: %s", f.Ticker, f.Reason))
	}
	if len(sum.Pending) > 0 {
		PrintWarning("Pending retry: " + strings.Join(sum.Pending, ", "))
	}
	for _, w := range sum.Warnings {
		PrintWarning(w)
	}

	if r.Snapshot != nil {
		fmt.Println()
		PrintPicks(r.Snapshot.Ranking)
	}
	if r.Error != "" {
		fmt.Println()
		PrintError(r.Error)
	}
}

// PrintMacro prints a macro context
func PrintMacro(mc *contracts.MacroContext) {
	PrintHeader("Macro Context")
	PrintKeyValue("Selic", fmt.Sprintf("%.2f%%", mc.InterestRate), 12)
	PrintKeyValue("IPCA 12m", fmt.Sprintf("%.2f%%", mc.InflationRate), 12)
	PrintKeyValue("Computed", mc.ComputedAt.Format("2006-01-02 15:04:05"), 12)
	if mc.Neutral {
		PrintWarning("Provider unavailable, neutral weights")
	}
	PrintSeparator()

	PrintKeyValue("Favored", strings.Join(mc.FavoredSectors, ", "), 12)
	PrintKeyValue("Unfavored", strings.Join(mc.UnfavoredSectors, ", "), 12)
	PrintSeparator()

	for _, sector := range sortedKeys(mc.SectorWeights) {
		PrintKeyValue(sector, fmt.Sprintf("%.2f", mc.SectorWeights[sector]), 22)
	}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
