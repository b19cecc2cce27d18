package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// snapshotCmd represents the snapshot command
var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "발행된 랭킹 스냅샷 조회",
	Long: `Reads the published ranking snapshot.

Subcommands:
  show     - 전체 스냅샷
  top      - 상위 N개
  history  - 저장된 스냅샷 목록 (Postgres only)

Example:
  go run ./cmd/alpha snapshot show --json
  go run ./cmd/alpha snapshot top --limit 5`,
}

var (
	snapshotShowCmd = &cobra.Command{
		Use:   "show",
		Short: "전체 스냅샷",
		RunE:  showSnapshot,
	}

	snapshotTopCmd = &cobra.Command{
		Use:   "top",
		Short: "상위 N개",
		RunE:  showTop,
	}

	snapshotHistoryCmd = &cobra.Command{
		Use:   "history",
		Short: "저장된 스냅샷 목록",
		RunE:  showSnapshotHistory,
	}

	snapshotJSON  bool
	snapshotLimit int
)

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotShowCmd)
	snapshotCmd.AddCommand(snapshotTopCmd)
	snapshotCmd.AddCommand(snapshotHistoryCmd)

	snapshotShowCmd.Flags().BoolVar(&snapshotJSON, "json", false, "print the raw document")
	snapshotTopCmd.Flags().IntVar(&snapshotLimit, "limit", 10, "number of picks")
	snapshotHistoryCmd.Flags().IntVar(&snapshotLimit, "limit", 20, "number of entries")
}

func latestSnapshot(ctx context.Context, a *app) (*contracts.Snapshot, error) {
	snap, err := a.store.Latest(ctx)
	if errors.Is(err, contracts.ErrNoSnapshot) {
		return nil, fmt.Errorf("no snapshot published yet, run `alpha run` first")
	}
	return snap, err
}

func showSnapshot(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := latestSnapshot(cmd.Context(), a)
	if err != nil {
		return err
	}

	if snapshotJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	PrintHeader("Ranking Snapshot " + snap.RunID)
	PrintKeyValue("Published", snap.Timestamp.Format("2006-01-02 15:04:05"), 10)
	PrintKeyValue("Mode", string(snap.Mode), 10)
	PrintKeyValue("Partial", fmt.Sprintf("%v", snap.Partial), 10)
	PrintKeyValue("Ranked", fmt.Sprintf("%d", snap.TotalRanked), 10)
	PrintKeyValue("Average", fmt.Sprintf("%.2f", snap.AverageScore), 10)
	PrintSeparator()
	PrintPicks(snap.Ranking)
	return nil
}

func showTop(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	snap, err := latestSnapshot(cmd.Context(), a)
	if err != nil {
		return err
	}
	PrintHeader(fmt.Sprintf("Top %d", snapshotLimit))
	PrintPicks(snap.Top(snapshotLimit))
	return nil
}

func showSnapshotHistory(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	if a.archive == nil {
		return fmt.Errorf("snapshot history requires DATABASE_URL")
	}

	entries, err := a.archive.History(cmd.Context(), snapshotLimit)
	if err != nil {
		return err
	}

	widths := []int{36, 19, 11, 6}
	PrintTableHeader([]string{"RUN ID", "GENERATED", "MODE", "STATE"}, widths)
	for _, e := range entries {
		PrintTableRow([]string{e.RunID, e.GeneratedAt.Format("2006-01-02 15:04:05"), e.Mode, e.State}, widths)
	}
	return nil
}
