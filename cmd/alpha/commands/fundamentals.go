package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/alphaterminal/backend/internal/fundamentals"
	"github.com/wonny/alphaterminal/backend/pkg/database"
	"github.com/wonny/alphaterminal/backend/pkg/logger"
)

// fundamentalsCmd represents the fundamentals command
var fundamentalsCmd = &cobra.Command{
	Use:   "fundamentals",
	Short: "펀더멘털 데이터 관리",
	Long: `Manages the fundamentals the quant filter reads.

Subcommands:
  check   - CSV 검증 (malformed rows are listed, nothing is written)
  import  - CSV → Postgres (FUNDAMENTALS_SOURCE=postgres reads from there)

Example:
  go run ./cmd/alpha fundamentals check --file data/stocks.csv
  go run ./cmd/alpha fundamentals import --file data/stocks.csv`,
}

var (
	fundamentalsCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "CSV 검증",
		RunE:  checkFundamentals,
	}

	fundamentalsImportCmd = &cobra.Command{
		Use:   "import",
		Short: "CSV → Postgres",
		RunE:  importFundamentals,
	}

	fundamentalsFile string
)

func init() {
	rootCmd.AddCommand(fundamentalsCmd)
	fundamentalsCmd.AddCommand(fundamentalsCheckCmd)
	fundamentalsCmd.AddCommand(fundamentalsImportCmd)

	fundamentalsCmd.PersistentFlags().StringVar(&fundamentalsFile, "file", "", "CSV path (default: FUNDAMENTALS_CSV)")
}

func checkFundamentals(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	path := cfg.Pipeline.FundamentalsCSV
	if fundamentalsFile != "" {
		path = fundamentalsFile
	}

	records, err := fundamentals.NewCSVSource(path, log).Load(cmd.Context())
	if err != nil {
		return err
	}

	PrintHeader("Fundamentals " + path)
	widths := []int{8, 14, 8, 8, 8, 8}
	PrintTableHeader([]string{"TICKER", "SECTOR", "P/L", "ROE", "CAGR", "PRICE"}, widths)
	for _, rec := range records {
		price := "-"
		if rec.Price != nil {
			price = fmt.Sprintf("%.2f", *rec.Price)
		}
		PrintTableRow([]string{
			rec.Ticker,
			rec.Sector,
			fmt.Sprintf("%.2f", rec.Valuation),
			fmt.Sprintf("%.2f", rec.ROE),
			fmt.Sprintf("%.2f", rec.Growth),
			price,
		}, widths)
	}
	PrintSuccess(fmt.Sprintf("%d records valid", len(records)))
	return nil
}

func importFundamentals(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log := logger.New(cfg)

	path := cfg.Pipeline.FundamentalsCSV
	if fundamentalsFile != "" {
		path = fundamentalsFile
	}

	db, err := database.New(ctx, cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return err
	}

	records, err := fundamentals.NewCSVSource(path, log).Load(ctx)
	if err != nil {
		return err
	}

	if err := fundamentals.NewRepository(db.Pool).SaveBatch(ctx, records); err != nil {
		return fmt.Errorf("save fundamentals: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"path":    path,
		"records": len(records),
	}).Info("Fundamentals imported")
	PrintSuccess(fmt.Sprintf("Imported %d records from %s", len(records), path))
	return nil
}
