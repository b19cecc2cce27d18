package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// macroCmd represents the macro command
var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "매크로 컨텍스트 조회",
	Long: `Fetches the interest and inflation indicators and prints the
sector weights the ranking would use.

Example:
  go run ./cmd/alpha macro
  go run ./cmd/alpha macro --refresh`,
	RunE: showMacro,
}

var macroRefresh bool

func init() {
	rootCmd.AddCommand(macroCmd)

	macroCmd.Flags().BoolVar(&macroRefresh, "refresh", false, "bypass the cached context")
}

func showMacro(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := newApp(ctx, ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	mc, err := a.macro.Context(ctx, macroRefresh)
	if err != nil {
		return fmt.Errorf("macro context: %w", err)
	}
	PrintMacro(mc)
	return nil
}
