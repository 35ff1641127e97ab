package commands

import (
	"fmt"
	"os"
	"time"

	"brewpos/internal/importer"
	productrepo "brewpos/internal/repository/product"
	"github.com/spf13/cobra"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import menu products from a CSV file",
	Long: `Upsert products by name from a CSV with the columns
name,type,price[,availability][,image]. Prices are decimals such as 39.00.`,
	RunE: runImport,
}

func init() {
	importCmd.Flags().StringVarP(&importFile, "file", "f", "", "Path to the menu CSV")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(importFile)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	rt, err := open(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	start := time.Now()
	count, err := importer.NewCSVImporter(f, productrepo.NewPostgres(rt.pool, rt.logger), rt.logger).Run(ctx)
	if err != nil {
		return fmt.Errorf("import failed after %d products: %w", count, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d products in %s\n", count, time.Since(start).Truncate(time.Millisecond))
	return nil
}
