package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tendant/framecompare/internal/app"
	"github.com/tendant/framecompare/internal/provider"
	"github.com/tendant/framecompare/internal/provider/engines"
)

var providersJSON bool

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show which decode engines are available",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		defer log.Sync()

		_, report, err := provider.Select(cmd.Context(), log, engines.Default(app.FFmpegConfig(cfg), log)...)
		if err != nil && !errors.Is(err, provider.ErrNoProvider) {
			return err
		}

		if providersJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}
		fmt.Fprint(cmd.OutOrStdout(), report.String())
		return err
	},
}

func init() {
	providersCmd.Flags().BoolVar(&providersJSON, "json", false, "print the report as JSON")
}
