package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailtarget/internal/web/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration is valid")
	fmt.Fprintf(out, "  Listen address: %s\n", cfg.Server.ListenAddr)
	fmt.Fprintf(out, "  Database: %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "  Entities: %v\n", cfg.Tenant.Entities())
	fmt.Fprintf(out, "  Locale: %s (%s)\n", cfg.Locale.Language, cfg.Locale.Timezone)
	fmt.Fprintf(out, "  Metrics: %v\n", cfg.Metrics.Enabled)

	return nil
}
