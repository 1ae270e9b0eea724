package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the emailing dashboard statistics",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Output as JSON")
}

func runStats(cmd *cobra.Command, args []string) error {
	_, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	stats, err := svc.Dashboard.Stats(cmd.Context())
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	for _, s := range stats {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", s.Label, s.Nb)
	}
	return nil
}
