package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailtarget/internal/web/models"
)

var mailingCmd = &cobra.Command{
	Use:   "mailing",
	Short: "Manage emailings",
}

var mailingCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create an emailing",
	Args:  cobra.ExactArgs(1),
	RunE:  runMailingCreate,
}

var mailingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List emailings",
	RunE:  runMailingList,
}

func init() {
	mailingCmd.AddCommand(mailingCreateCmd)
	mailingCmd.AddCommand(mailingListCmd)
}

func runMailingCreate(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	m := &models.Mailing{Entity: cfg.Tenant.Entity, Title: args[0]}
	if err := svc.Mailings.Create(cmd.Context(), m); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Emailing %d created\n", m.ID)
	return nil
}

func runMailingList(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mailings, err := svc.Mailings.List(cmd.Context(), cfg.Tenant.Entity)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tRECIPIENTS\tCREATED")
	for _, m := range mailings {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", m.ID, m.Title, m.NbEmails, m.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
