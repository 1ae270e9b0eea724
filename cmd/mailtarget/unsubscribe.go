package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unsubscribeCmd = &cobra.Command{
	Use:   "unsubscribe",
	Short: "Manage opted-out emails",
}

var unsubscribeAddCmd = &cobra.Command{
	Use:   "add <email>...",
	Short: "Opt emails out of every emailing",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnsubscribeAdd,
}

var unsubscribeRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove an opt-out",
	Args:  cobra.ExactArgs(1),
	RunE:  runUnsubscribeRemove,
}

var unsubscribeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List opted-out emails",
	RunE:  runUnsubscribeList,
}

func init() {
	unsubscribeCmd.AddCommand(unsubscribeAddCmd)
	unsubscribeCmd.AddCommand(unsubscribeRemoveCmd)
	unsubscribeCmd.AddCommand(unsubscribeListCmd)
}

func runUnsubscribeAdd(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, address := range args {
		if err := svc.Unsubscribes.Add(cmd.Context(), cfg.Tenant.Entity, address); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d email(s) opted out\n", len(args))
	return nil
}

func runUnsubscribeRemove(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Unsubscribes.Remove(cmd.Context(), cfg.Tenant.Entity, args[0])
}

func runUnsubscribeList(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	list, err := svc.Unsubscribes.List(cmd.Context(), cfg.Tenant.Entity)
	if err != nil {
		return err
	}
	for _, u := range list {
		fmt.Fprintln(cmd.OutOrStdout(), u.Email)
	}
	return nil
}
