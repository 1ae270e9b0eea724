package main

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/foxzi/mailtarget/internal/metrics"
	"github.com/foxzi/mailtarget/internal/web/models"
	"github.com/foxzi/mailtarget/internal/web/selector"
	"github.com/foxzi/mailtarget/internal/web/server"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Manage the recipients of an emailing",
}

var targetsAddCmd = &cobra.Command{
	Use:   "add <mailing-id>",
	Short: "Add recipients selected by filters",
	Long: `Add recipients to an emailing.

Filters use the same values as the web form:
  --status       draft, 1a (up to date), 1b (expired), 0 (terminated)
  --type         member type id
  --category     member category id
  --after        membership ends after this date (YYYY-MM-DD)
  --before       membership ends before this date (YYYY-MM-DD)`,
	Args: cobra.ExactArgs(1),
	RunE: runTargetsAdd,
}

var targetsClearCmd = &cobra.Command{
	Use:   "clear <mailing-id>",
	Short: "Remove every recipient of an emailing",
	Args:  cobra.ExactArgs(1),
	RunE:  runTargetsClear,
}

var targetsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Count the recipients each selector can provide",
	RunE:  runTargetsCount,
}

var (
	targetsSelector         string
	targetsStatus           string
	targetsType             string
	targetsCategory         string
	targetsAfter            string
	targetsBefore           string
	targetsEvenUnsubscribed bool
)

func init() {
	targetsAddCmd.Flags().StringVar(&targetsSelector, "selector", "members", "Recipient selector")
	targetsAddCmd.Flags().StringVar(&targetsStatus, "status", "", "Member status filter")
	targetsAddCmd.Flags().StringVar(&targetsType, "type", "", "Member type id")
	targetsAddCmd.Flags().StringVar(&targetsCategory, "category", "", "Member category id")
	targetsAddCmd.Flags().StringVar(&targetsAfter, "after", "", "Membership end date lower bound (YYYY-MM-DD)")
	targetsAddCmd.Flags().StringVar(&targetsBefore, "before", "", "Membership end date upper bound (YYYY-MM-DD)")
	targetsAddCmd.Flags().BoolVar(&targetsEvenUnsubscribed, "even-unsubscribed", false, "Include opted-out emails")

	targetsCountCmd.Flags().BoolVar(&targetsEvenUnsubscribed, "even-unsubscribed", false, "Include opted-out emails")

	targetsCmd.AddCommand(targetsAddCmd)
	targetsCmd.AddCommand(targetsClearCmd)
	targetsCmd.AddCommand(targetsCountCmd)
}

// filterValues maps the command flags to form values
func filterValues() (url.Values, error) {
	values := url.Values{}
	values.Set("filter", targetsStatus)
	values.Set("filter_type", targetsType)
	values.Set("filter_category", targetsCategory)
	if targetsEvenUnsubscribed {
		values.Set("evenunsubscribe", "1")
	}

	for prefix, date := range map[string]string{
		"subscriptionafter":  targetsAfter,
		"subscriptionbefore": targetsBefore,
	} {
		if date == "" {
			continue
		}
		d, err := time.Parse(time.DateOnly, date)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
		}
		values.Set(prefix+"year", strconv.Itoa(d.Year()))
		values.Set(prefix+"month", strconv.Itoa(int(d.Month())))
		values.Set(prefix+"day", strconv.Itoa(d.Day()))
	}

	return values, nil
}

func loadMailing(cmd *cobra.Command, svc *server.Services, entity int, arg string) (*models.Mailing, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid mailing id %q", arg)
	}

	m, err := svc.Mailings.GetByID(cmd.Context(), id)
	if err != nil {
		return nil, err
	}
	if m == nil || m.Entity != entity {
		return nil, fmt.Errorf("mailing %d: %w", id, models.ErrMailingNotFound)
	}
	return m, nil
}

func runTargetsAdd(cmd *cobra.Command, args []string) error {
	values, err := filterValues()
	if err != nil {
		return err
	}

	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mailing, err := loadMailing(cmd, svc, cfg.Tenant.Entity, args[0])
	if err != nil {
		return err
	}

	s, err := svc.Selectors.Get(targetsSelector)
	if err != nil {
		return err
	}

	filter := selector.ParseFilter(values, cfg.Locale.Location())
	added, err := s.AddToTarget(cmd.Context(), mailing.ID, filter)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%d recipient(s) added to emailing %d\n", added, mailing.ID)
	return nil
}

func runTargetsClear(cmd *cobra.Command, args []string) error {
	cfg, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	mailing, err := loadMailing(cmd, svc, cfg.Tenant.Entity, args[0])
	if err != nil {
		return err
	}

	if err := svc.Mailings.ClearTargets(cmd.Context(), mailing.ID); err != nil {
		return err
	}
	metrics.IncTargetsCleared()

	fmt.Fprintf(cmd.OutOrStdout(), "Recipients of emailing %d cleared\n", mailing.ID)
	return nil
}

func runTargetsCount(cmd *cobra.Command, args []string) error {
	_, svc, err := openServices(cmd)
	if err != nil {
		return err
	}
	defer svc.Close()

	for _, s := range svc.Selectors.All() {
		nb, err := s.NbOfRecipients(cmd.Context(), targetsEvenUnsubscribed)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d\t%s\n", s.Name(), nb, s.Description())
	}
	return nil
}
