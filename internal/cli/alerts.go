package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/staffcast/staffcast/internal/domain"
)

func init() {
	alertsListCmd.Flags().StringVar(&alertSchedule, "schedule", "", "Only alerts of this schedule")
	alertsListCmd.Flags().StringVar(&alertSeverity, "severity", "", "Only alerts of this severity")
	alertsAckCmd.Flags().StringVar(&alertBy, "by", "", "Who is acknowledging (required)")
	_ = alertsAckCmd.MarkFlagRequired("by")
	alertsCmd.AddCommand(alertsListCmd, alertsSummaryCmd, alertsCheckCmd, alertsAckCmd, alertsResolveCmd)
	rootCmd.AddCommand(alertsCmd)
}

var (
	alertSchedule string
	alertSeverity string
	alertBy       string
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Staffing alerts for published schedules",
}

var alertsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List pending alerts, most severe first",
	Args:    cobra.NoArgs,
	RunE:    runAlertsList,
}

var alertsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count pending alerts by severity",
	Args:  cobra.NoArgs,
	RunE:  runAlertsSummary,
}

var alertsCheckCmd = &cobra.Command{
	Use:   "check [schedule-id]",
	Short: "Check one schedule, or every published schedule when none is given",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAlertsCheck,
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsAck,
}

var alertsResolveCmd = &cobra.Command{
	Use:   "resolve <alert-id>",
	Short: "Resolve an alert",
	Args:  cobra.ExactArgs(1),
	RunE:  runAlertsResolve,
}

func runAlertsList(cmd *cobra.Command, args []string) error {
	f := domain.AlertFilter{ScheduleID: alertSchedule, Severity: domain.Severity(alertSeverity)}
	if f.Severity != "" && f.Severity.Rank() < 0 {
		return fmt.Errorf("unknown severity %q", alertSeverity)
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	alerts, err := d.Alerts.Active(cmd.Context(), f)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(alerts)
	}
	if len(alerts) == 0 {
		fmt.Println("No pending alerts.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "ID\tSCHEDULE\tDATE\tHOUR\tRECOMMENDED\tSCHEDULED\tDIFF %\tSEVERITY")
	for _, a := range alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%02d:00\t%d\t%d\t%+.1f\t%s\n", a.ID, a.ScheduleID,
			domain.FormatDate(a.Date), a.Hour, a.RecommendedStaff, a.ScheduledStaff,
			a.DifferencePercentage, a.Severity)
	}
	return w.Flush()
}

func runAlertsSummary(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	sum, err := d.Alerts.Summary(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(sum)
	}
	fmt.Printf("%d pending: %d critical, %d high, %d medium, %d low\n",
		sum.Total, sum.Critical, sum.High, sum.Medium, sum.Low)
	return nil
}

func runAlertsCheck(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if len(args) == 0 {
		n, err := d.Alerts.CheckPublished(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(map[string]int{"alerts_created": n})
		}
		fmt.Printf("Created %d alerts across published schedules\n", n)
		return nil
	}

	res, err := d.Alerts.CheckSchedule(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("Created %d alerts for schedule %s\n", res.AlertsCreated, res.ScheduleID)
	return nil
}

func runAlertsAck(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	a, err := d.Alerts.Acknowledge(cmd.Context(), args[0], alertBy)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(a)
	}
	fmt.Printf("Alert %s acknowledged by %s\n", a.ID, a.AcknowledgedBy)
	return nil
}

func runAlertsResolve(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	a, err := d.Alerts.Resolve(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(a)
	}
	fmt.Printf("Alert %s resolved\n", a.ID)
	return nil
}
