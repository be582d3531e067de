package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	accuracyUpdateCmd.Flags().StringVar(&accuracyDate, "date", "", "Date to score, YYYY-MM-DD (default yesterday)")
	accuracyShowCmd.Flags().IntVar(&accuracyDays, "days", 30, "Look-back window in days")
	accuracyShowCmd.Flags().StringVar(&accuracyBy, "by", "", "Break down by \"hour\" or \"day\"")
	accuracyCmd.AddCommand(accuracyUpdateCmd, accuracyShowCmd, accuracyRetrainCmd)
	rootCmd.AddCommand(accuracyCmd)
}

var (
	accuracyDate string
	accuracyDays int
	accuracyBy   string
)

var accuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Score predictions against what happened",
}

var accuracyUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Record accuracy for one date",
	Args:  cobra.NoArgs,
	RunE:  runAccuracyUpdate,
}

var accuracyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show accuracy metrics",
	Args:  cobra.NoArgs,
	RunE:  runAccuracyShow,
}

var accuracyRetrainCmd = &cobra.Command{
	Use:   "retrain-check",
	Short: "Report whether the model has drifted enough to retrain",
	Args:  cobra.NoArgs,
	RunE:  runRetrainCheck,
}

func runAccuracyUpdate(cmd *cobra.Command, args []string) error {
	date, err := parseDateArg("date", accuracyDate, today().AddDate(0, 0, -1))
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.Tracker.UpdateForDate(cmd.Context(), date)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(map[string]any{"date": date.Format("2006-01-02"), "records_updated": n})
	}
	fmt.Printf("Scored %d hours on %s\n", n, date.Format("2006-01-02"))
	return nil
}

func runAccuracyShow(cmd *cobra.Command, args []string) error {
	if accuracyDays <= 0 {
		return fmt.Errorf("--days must be positive")
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	end := today()
	start := end.AddDate(0, 0, -accuracyDays)

	switch accuracyBy {
	case "":
	case "hour", "day":
		fn := d.Tracker.ByHour
		label := "HOUR"
		if accuracyBy == "day" {
			fn, label = d.Tracker.ByDayOfWeek, "DAY"
		}
		buckets, err := fn(ctx, start, end)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(buckets)
		}
		w := newTable()
		fmt.Fprintf(w, "%s\tAVG ERROR %%\tSAMPLES\n", label)
		for _, b := range buckets {
			key := fmt.Sprintf("%02d:00", b.Key)
			if accuracyBy == "day" {
				key = weekdayNames[b.Key]
			}
			fmt.Fprintf(w, "%s\t%.2f\t%d\n", key, b.AvgErrorPct, b.SampleSize)
		}
		return w.Flush()
	default:
		return fmt.Errorf("--by must be \"hour\" or \"day\", got %q", accuracyBy)
	}

	m, err := d.Tracker.Metrics(ctx, start, end)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(m)
	}
	fmt.Printf("Accuracy %s .. %s (%d records)\n", m.Start, m.End, m.TotalRecords)
	fmt.Printf("  Sales MAE:         %.2f\n", m.SalesCountMAE)
	fmt.Printf("  Sales MAPE:        %.2f%%\n", m.SalesCountMAPE)
	fmt.Printf("  Within tolerance:  %.0f%%\n", m.WithinTolerance*100)
	fmt.Printf("  Amount MAPE:       %.2f%%\n", m.SalesAmountMAPE)
	fmt.Printf("  Staff MAPE:        %.2f%%\n", m.StaffCountMAPE)
	return nil
}

func runRetrainCheck(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	dec, err := d.Tracker.ShouldRetrain(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(dec)
	}
	fmt.Printf("Retrain: %t\n  %s\n", dec.ShouldRetrain, dec.Reason)
	if dec.RecentMAPE != nil && dec.HistoricalMAPE != nil {
		fmt.Printf("  Recent MAPE %.2f%%, historical %.2f%%, degradation %.2f%%\n",
			*dec.RecentMAPE, *dec.HistoricalMAPE, dec.DegradationPercentage)
	}
	return nil
}

var weekdayNames = [7]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
