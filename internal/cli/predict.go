package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	for _, c := range []*cobra.Command{predictCmd, recommendCmd} {
		c.Flags().StringVar(&rangeStart, "start", "", "First date, YYYY-MM-DD (default tomorrow)")
		c.Flags().StringVar(&rangeEnd, "end", "", "Last date, YYYY-MM-DD (default start + 6 days)")
	}
	recommendCmd.Flags().BoolVar(&recommendSummary, "summary", false, "Print one line per day")
	rootCmd.AddCommand(predictCmd, recommendCmd, modelsCmd)
}

var (
	rangeStart       string
	rangeEnd         string
	recommendSummary bool
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Generate staffing predictions for a date range",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

var recommendCmd = &cobra.Command{
	Use:     "recommendations",
	Aliases: []string{"recs"},
	Short:   "Show stored staffing recommendations",
	Args:    cobra.NoArgs,
	RunE:    runRecommendations,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List trained model versions",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

func runPredict(cmd *cobra.Command, args []string) error {
	start, end, err := flagRange()
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	res, err := d.Predictor.GeneratePredictions(ctx, start, end)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("Wrote %d predictions with model %s\n", res.PredictionsCreated, res.ModelVersion)
	return nil
}

func runRecommendations(cmd *cobra.Command, args []string) error {
	start, end, err := flagRange()
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx := cmd.Context()
	if recommendSummary {
		sum, err := d.Predictor.Summary(ctx, start, end)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(sum)
		}
		if !sum.HasPredictions {
			fmt.Println("No predictions in range. Run 'staffcast predict' first.")
			return nil
		}
		w := newTable()
		fmt.Fprintln(w, "DATE\tSALES\tAMOUNT\tPEAK HOUR\tPEAK STAFF\tAVG STAFF")
		for _, day := range sum.Days {
			fmt.Fprintf(w, "%s\t%d\t%s\t%02d:00\t%d\t%.1f\n", day.Date, day.TotalPredictedSales,
				day.TotalPredictedAmount.StringFixed(2), day.PeakHour, day.PeakStaffNeeded, day.AvgStaffNeeded)
		}
		return w.Flush()
	}

	days, err := d.Predictor.GetRecommendations(ctx, start, end)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(days)
	}
	if len(days) == 0 {
		fmt.Println("No predictions in range. Run 'staffcast predict' first.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "DATE\tHOUR\tSALES\tAMOUNT\tSTAFF\tCONFIDENCE")
	for _, day := range days {
		for _, h := range day.Hours {
			fmt.Fprintf(w, "%s\t%02d:00\t%d\t%s\t%d\t%.2f\n", day.Date, h.Hour, h.PredictedSalesCount,
				h.PredictedSalesAmount.StringFixed(2), h.RecommendedStaffCount, h.ConfidenceScore)
		}
	}
	return w.Flush()
}

func runModels(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	versions, err := d.Predictor.Versions(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(versions)
	}
	if len(versions) == 0 {
		fmt.Println("No models trained. Run 'staffcast train' to get started.")
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "VERSION\tTRAINED\tRECORDS\tTRAIN R²\tTEST R²\tACTIVE")
	for _, v := range versions {
		active := ""
		if v.IsActive {
			active = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%.3f\t%.3f\t%s\n", v.Version, v.TrainedAt.Format("2006-01-02 15:04"),
			v.TrainingRecords, v.TrainScore, v.TestScore, active)
	}
	return w.Flush()
}

// flagRange reads --start/--end, defaulting to the coming week.
func flagRange() (startDate, endDate time.Time, err error) {
	startDate, err = parseDateArg("start", rangeStart, today().AddDate(0, 0, 1))
	if err != nil {
		return
	}
	endDate, err = parseDateArg("end", rangeEnd, startDate.AddDate(0, 0, 6))
	return
}
