package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the active model, recent accuracy and pending alerts",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.Dashboard.Stats(cmd.Context())
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(st)
	}

	if st.Model.Active != nil {
		fmt.Printf("Model:    %s (test R² %.3f)\n", st.Model.Active.Version, st.Model.Active.TestScore)
	} else {
		fmt.Println("Model:    none trained")
	}
	if st.Accuracy != nil {
		fmt.Printf("Accuracy: %.2f%% MAPE over %d records (30 days)\n", st.Accuracy.SalesCountMAPE, st.Accuracy.TotalRecords)
	} else {
		fmt.Println("Accuracy: no data yet")
	}
	fmt.Printf("Alerts:   %d pending (%d critical)\n", st.Alerts.Total, st.Alerts.Critical)
	fmt.Printf("Retrain:  %t, %s\n", st.Retrain.ShouldRetrain, st.Retrain.Reason)
	return nil
}
