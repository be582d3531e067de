package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	trainCmd.Flags().IntVar(&trainWeeks, "weeks", 0, "Training window in weeks (default from config)")
	rootCmd.AddCommand(trainCmd)
}

var trainWeeks int

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train a demand model on recent observations and activate it",
	Args:  cobra.NoArgs,
	RunE:  runTrain,
}

func runTrain(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	res, err := d.Trainer.Train(ctx, trainWeeks)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(res)
	}
	fmt.Printf("Trained %s on %d records in %s\n", res.Version, res.TrainingRecords, res.Duration.Round(time.Millisecond))
	fmt.Printf("  R² train: %.3f  test: %.3f\n", res.TrainScore, res.TestScore)
	return nil
}
