package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func init() {
	jobCmd.AddCommand(jobListCmd)
	rootCmd.AddCommand(jobCmd)
}

var jobCmd = &cobra.Command{
	Use:   "job <name>",
	Short: "Run one periodic job (for cron or a systemd timer)",
	Long: `Run one periodic job and exit. Schedule them externally, for example:

  0 2 * * *   staffcast job daily-accuracy
  0 3 * * 1   staffcast job weekly-retrain-check
  0 4 * * 1   staffcast job weekly-predictions
  0 7 * * *   staffcast job daily-alerts
  0 1 1 * *   staffcast job monthly-retrain`,
	Args: cobra.ExactArgs(1),
	RunE: runJob,
}

var jobListCmd = &cobra.Command{
	Use:   "list",
	Short: "List job names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := openDaemon()
		if err != nil {
			return err
		}
		defer d.Close()
		for _, name := range d.Jobs.Names() {
			fmt.Println(name)
		}
		return nil
	},
}

func runJob(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	rep, err := d.Jobs.Run(ctx, args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(rep)
	}
	fmt.Printf("%s finished in %s\n", rep.Job, rep.Duration)
	keys := make([]string, 0, len(rep.Detail))
	for k := range rep.Detail {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %s: %v\n", k, rep.Detail[k])
	}
	return nil
}
