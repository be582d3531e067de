package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/staffcast/staffcast/internal/app/calendar"
	"github.com/staffcast/staffcast/internal/domain"
)

func init() {
	holidaysListCmd.Flags().IntVar(&holidayYear, "year", 0, "Calendar year (default current)")
	holidaysAddCmd.Flags().StringVar(&holidayCategory, "category", string(domain.HolidaySpecial), "national, local or special")
	holidaysAddCmd.Flags().Float64Var(&holidayImpact, "impact", domain.DefaultImpact, "Demand multiplier for the day")
	holidaysAddCmd.Flags().StringVar(&holidayNotes, "notes", "", "Free-form notes")
	holidaysCmd.AddCommand(holidaysListCmd, holidaysAddCmd, holidaysInitCmd, holidaysRmCmd)
	rootCmd.AddCommand(holidaysCmd)
}

var (
	holidayYear     int
	holidayCategory string
	holidayImpact   float64
	holidayNotes    string
)

var holidaysCmd = &cobra.Command{
	Use:   "holidays",
	Short: "Manage holidays and special events",
}

var holidaysListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the exceptions of one year",
	Args:    cobra.NoArgs,
	RunE:    runHolidaysList,
}

var holidaysAddCmd = &cobra.Command{
	Use:   "add <date> <name>",
	Short: "Add a holiday or special event",
	Args:  cobra.ExactArgs(2),
	RunE:  runHolidaysAdd,
}

var holidaysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Load the 2026 national holidays",
	Args:  cobra.NoArgs,
	RunE:  runHolidaysInit,
}

var holidaysRmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Remove an exception",
	Args:  cobra.ExactArgs(1),
	RunE:  runHolidaysRm,
}

func runHolidaysList(cmd *cobra.Command, args []string) error {
	year := holidayYear
	if year == 0 {
		year = time.Now().Year()
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	list, err := d.Calendar.ListYear(cmd.Context(), year)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(list)
	}
	if len(list) == 0 {
		fmt.Printf("No exceptions in %d. Run 'staffcast holidays init' to load national holidays.\n", year)
		return nil
	}
	w := newTable()
	fmt.Fprintln(w, "DATE\tNAME\tCATEGORY\tIMPACT\tID")
	for _, e := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", domain.FormatDate(e.Date), e.Name, e.Category, e.ImpactMultiplier, e.ID)
	}
	return w.Flush()
}

func runHolidaysAdd(cmd *cobra.Command, args []string) error {
	date, err := domain.ParseDate(args[0])
	if err != nil {
		return err
	}
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	e, err := d.Calendar.Add(cmd.Context(), date, args[1], domain.HolidayCategory(holidayCategory), holidayImpact, holidayNotes)
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(e)
	}
	fmt.Printf("Added %s on %s (id %s)\n", e.Name, domain.FormatDate(e.Date), e.ID)
	return nil
}

func runHolidaysInit(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	n, err := d.Calendar.Initialize(cmd.Context(), calendar.Argentina2026)
	if err != nil {
		return err
	}
	fmt.Printf("Loaded %d of %d holidays\n", n, len(calendar.Argentina2026))
	return nil
}

func runHolidaysRm(cmd *cobra.Command, args []string) error {
	d, err := openDaemon()
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.Calendar.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Removed %s\n", args[0])
	return nil
}
