package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	harvest "github.com/dkobozev/harvest-cli"
)

// NoEntryMessage is printed by show when nothing is logged yet.
const NoEntryMessage = "No matching entry logged today."

func newLogCmd(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "log <hours> [notes]",
		Short: "Add hours to today's entry, creating it if needed",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			hours, err := parseHours(args[0])
			if err != nil {
				return err
			}
			var notes string
			if len(args) == 2 {
				notes = args[1]
			}

			svc, err := app.entryService(flags)
			if err != nil {
				return err
			}
			entry, err := svc.LogHours(cmd.Context(), hours, notes)
			if err != nil {
				return err
			}
			return printEntry(app.Out, entry)
		},
	}
}

func newShowCmd(app *App, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print today's entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := app.entryService(flags)
			if err != nil {
				return err
			}
			entry, found, err := svc.Today(cmd.Context())
			if err != nil {
				return err
			}
			if !found {
				_, err := fmt.Fprintln(app.Out, NoEntryMessage)
				return err
			}
			return printEntry(app.Out, entry)
		},
	}
}

func newVersionCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(app.Out, harvest.GetVersion())
			return err
		},
	}
}

func parseHours(s string) (float64, error) {
	hours, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("hours must be a number, got %q", s)
	}
	if hours <= 0 {
		return 0, fmt.Errorf("hours must be positive, got %q", s)
	}
	return hours, nil
}

// FormatHours renders hours without trailing zeros.
func FormatHours(hours float64) string {
	return strconv.FormatFloat(hours, 'f', -1, 64)
}

func printEntry(w io.Writer, entry harvest.TimeEntry) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", entry.Project)
	fmt.Fprintf(&b, "Task: %s\n", entry.Task)
	fmt.Fprintf(&b, "%s hours\n", FormatHours(entry.Hours))
	if entry.Notes != "" {
		b.WriteString(entry.Notes)
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}
