package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/engine"
)

// NewToggleCommand creates the toggle command.
func NewToggleCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <unit>",
		Short: "Select or deselect a unit",
		Long: `Flip the selection of an unlocked unit.

Selecting one of today's units before checking in completes the day,
exactly like "checkin".

Examples:
  brainway toggle 4
  brainway toggle 4 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			unit, err := parseIntArg("unit", args[0])
			if err != nil {
				return reportBadInput(rootOpts, cmd, err)
			}

			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			res, err := a.session.Toggle(ctx, unit)
			if err != nil {
				return a.reject(err)
			}
			return a.report(ctx, string(engine.ActionToggle), ToggleOutput{
				Unit:          res.Unit,
				Day:           res.Day,
				Selected:      res.Selected,
				AutoCompleted: res.AutoCompleted,
			})
		},
	}
}

// NewWayCommand creates the way command.
func NewWayCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "way [30|60|90]",
		Short: "Show or change the journey length",
		Long: `Without an argument, show the current way. With one, change it.

Changing the way keeps completed days and unlocked units; the next
check-in fills any gap up to the new day's range.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			way := 0
			if len(args) == 1 {
				n, err := parseIntArg("way", args[0])
				if err != nil {
					return reportBadInput(rootOpts, cmd, err)
				}
				way = n
			}

			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			if way == 0 {
				current := int(a.session.Record().CurrentWay)
				return a.report(ctx, "way", MessageOutput{
					Message: fmt.Sprintf("Way: %d days", current),
				})
			}
			if err := a.session.SetWay(ctx, way); err != nil {
				return a.reject(err)
			}
			return a.report(ctx, string(engine.ActionSetWay), MessageOutput{
				Message: fmt.Sprintf("Way set to %d days", way),
			})
		},
	}
}

// NewLabelCommand creates the label command.
func NewLabelCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "label [text...]",
		Short: "Show or rename the journey",
		Long: `Without arguments, show the journey label. Otherwise the arguments are
joined with spaces, trimmed and stored as the new label.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			if len(args) == 0 {
				return a.report(ctx, "label", MessageOutput{Message: a.session.Label()})
			}
			if err := a.session.SetLabel(ctx, strings.Join(args, " ")); err != nil {
				return a.reject(err)
			}
			return a.report(ctx, string(engine.ActionSetLabel), MessageOutput{
				Message: fmt.Sprintf("Label set to %q", a.session.Label()),
			})
		},
	}
}

func parseIntArg(name, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number, got %q", name, s)
	}
	return n, nil
}

// reportBadInput reports a malformed argument before anything is opened.
func reportBadInput(rootOpts *RootOptions, cmd *cobra.Command, err error) error {
	return commandError(rootOpts, cmd, ErrCodeBadInput, "invalid argument", err)
}
