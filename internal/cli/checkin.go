package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/engine"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's check-in status",
		Long: `Show today's status and the unlocked units.

Opening the journey applies any pending missed-day reset, so the first
status after a skipped day reports the reset.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.report(commandContext(cmd), "status", nil)
		},
	}
}

// NewCheckInCommand creates the checkin command.
func NewCheckInCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "checkin",
		Aliases: []string{"check-in"},
		Short:   "Check in for today",
		Long: `Complete today's day and unlock its units.

Exit codes:
  0 - Checked in (or the journey is already finished)
  1 - Rejected: already checked in, or failed today
  2 - Command error`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			res, err := a.session.CheckIn(ctx)
			if err != nil {
				return a.reject(err)
			}
			units := res.Units
			if units == nil {
				units = []int{}
			}
			return a.report(ctx, string(engine.ActionCheckIn), CheckInOutput{
				Day:      res.Day,
				Units:    units,
				Finished: res.Finished,
			})
		},
	}
}

// NewFailCommand creates the fail command.
func NewFailCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fail",
		Short: "Give up the current journey",
		Long: `Reset every check-in of the current journey. Check-ins are locked for
the rest of the local day; the journey restarts at day 1 tomorrow.
The best day reached is kept.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts, cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := commandContext(cmd)
			a.session.Fail(ctx)
			return a.report(ctx, string(engine.ActionFail), nil)
		},
	}
}

// reject reports an engine rejection and returns the matching exit error.
// Errors that are not engine rejections are command errors.
func (a *app) reject(err error) error {
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		return WrapExitError(ExitCommandError, "command failed", err)
	}
	if a.out.Format == "json" {
		details := map[string]any{"reason": string(engErr.Code)}
		if engErr.Day != 0 {
			details["day"] = engErr.Day
		}
		if engErr.Unit != 0 {
			details["unit"] = engErr.Unit
		}
		if outErr := a.out.Error(ErrCodeRejected, engErr.Message, details); outErr != nil {
			return outErr
		}
	}
	return WrapExitError(ExitFailure, "rejected", err)
}
