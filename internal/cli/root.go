package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/engine"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose   bool
	Format    string // "json" | "text"
	Config    string // optional CUE config file
	DB        string // overrides config db
	Timezone  string // overrides config timezone
	LogFormat string // "text" | "json"; empty defers to config

	// Clock overrides the wall clock (for testing).
	// If nil, defaults to calendar.SystemClock.
	Clock calendar.Clock

	// IDGenerator overrides the transition ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	IDGenerator engine.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogFormats defines the allowed log formats.
var ValidLogFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the brainway CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command bound to opts. Tests
// use it to inject a clock and ID generator.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brainway",
		Short: "brainway - one check-in a day, ninety units to unlock",
		Long: `A daily check-in tracker. Each local calendar day you check in once to
unlock the next units of a 90-unit journey, spread over 30, 60 or 90 days.
Skipping a day restarts the journey; so does giving up with "fail".`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if opts.LogFormat != "" && !slices.Contains(ValidLogFormats, opts.LogFormat) {
				return fmt.Errorf("invalid log format %q: must be one of %v", opts.LogFormat, ValidLogFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to CUE config file")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "path to SQLite database (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.Timezone, "tz", "", "IANA timezone for local dates (overrides config)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")

	// Add subcommands
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewCheckInCommand(opts))
	cmd.AddCommand(NewFailCommand(opts))
	cmd.AddCommand(NewToggleCommand(opts))
	cmd.AddCommand(NewWayCommand(opts))
	cmd.AddCommand(NewLabelCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
