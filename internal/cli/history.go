package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/engine"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
	Date  string
}

// HistoryEntry is one transition as shown by the history command.
type HistoryEntry struct {
	Seq        int64  `json:"seq"`
	ID         string `json:"id"`
	Action     string `json:"action"`
	At         string `json:"at"`
	Date       string `json:"date"`
	Day        int    `json:"day"`
	State      string `json:"state"`
	Way        int    `json:"way"`
	Unit       int    `json:"unit,omitempty"`
	Units      []int  `json:"units,omitempty"`
	MissedDays int    `json:"missedDays,omitempty"`
	RecordHash string `json:"recordHash,omitempty"`
}

// HistoryOutput is the result of the history command.
type HistoryOutput struct {
	Entries []HistoryEntry `json:"entries"`
}

func (o HistoryOutput) String() string {
	if len(o.Entries) == 0 {
		return "No history."
	}
	var b strings.Builder
	for i, e := range o.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%4d  %s  %-16s day %-2d %s", e.Seq, e.Date, e.Action, e.Day, e.State)
		switch {
		case e.Unit != 0:
			fmt.Fprintf(&b, "  unit %d", e.Unit)
		case len(e.Units) > 0:
			fmt.Fprintf(&b, "  units %s", formatUnits(e.Units))
		case e.MissedDays != 0:
			fmt.Fprintf(&b, "  missed %d", e.MissedDays)
		}
	}
	return b.String()
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded transitions",
		Long: `List the transitions recorded in the database, oldest first.

Reading the history does not open the journey, so it never applies a
missed-day reset.

Examples:
  brainway history
  brainway history --limit 5
  brainway history --date 2024-01-03 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "number of most recent transitions (0 for all)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "only transitions on this local date (YYYY-MM-DD)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	var date calendar.LocalDate
	if opts.Date != "" {
		d, err := calendar.ParseLocalDate(opts.Date)
		if err != nil {
			return reportBadInput(opts.RootOptions, cmd, err)
		}
		date = d
	}

	_, st, logger, err := openStore(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}()

	ctx := commandContext(cmd)
	var transitions []engine.Transition
	if date.IsZero() {
		transitions, err = st.ReadTransitions(ctx, opts.Limit)
	} else {
		transitions, err = st.ReadTransitionsOn(ctx, date)
	}
	if err != nil {
		return commandError(opts.RootOptions, cmd, ErrCodeStore, "failed to read history", err)
	}

	entries := make([]HistoryEntry, 0, len(transitions))
	for _, t := range transitions {
		entries = append(entries, HistoryEntry{
			Seq:        t.Seq,
			ID:         t.ID,
			Action:     string(t.Action),
			At:         t.At.UTC().Format(time.RFC3339),
			Date:       t.Date.String(),
			Day:        t.Day,
			State:      t.State.String(),
			Way:        int(t.Way),
			Unit:       t.Unit,
			Units:      t.Units,
			MissedDays: t.MissedDays,
			RecordHash: t.RecordHash,
		})
	}
	return newFormatter(opts.RootOptions, cmd).Success(HistoryOutput{Entries: entries})
}
