package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/calendar"
	"github.com/roach88/brainway/internal/config"
	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/store"
)

// app is the per-invocation wiring shared by the session commands.
type app struct {
	cfg      config.Config
	cal      calendar.Calendar
	store    *store.Store
	session  *engine.Session
	surface  *collectSurface
	logger   *slog.Logger
	out      *OutputFormatter
	startSeq int64
}

// loadConfig reads the config file and applies flag overrides.
func loadConfig(opts *RootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return config.Config{}, err
	}
	if opts.DB != "" {
		cfg.DB = opts.DB
	}
	if opts.Timezone != "" {
		cfg.Timezone = opts.Timezone
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}
	return cfg, nil
}

// newLogger builds the process logger: tint for text, slog's JSON handler
// otherwise. Verbose lowers the level to Debug.
func newLogger(w io.Writer, format string, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		_, isFile := w.(*os.File)
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
			NoColor:    !isFile,
		})
	}
	return slog.New(handler)
}

// newFormatter binds an OutputFormatter to the command's writers.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// openStore loads config, installs the logger and opens the database.
func openStore(opts *RootOptions, cmd *cobra.Command) (config.Config, *store.Store, *slog.Logger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return config.Config{}, nil, nil, commandError(opts, cmd, ErrCodeConfig, "failed to load config", err)
	}

	logger := newLogger(cmd.ErrOrStderr(), cfg.LogFormat, opts.Verbose)
	slog.SetDefault(logger)

	logger.Debug("opening database", "path", cfg.DB)
	st, err := store.Open(cfg.DB)
	if err != nil {
		return config.Config{}, nil, nil, commandError(opts, cmd, ErrCodeStore, "failed to open database", err)
	}
	return cfg, st, logger, nil
}

// openApp wires config, logger, store and session. Opening the session
// already refreshes today's status, so a pending missed-day reset is applied
// and reported before the command's own action.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	ctx := commandContext(cmd)

	cfg, st, logger, err := openStore(opts, cmd)
	if err != nil {
		return nil, err
	}

	cal, err := calendar.Load(cfg.Timezone)
	if err != nil {
		st.Close()
		return nil, commandError(opts, cmd, ErrCodeConfig, "invalid timezone", err)
	}

	startSeq, err := st.LastSeq(ctx)
	if err != nil {
		st.Close()
		return nil, commandError(opts, cmd, ErrCodeStore, "failed to read history", err)
	}

	a := &app{
		cfg:      cfg,
		cal:      cal,
		store:    st,
		surface:  &collectSurface{},
		logger:   logger,
		out:      newFormatter(opts, cmd),
		startSeq: startSeq,
	}

	sessionOpts := []engine.Option{
		engine.WithCalendar(cal),
		engine.WithSurface(a.surface),
		engine.WithLogger(logger),
		engine.WithDefaultWay(cfg.DefaultWay()),
		engine.WithDefaultLabel(cfg.Label),
	}
	if opts.Clock != nil {
		sessionOpts = append(sessionOpts, engine.WithClock(opts.Clock))
	}
	if opts.IDGenerator != nil {
		sessionOpts = append(sessionOpts, engine.WithIDGenerator(opts.IDGenerator))
	}
	a.session = engine.Open(ctx, st, sessionOpts...)
	return a, nil
}

// Close closes the database.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
}

// lastTraceID returns the ID of the newest transition appended since the app
// was opened, or "".
func (a *app) lastTraceID(ctx context.Context) string {
	seq, err := a.store.LastSeq(ctx)
	if err != nil || seq <= a.startSeq {
		return ""
	}
	latest, err := a.store.ReadTransitions(ctx, 1)
	if err != nil || len(latest) == 0 {
		return ""
	}
	return latest[0].ID
}

// report writes a session command's outcome.
func (a *app) report(ctx context.Context, action string, result fmt.Stringer) error {
	res := CommandResult{
		Action:  action,
		Result:  result,
		View:    a.session.View(),
		Notices: a.surface.Notices(),
	}
	return a.out.SuccessWithTrace(res, a.lastTraceID(ctx))
}

// commandError reports a failure outside the engine: as a JSON error
// response when --format json, and always as an ExitCommandError.
func commandError(opts *RootOptions, cmd *cobra.Command, code, message string, err error) error {
	if opts.Format == "json" {
		detail := message
		if err != nil {
			detail = fmt.Sprintf("%s: %v", message, err)
		}
		if outErr := newFormatter(opts, cmd).Error(code, detail, nil); outErr != nil {
			return outErr
		}
	}
	if err == nil {
		return NewExitError(ExitCommandError, message)
	}
	return WrapExitError(ExitCommandError, message, err)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
