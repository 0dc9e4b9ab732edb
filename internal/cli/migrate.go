package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/brainway/internal/engine"
	"github.com/roach88/brainway/internal/migrate"
	"github.com/roach88/brainway/internal/policy"
	"github.com/roach88/brainway/internal/record"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	LegacyWay int  // way stored outside the payload by old versions
	Write     bool // import the result into the database
}

// MigrateOutput is the result of the migrate command.
// Replaced is when the record overwritten by --write was last saved.
type MigrateOutput struct {
	Version  int             `json:"version"`
	Record   json.RawMessage `json:"record"`
	Hash     string          `json:"hash"`
	Written  bool            `json:"written"`
	Replaced string          `json:"replaced,omitempty"`
}

func (o MigrateOutput) String() string {
	s := fmt.Sprintf("Detected schema v%d\n%s", o.Version, o.Record)
	if o.Written {
		s += "\nImported into database"
		if o.Replaced != "" {
			s += fmt.Sprintf(" (replaced record saved %s)", o.Replaced)
		}
	}
	return s
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate <file>",
		Short: "Upgrade a saved record to the current schema",
		Long: `Detect the schema of a saved progression record and print it upgraded
to the current schema in canonical form. Use "-" to read stdin.

With --write the upgraded record replaces the one in the database.

Examples:
  brainway migrate backup.json
  brainway migrate old.json --legacy-way 60 --write`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.LegacyWay, "legacy-way", 0, "way to assume when the record has none (30|60|90)")
	cmd.Flags().BoolVar(&opts.Write, "write", false, "store the upgraded record in the database")

	return cmd
}

func runMigrate(opts *MigrateOptions, path string, cmd *cobra.Command) error {
	raw, err := readInput(path, cmd.InOrStdin())
	if errors.Is(err, fs.ErrNotExist) {
		return commandError(opts.RootOptions, cmd, ErrCodeNotFound, "input not found", err)
	}
	if err != nil {
		return reportBadInput(opts.RootOptions, cmd, err)
	}

	var migrateOpts []migrate.Option
	if opts.LegacyWay != 0 {
		way, err := policy.ParseWay(opts.LegacyWay)
		if err != nil {
			return reportBadInput(opts.RootOptions, cmd, err)
		}
		migrateOpts = append(migrateOpts, migrate.WithLegacyWay(way))
	}

	rec, version, err := migrate.Migrate(raw, migrateOpts...)
	if err != nil {
		return reportBadInput(opts.RootOptions, cmd, fmt.Errorf("%s: %w", path, err))
	}
	data, err := record.Marshal(rec)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode record", err)
	}

	result := MigrateOutput{
		Version: int(version),
		Record:  data,
		Hash:    record.HashBytes(data),
	}

	if opts.Write {
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
		prev, found, err := st.Stat(ctx, engine.KeyRecord)
		if err != nil {
			return commandError(opts.RootOptions, cmd, ErrCodeStore, "failed to read record", err)
		}
		if err := st.Set(ctx, engine.KeyRecord, data); err != nil {
			return commandError(opts.RootOptions, cmd, ErrCodeStore, "failed to write record", err)
		}
		if found {
			result.Replaced = prev.UpdatedAt.UTC().Format(time.RFC3339)
			logger.Info("record replaced",
				"from_version", int(version),
				"hash", result.Hash,
				"previous_hash", prev.Hash,
				"previous_saved", result.Replaced,
			)
		} else {
			logger.Info("record imported", "from_version", int(version), "hash", result.Hash)
		}
		result.Written = true
	}

	return newFormatter(opts.RootOptions, cmd).Success(result)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
