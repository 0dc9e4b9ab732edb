// Package config loads brainway configuration from CUE.
//
// The embedded schema (#Config) carries every default. An optional user file
// is unified with it, so a user file only states what it overrides:
//
//	db: "/home/me/.brainway.db"
//	timezone: "Europe/Berlin"
//	way: 60
package config

import (
	_ "embed"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/brainway/internal/policy"
)

//go:embed schema.cue
var schemaCUE string

// Config is the decoded #Config.
type Config struct {
	DB        string `json:"db"`
	Timezone  string `json:"timezone"`
	Way       int    `json:"way"`
	Label     string `json:"label"`
	LogFormat string `json:"logFormat"`
}

// DefaultWay returns Way as a policy.Way.
func (c Config) DefaultWay() policy.Way {
	return policy.Way(c.Way)
}

// Error represents a configuration error with source position.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Default returns the schema defaults.
func Default() (Config, error) {
	return LoadBytes("", nil)
}

// Load reads the CUE file at path and unifies it with the schema.
// An empty path returns the defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(path, data)
}

// LoadBytes unifies CUE source src (named filename in errors) with the
// schema. A nil src returns the defaults.
func LoadBytes(filename string, src []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if src != nil {
		user := ctx.CompileBytes(src, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err)
	}

	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, formatCUEError(err)
	}
	return cfg, nil
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	field := "config"
	if path := first.Path(); len(path) > 0 {
		field = path[len(path)-1]
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		return &Error{
			Field:   field,
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return &Error{Field: field, Message: first.Error()}
}
