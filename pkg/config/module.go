package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	J "cuelang.org/go/encoding/json"
	"cuelang.org/go/encoding/yaml"
	"github.com/caarlos0/env/v11"
)

//go:embed schema.cue
var schemaFile string

//go:embed default.yaml
var DEFAULT []byte

// readFile builds a cue value from a JSON or YAML file. The format is taken
// from the extension.
func readFile(ctx *cue.Context, path string) (*cue.Value, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("does not exist")
	}

	switch filepath.Ext(path) {
	case ".json":
		dataFile, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		dataExpr, err := J.Extract(path, dataFile)
		if err != nil {
			return nil, err
		}

		value := ctx.BuildExpr(dataExpr)
		if err := value.Err(); err != nil {
			return nil, err
		}
		return &value, nil
	case ".yaml", ".yml":
		yamlFile, err := yaml.Extract(path, nil)
		if err != nil {
			return nil, err
		}

		value := ctx.BuildFile(yamlFile)
		if err := value.Err(); err != nil {
			return nil, err
		}
		return &value, nil
	}

	return nil, fmt.Errorf("not in a valid format")
}

// readDefault builds the embedded default.yaml.
func readDefault(ctx *cue.Context) (*cue.Value, error) {
	yamlFile, err := yaml.Extract("<default>", DEFAULT)
	if err != nil {
		return nil, err
	}

	value := ctx.BuildFile(yamlFile)
	if err := value.Err(); err != nil {
		return nil, err
	}
	return &value, nil
}

// Process reads the provided configuration files in order and unifies them
// with the schema. If no files are provided, the embedded default
// configuration is used instead.
//
// Unification is not an override: two files that set the same field to
// different values are rejected. Fields no file sets take the schema's
// defaults, and the schema's constraints (at least one round, maxPlayers
// not below minPlayers) are checked once every file has been applied.
func Process(configPaths []string) (*Config, error) {
	ctx := cuecontext.New()

	// The schema carries both the defaults and the constraints.
	schema := ctx.CompileString(schemaFile)
	if err := schema.Err(); err != nil {
		return nil, err
	}

	if len(configPaths) == 0 {
		value, err := readDefault(ctx)
		if err != nil {
			return nil, err
		}

		schema = schema.Unify(*value)
		if err := schema.Err(); err != nil {
			return nil, fmt.Errorf("invalid default config file: %v", err)
		}
	}

	for _, path := range configPaths {
		value, err := readFile(ctx, path)
		if err != nil {
			return nil, fmt.Errorf(
				"could not process config file %s: %v",
				path,
				err,
			)
		}

		schema = schema.Unify(*value)

		// Catch a bad file here so the error can name it.
		if err := schema.Err(); err != nil {
			return nil, fmt.Errorf(
				"could not merge config file %s: %v",
				path,
				err,
			)
		}

		if err := schema.Validate(); err != nil {
			return nil, fmt.Errorf(
				"config file %s is not valid: %v",
				path,
				err,
			)
		}
	}

	// Every field must have a value by now, either from a file or from a
	// schema default.
	if err := schema.Validate(cue.Concrete(true)); err != nil {
		return nil, err
	}

	// encoding/json matches the schema's camelCase names to Config's fields
	// case-insensitively, so Config needs no tags.
	data, err := schema.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("could not aggregate config: %v", err)
	}

	config := Config{}
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, err
	}

	return &config, nil
}

// Load processes the configuration files and then applies SPLEEF_*
// environment overrides to the server settings.
func Load(configPaths []string) (*Config, error) {
	config, err := Process(configPaths)
	if err != nil {
		return nil, err
	}

	// Only server settings are read from the environment. Game rules and
	// arenas come from files.
	if err := env.Parse(&config.Server); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	// The schema already bounds lanes, but SPLEEF_LANES bypasses it.
	if config.Server.Lanes < 1 {
		return nil, fmt.Errorf("server.lanes must be at least 1")
	}

	return config, nil
}
