// Package config loads the volumectl configuration file.
package config

import (
	_ "embed"
	"encoding/json"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/zeebo/errs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"voxelvault.ai/internal/cell"
)

// Error is the class of configuration errors.
var Error = errs.Class("config")

//go:embed config.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

type Config struct {
	DataDir         string `yaml:"data_dir"`
	BatchSize       int    `yaml:"batch_size"`
	ContainerPolicy string `yaml:"container_policy"`
	Log             Log    `yaml:"log"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() Config {
	return Config{
		DataDir:         "./data",
		BatchSize:       1000,
		ContainerPolicy: "drop",
		Log:             Log{Level: "info"},
	}
}

// Load reads path, or returns Default when path is empty.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, Error.Wrap(err)
	}
	cfg, err := Parse(raw)
	if err != nil {
		return Config{}, Error.New("%s: %v", path, err)
	}
	return cfg, nil
}

// Parse validates raw against the config schema and fills unset keys with
// their defaults.
func Parse(raw []byte) (Config, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return Config{}, Error.Wrap(err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// The validator wants encoding/json shaped values.
	b, err := json.Marshal(doc)
	if err != nil {
		return Config{}, Error.Wrap(err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return Config{}, Error.Wrap(err)
	}
	if err := schema.Validate(v); err != nil {
		return Config{}, Error.Wrap(err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, Error.Wrap(err)
	}
	return cfg, nil
}

func (c Config) Codec() (cell.Codec, error) {
	p, err := cell.ParseContainerPolicy(c.ContainerPolicy)
	if err != nil {
		return cell.Codec{}, Error.Wrap(err)
	}
	return cell.Codec{Containers: p}, nil
}

// Logger builds the process logger. Development loggers are human readable
// and log at debug.
func (c Config) Logger() (*zap.Logger, error) {
	if c.Log.Development {
		return zap.NewDevelopment()
	}
	level := zapcore.InfoLevel
	if c.Log.Level != "" {
		if err := level.Set(c.Log.Level); err != nil {
			return nil, Error.Wrap(err)
		}
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	log, err := zc.Build()
	if err != nil {
		return nil, Error.Wrap(err)
	}
	return log, nil
}
