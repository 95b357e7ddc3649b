// Package config parses YAML job files for batch extraction.
//
// Example job file:
//
//	input: ${DATA_DIR:-/data}/run42.h5
//	workers: 2
//	log_level: info
//
//	jobs:
//	  - variable: velocity
//	    times: ["0", "1", "2"]
//	    x1: [2, 2, 2]
//	    x2: [4, 4, 4]
//	    output: velocity.tns
//	    codec: lz4
//	  - variable: pressure
//	    times: all
//	    x1: "0,0,0"
//	    x2: "9,9,9"
//	    output: pressure.parquet
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/turbslice/extract"
	"github.com/robert-malhotra/turbslice/internal/logging"
	"github.com/robert-malhotra/turbslice/tensorio"
)

// Config is the root of a job file.
type Config struct {
	// Input is the store every job reads from.
	// Supports ${VAR} and ${VAR:-default}.
	Input string `yaml:"input"`

	// Workers bounds how many jobs run at once. Zero means one per CPU.
	Workers int `yaml:"workers"`

	// LogLevel is debug, info, warn or error. Defaults to info.
	LogLevel string `yaml:"log_level"`

	Jobs []Job `yaml:"jobs"`
}

// Job is one extraction and the file it is saved to.
type Job struct {
	Variable string `yaml:"variable"`

	// Times lists the time keys in output order. Omitted or "all" means
	// every key of the variable in numeric order.
	Times Times `yaml:"times"`

	X1 Corner `yaml:"x1"`
	X2 Corner `yaml:"x2"`

	// Output is the destination path. Supports environment variables.
	Output string `yaml:"output"`

	// Format is tns, parquet or h5. Defaults from the output extension.
	Format tensorio.Format `yaml:"format"`

	// Codec is zstd, lz4 or none. Defaults to zstd.
	Codec string `yaml:"codec"`

	// Level is the compression level, 0 for the codec default.
	Level int `yaml:"level"`

	codec tensorio.Codec
}

// Times selects the time keys of a job.
type Times struct {
	All  bool
	Keys []string
}

// UnmarshalYAML accepts "all", a comma separated string or a sequence of
// keys. Numeric keys are kept as written.
func (t *Times) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		s := strings.TrimSpace(node.Value)
		if s == "" || strings.EqualFold(s, "all") {
			*t = Times{All: true}
			return nil
		}
		*t = Times{Keys: splitList(s)}
		return nil

	case yaml.SequenceNode:
		keys := make([]string, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: time key must be a scalar", item.Line)
			}
			keys = append(keys, item.Value)
		}
		*t = Times{Keys: keys}
		return nil
	}
	return fmt.Errorf("line %d: times must be \"all\", a string or a list", node.Line)
}

// Corner is a 3-D index written as [i, j, k] or "i,j,k".
type Corner [3]int64

// UnmarshalYAML implements yaml.Unmarshaler for Corner.
func (c *Corner) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		p, err := extract.ParseCorner(node.Value)
		if err != nil {
			return fmt.Errorf("line %d: %w", node.Line, err)
		}
		*c = p
		return nil

	case yaml.SequenceNode:
		var vals []int64
		if err := node.Decode(&vals); err != nil {
			return err
		}
		if len(vals) != 3 {
			return fmt.Errorf("line %d: corner needs 3 coordinates, got %d", node.Line, len(vals))
		}
		*c = Corner{vals[0], vals[1], vals[2]}
		return nil
	}
	return fmt.Errorf("line %d: corner must be a list or a string", node.Line)
}

// Request builds the extraction request for the job. keys replaces Times
// when the job selects every time key.
func (j *Job) Request(keys []string) extract.Request {
	if !j.Times.All {
		keys = j.Times.Keys
	}
	return extract.Request{
		Variable: j.Variable,
		TimeKeys: keys,
		X1:       j.X1,
		X2:       j.X2,
	}
}

// Options returns the tensorio options for saving the job output.
func (j *Job) Options() []tensorio.Option {
	return []tensorio.Option{tensorio.WithCodec(j.codec), tensorio.WithLevel(j.Level)}
}

// Load reads and parses a job file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses a job file, expands environment variables in input, output
// and variable, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	for i := range cfg.Jobs {
		if cfg.Jobs[i].Times.Keys == nil {
			cfg.Jobs[i].Times.All = true
		}
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) expandAndValidate() error {
	var err error
	if c.Input, err = expandEnvVars(c.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if c.Input == "" {
		return fmt.Errorf("input is required")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", c.Workers)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	if len(c.Jobs) == 0 {
		return fmt.Errorf("at least one job is required")
	}

	outputs := make(map[string]int, len(c.Jobs))
	for i := range c.Jobs {
		if err := c.Jobs[i].expandAndValidate(); err != nil {
			return fmt.Errorf("jobs[%d]: %w", i, err)
		}
		if prev, ok := outputs[c.Jobs[i].Output]; ok {
			return fmt.Errorf("jobs[%d]: output %q already written by jobs[%d]", i, c.Jobs[i].Output, prev)
		}
		outputs[c.Jobs[i].Output] = i
	}
	return nil
}

func (j *Job) expandAndValidate() error {
	var err error
	if j.Variable, err = expandEnvVars(j.Variable); err != nil {
		return fmt.Errorf("variable: %w", err)
	}
	if j.Variable == "" {
		return fmt.Errorf("variable is required")
	}
	if j.Output, err = expandEnvVars(j.Output); err != nil {
		return fmt.Errorf("(%s) output: %w", j.Variable, err)
	}
	if j.Output == "" {
		return fmt.Errorf("(%s) output is required", j.Variable)
	}
	if !j.Times.All && len(j.Times.Keys) == 0 {
		return fmt.Errorf("(%s) times is an empty list", j.Variable)
	}

	if j.Format == "" {
		j.Format = tensorio.FormatFromPath(j.Output)
	}
	if j.Format, err = tensorio.ParseFormat(string(j.Format)); err != nil {
		return fmt.Errorf("(%s) %w", j.Variable, err)
	}
	if j.codec, err = tensorio.ParseCodec(j.Codec); err != nil {
		return fmt.Errorf("(%s) %w", j.Variable, err)
	}
	if j.Level < 0 {
		return fmt.Errorf("(%s) level cannot be negative, got %d", j.Variable, j.Level)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars substitutes environment variables. A variable that is unset
// and has no default is an error.
func expandEnvVars(s string) (string, error) {
	var firstErr error
	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}
		sub := envVarPattern.FindStringSubmatch(match)
		value, ok := os.LookupEnv(sub[1])
		if ok {
			return value
		}
		if sub[2] != "" {
			return sub[3]
		}
		firstErr = fmt.Errorf("environment variable %q is not set", sub[1])
		return match
	})
	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}
