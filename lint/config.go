package lint

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/gnolang/smartcast/internal/smartcast"
	tt "github.com/gnolang/smartcast/internal/types"
)

// DefaultConfigPath is where init writes and every command reads by default.
const DefaultConfigPath = ".smartcast.yaml"

// Config is the content of the configuration file.
type Config struct {
	Name   string       `yaml:"name"`
	Engine EngineConfig `yaml:"engine"`
	// Hierarchy declares named types and their direct supertypes for
	// scenarios that do not bring their own.
	Hierarchy map[string][]string      `yaml:"hierarchy,omitempty"`
	Rules     map[string]tt.ConfigRule `yaml:"rules"`
}

type EngineConfig struct {
	MaxApprovalDepth int `yaml:"max_approval_depth"`
	// MaxComplexity skips functions above this cyclomatic complexity.
	// Zero means no limit.
	MaxComplexity int `yaml:"max_complexity,omitempty"`
	// Workers bounds concurrent file analysis. Zero means one per CPU.
	Workers int `yaml:"workers"`
}

func DefaultConfig() Config {
	return Config{
		Name: "smartcast",
		Engine: EngineConfig{
			MaxApprovalDepth: smartcast.DefaultOptions().MaxApprovalDepth,
		},
		Rules: map[string]tt.ConfigRule{
			smartcast.RuleNilCheck:  {Severity: tt.SeverityWarning},
			smartcast.RuleAssertion: {Severity: tt.SeverityWarning},
		},
	}
}

// LoadConfig decodes path over the defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&config); err != nil {
		return config, fmt.Errorf("parsing %s: %w", path, err)
	}
	return config, nil
}

// WriteConfig writes config to path, replacing any existing file.
func WriteConfig(path string, config Config) error {
	d, err := yaml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, d, 0o644)
}

// Options translates the config into analyzer options. A rule whose
// severity is off is not computed at all.
func (c Config) Options() smartcast.Options {
	opts := smartcast.DefaultOptions()
	if c.Engine.MaxApprovalDepth > 0 {
		opts.MaxApprovalDepth = c.Engine.MaxApprovalDepth
	}
	opts.MaxComplexity = c.Engine.MaxComplexity
	opts.NilChecks = c.severity(smartcast.RuleNilCheck) != tt.SeverityOff
	opts.Assertions = c.severity(smartcast.RuleAssertion) != tt.SeverityOff
	return opts
}

func (c Config) severity(rule string) tt.Severity {
	if r, ok := c.Rules[rule]; ok {
		return r.Severity
	}
	return tt.SeverityWarning
}

func (c Config) workers() int {
	if c.Engine.Workers > 0 {
		return c.Engine.Workers
	}
	return runtime.NumCPU()
}
