// Package config loads the harness configuration file: the simulator profiles with their
// endpoints and form-to-test mappings, plus the transaction store, archive, executor, feed and
// control API settings.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rfd-conformance/rfd-test-harness/archive"
	"github.com/rfd-conformance/rfd-test-harness/feed"
	"github.com/rfd-conformance/rfd-test-harness/framework/helpers"
	"github.com/rfd-conformance/rfd-test-harness/rfd"
	"github.com/rfd-conformance/rfd-test-harness/simulator"
	"github.com/rfd-conformance/rfd-test-harness/store"
)

const (
	DefaultApplication = "rfd"
	DefaultHost        = "localhost"
	DefaultPort        = 8090
	DefaultProfile     = "default"
	DefaultControlPort = 8091
)

var ErrUnknownProfile = errors.New("unknown profile")

type Config struct {
	BaseDir     string             `yaml:"-"` // directory of the config file, for relative paths
	Application string             `yaml:"application"`
	Host        string             `yaml:"host"`
	Port        int                `yaml:"port" validate:"omitempty,min=1,max=65535"`
	Profiles    map[string]Profile `yaml:"profiles" validate:"required,min=1,dive"`
	Store       store.Config       `yaml:"store"`
	Archive     archive.Config     `yaml:"archive"`
	Executor    ExecutorConfig     `yaml:"executor"`
	Feed        FeedConfig         `yaml:"feed"`
	Control     ControlConfig      `yaml:"control"`
	Files       FilesConfig        `yaml:"files"`
}

type Profile struct {
	Endpoints []simulator.EndpointConfig `yaml:"endpoints" validate:"required,unique=Name,dive"`
}

type ExecutorConfig struct {
	Workers     int           `yaml:"workers" validate:"min=1"`
	Queue       int           `yaml:"queue" validate:"min=1"`
	SinkTimeout time.Duration `yaml:"sinkTimeout"`
}

// FeedConfig.Replay is a pointer so that an explicit 0 turns replay off.
type FeedConfig struct {
	Replay *int `yaml:"replay" validate:"omitempty,min=0"`
}

// ReplayCount is the number of recent records sent to new feed subscribers.
func (f FeedConfig) ReplayCount() int {
	if f.Replay == nil {
		return feed.DefaultReplay
	}
	return *f.Replay
}

type ControlConfig struct {
	Port int `yaml:"port" validate:"omitempty,min=1,max=65535"`
}

type FilesConfig struct {
	Dir string `yaml:"dir"`
}

// Load reads a YAML configuration file. Environment variables in the file are expanded, defaults
// are filled in and the result is validated.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse([]byte(os.ExpandEnv(string(content))))
	if err != nil {
		return nil, err
	}
	cfg.BaseDir = filepath.Dir(path)
	return cfg, nil
}

// Parse decodes and validates configuration data.
func Parse(data []byte) (*Config, error) {
	cfg := new(Config)
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("decode config file: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default is the configuration used when no config file exists: a single profile with one
// endpoint per actor, all backed by the built-in tests.
func Default() *Config {
	formURL := simulator.Params{"url": "http://forms.example.org/rfd/sample"}
	cfg := &Config{
		Profiles: map[string]Profile{
			DefaultProfile: {Endpoints: []simulator.EndpointConfig{
				{
					Name:    "FormManager",
					Actor:   rfd.ActorFormManager,
					Path:    "/FormManager",
					Capture: []string{"workflowData/formID", "age"},
					Tests: simulator.TestsConfig{
						Default: &simulator.TestRef{Test: simulator.TestStaticURL, Params: formURL},
						Forms: map[string]simulator.TestRef{
							"structured-form": {Test: simulator.TestStructuredForm},
							"age-form":        {Test: simulator.TestPrepopAge, Params: formURL},
							"fault-form": {Test: simulator.TestFault, Params: simulator.Params{
								"code": "Sender", "status": rfd.StatusUnknownFormID, "reason": "form is withdrawn",
							}},
						},
					},
				},
				{
					Name:    "FormReceiver",
					Actor:   rfd.ActorFormReceiver,
					Path:    "/FormReceiver",
					Capture: []string{"formID"},
					Tests: simulator.TestsConfig{
						Default: &simulator.TestRef{Test: simulator.TestAcceptSubmit},
					},
				},
				{
					Name:  "FormProcessor",
					Actor: rfd.ActorFormProcessor,
					Path:  "/FormProcessor",
					Tests: simulator.TestsConfig{
						Default: &simulator.TestRef{Test: simulator.TestStaticURL, Params: formURL},
						Forms: map[string]simulator.TestRef{
							"submit-form": {Test: simulator.TestAcceptSubmit},
						},
					},
				},
				{
					Name:  "FormArchiver",
					Actor: rfd.ActorFormArchiver,
					Path:  "/FormArchiver",
					Tests: simulator.TestsConfig{
						Default: &simulator.TestRef{Test: simulator.TestArchive},
					},
				},
			}},
		},
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Application == "" {
		c.Application = DefaultApplication
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Store.Type == "" {
		c.Store.Type = store.TypeMemory
	}
	if c.Archive.Type == "" {
		c.Archive.Type = archive.TypeFile
	}
	if c.Archive.Type == archive.TypeFile && c.Archive.Dir == "" {
		c.Archive.Dir = "archive"
	}
	if c.Executor.Workers == 0 {
		c.Executor.Workers = 4
	}
	if c.Executor.Queue == 0 {
		c.Executor.Queue = 256
	}
	if c.Control.Port == 0 {
		c.Control.Port = DefaultControlPort
	}
	if c.Feed.Replay == nil {
		replay := feed.DefaultReplay
		c.Feed.Replay = &replay
	}
}

// Validate checks the structural rules with validator and then that every test an endpoint
// refers to is registered.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	for name, p := range c.Profiles {
		for _, e := range p.Endpoints {
			if err := e.CheckTests(); err != nil {
				return fmt.Errorf("profile %q: %w", name, err)
			}
		}
	}
	return nil
}

// Profile returns the named profile.
func (c *Config) Profile(name string) (Profile, error) {
	p, ok := c.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w %q (have %s)", ErrUnknownProfile, name, strings.Join(c.ProfileNames(), ", "))
	}
	return p, nil
}

func (c *Config) ProfileNames() []string {
	return helpers.SortedKeys(c.Profiles)
}

// ResolvePath makes a path from the config file relative to the file's directory.
func (c *Config) ResolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) || c.BaseDir == "" {
		return path
	}
	return filepath.Join(c.BaseDir, path)
}
