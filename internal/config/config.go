package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

const (
	DefaultUpdateInterval   = 400 * time.Millisecond
	DefaultCatchupInterval  = 2 * time.Second
	DefaultCatchupBatchSize = 64
	DefaultQueueSize        = 256
	DefaultRPCTimeout       = 15 * time.Second
	DefaultListenAddress    = "127.0.0.1:8081"
)

type Config struct {
	Environment string        `yaml:"environment" validate:"required,oneof=production development"`
	RPC         RPCConfig     `yaml:"rpc"         validate:"required"`
	Indexer     IndexerConfig `yaml:"indexer"`
	API         APIConfig     `yaml:"api"`
	Store       StoreConfig   `yaml:"store"`
	NATS        NATSConfig    `yaml:"nats"`
}

type RPCConfig struct {
	URL     string        `yaml:"url"     validate:"required,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type IndexerConfig struct {
	// UpdateInterval is the head polling cadence.
	UpdateInterval time.Duration `yaml:"update_interval"`
	// CatchupInterval is the gap reconciliation cadence.
	CatchupInterval time.Duration `yaml:"catchup_interval"`
	// CatchupBatchSize bounds how many missing slots one catchup cycle enqueues.
	CatchupBatchSize int `yaml:"catchup_batch_size" validate:"min=0"`
	// QueueSize bounds the fetch-request channel shared by fetcher and catchup.
	QueueSize int `yaml:"queue_size" validate:"min=0"`
}

type APIConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

type StoreConfig struct {
	Badger BadgerConfig `yaml:"badger"`
}

type BadgerConfig struct {
	Directory string `yaml:"directory"`
	Prefix    string `yaml:"prefix"`
}

type NATSConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads a YAML config file and applies defaults. Validation is deferred
// to Validate so CLI flags can override file values first.
func Load(path string) (Config, error) {
	var cfg Config
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

// Default returns a config with defaults only, for flag-driven runs without a file.
func Default() Config {
	var cfg Config
	cfg.ApplyDefaults()
	return cfg
}

func (c *Config) ApplyDefaults() {
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.RPC.Timeout <= 0 {
		c.RPC.Timeout = DefaultRPCTimeout
	}
	if key := os.Getenv("RPC_API_KEY"); key != "" && c.RPC.APIKey == "" {
		c.RPC.APIKey = key
	}
	if c.Indexer.UpdateInterval <= 0 {
		c.Indexer.UpdateInterval = DefaultUpdateInterval
	}
	if c.Indexer.CatchupInterval <= 0 {
		c.Indexer.CatchupInterval = DefaultCatchupInterval
	}
	if c.Indexer.CatchupBatchSize <= 0 {
		c.Indexer.CatchupBatchSize = DefaultCatchupBatchSize
	}
	if c.Indexer.QueueSize <= 0 {
		c.Indexer.QueueSize = DefaultQueueSize
	}
	if c.API.ListenAddress == "" {
		c.API.ListenAddress = DefaultListenAddress
	}
	if c.Store.Badger.Directory == "" {
		c.Store.Badger.Directory = "data/badger"
	}
	if c.NATS.SubjectPrefix == "" {
		c.NATS.SubjectPrefix = "soldag"
	}
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	return nil
}
