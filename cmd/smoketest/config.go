package main

import (
	"context"
	"os"
	"time"

	"github.com/lodthe/graphql-smoketest/internal/authtoken"
	"github.com/lodthe/graphql-smoketest/internal/scenario"
	"github.com/lodthe/graphql-smoketest/internal/smokeprocessor"
	"github.com/lodthe/graphql-smoketest/internal/stubserver"

	"github.com/aws/aws-sdk-go-v2/aws"
	gconfig "github.com/gookit/config/v2"
	gyaml "github.com/gookit/config/v2/yaml"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

const DefaultConfigPath = "smoketest.yml"
const DefaultSQLitePath = "smoke_runs.db"
const DefaultRunsTable = "SmokeRuns"

type LogFormat string

const (
	PrettyLogFormat LogFormat = "pretty"
	JSONLogFormat   LogFormat = "json"
)

type StorageType string

const (
	StorageNone     StorageType = "none"
	StorageSQLite   StorageType = "sqlite"
	StorageDynamoDB StorageType = "dynamodb"
)

type Config struct {
	LogLevel  string    `mapstructure:"log_level"`
	LogFormat LogFormat `mapstructure:"log_format"`

	// PrometheusExportAddress enables the /metrics listener when not empty.
	PrometheusExportAddress string `mapstructure:"prometheus_address"`

	Targets []smokeprocessor.Target `mapstructure:"targets"`

	Client  Client  `mapstructure:"client"`
	Smoke   Smoke   `mapstructure:"smoke"`
	Storage Storage `mapstructure:"storage"`
	AWS     AWS     `mapstructure:"aws"`
	Auth    Auth    `mapstructure:"auth"`
	Stub    Stub    `mapstructure:"stub"`
}

type Client struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	MaxRPS    int           `mapstructure:"max_rps"`
	UserAgent string        `mapstructure:"user_agent"`
}

type Smoke struct {
	Mode        smokeprocessor.Mode `mapstructure:"mode"`
	Scenarios   []string            `mapstructure:"scenarios"`
	Concurrency int                 `mapstructure:"concurrency"`
	Delay       time.Duration       `mapstructure:"delay"`
	OutputPath  string              `mapstructure:"output_path"`
	Percentiles []int               `mapstructure:"percentiles"`

	Params scenario.Params `mapstructure:"params"`
}

type Storage struct {
	Type       StorageType `mapstructure:"type"`
	SQLitePath string      `mapstructure:"sqlite_path"`
}

type AWS struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Region          string `mapstructure:"region"`

	RunsTableName string `mapstructure:"runs_table"`
}

// Auth describes the token attached to catalogue mutations when smoke.params.token is empty.
type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`

	UserID uint   `mapstructure:"user_id"`
	Email  string `mapstructure:"email"`
	Role   string `mapstructure:"role"`
}

type Stub struct {
	ListeningAddress string        `mapstructure:"address"`
	ServerTimeout    time.Duration `mapstructure:"server_timeout"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	SeedProducts     int           `mapstructure:"seed_products"`
}

// LoadConfig reads the yaml config. A missing file at the default path is not an error,
// every field gets its default value then.
func LoadConfig() (*Config, error) {
	path := os.Getenv("SMOKETEST_CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath
	}

	gconfig.WithOptions(
		gconfig.ParseEnv,
		gconfig.Readonly,
		func(opts *gconfig.Options) {
			opts.DecoderConfig = &mapstructure.DecoderConfig{
				TagName:          "mapstructure",
				WeaklyTypedInput: true,
				DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
			}
		},
	)
	gconfig.AddDriver(gyaml.Driver)

	cfg := new(Config)
	cfg.Smoke.Params = scenario.DefaultParams

	_, statErr := os.Stat(path)
	if explicit || statErr == nil {
		err := gconfig.LoadFiles(path)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config")
		}

		err = gconfig.BindStruct("", cfg)
		if err != nil {
			return nil, errors.Wrap(err, "config binding failed")
		}
	}

	err := cfg.validate()
	if err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return cfg, nil
}

// validate verifies the loaded config and sets default values for missed fields.
func (c *Config) validate() error {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	switch c.LogFormat {
	case "":
		c.LogFormat = PrettyLogFormat
	case PrettyLogFormat, JSONLogFormat:
	default:
		return errors.Errorf("unknown log format %s (supported: %s, %s)", c.LogFormat, PrettyLogFormat, JSONLogFormat)
	}

	for i := range c.Targets {
		t := &c.Targets[i]
		if t.Endpoint == "" {
			return errors.Errorf("targets[%d].endpoint is required", i)
		}
		if t.Name == "" {
			t.Name = t.Endpoint
		}
	}

	if c.Client.Timeout < 0 {
		return errors.New("client.timeout cannot be negative")
	}
	if c.Client.MaxRPS < 0 {
		return errors.New("client.max_rps cannot be negative")
	}
	if c.Client.UserAgent == "" {
		c.Client.UserAgent = "graphql-smoketest"
	}

	switch c.Smoke.Mode {
	case "":
		c.Smoke.Mode = smokeprocessor.SerialMode
	case smokeprocessor.SerialMode, smokeprocessor.ParallelMode:
	default:
		return errors.Errorf("unknown smoke.mode %s (supported: %s, %s)", c.Smoke.Mode, smokeprocessor.SerialMode, smokeprocessor.ParallelMode)
	}
	if c.Smoke.Concurrency <= 0 {
		c.Smoke.Concurrency = smokeprocessor.DefaultConcurrency
	}
	if len(c.Smoke.Percentiles) == 0 {
		c.Smoke.Percentiles = []int{50, 90, 99}
	}
	for _, p := range c.Smoke.Percentiles {
		if p <= 0 || p > 100 {
			return errors.Errorf("smoke.percentiles: %d is out of (0, 100]", p)
		}
	}

	_, err := scenario.Select(c.Smoke.Scenarios, c.Smoke.Params)
	if err != nil {
		return errors.Wrap(err, "smoke.scenarios")
	}

	switch c.Storage.Type {
	case "":
		c.Storage.Type = StorageNone
	case StorageNone:
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			c.Storage.SQLitePath = DefaultSQLitePath
		}
	case StorageDynamoDB:
		if c.AWS.Region == "" {
			return errors.New("aws.region is required when storage.type is dynamodb")
		}
	default:
		return errors.Errorf("unknown storage type %s (supported: %s, %s, %s)", c.Storage.Type, StorageNone, StorageSQLite, StorageDynamoDB)
	}

	if c.AWS.RunsTableName == "" {
		c.AWS.RunsTableName = DefaultRunsTable
	}

	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = authtoken.DefaultTTL
	}
	if c.Auth.UserID == 0 {
		c.Auth.UserID = 1
	}
	if c.Auth.Email == "" {
		c.Auth.Email = "admin@example.com"
	}
	if c.Auth.Role == "" {
		c.Auth.Role = "admin"
	}

	if c.Stub.ListeningAddress == "" {
		c.Stub.ListeningAddress = ":8081"
	}
	if c.Stub.ServerTimeout == 0 {
		c.Stub.ServerTimeout = stubserver.DefaultTimeout
	}
	if c.Stub.SeedProducts < 0 {
		return errors.New("stub.seed_products cannot be negative")
	}

	return nil
}

// jwtSecret prefers the configured secret and falls back to JWT_SECRET from the environment or .env.
func jwtSecret(configured string) string {
	if configured != "" {
		return configured
	}

	return authtoken.SecretFromEnv(".env")
}

func (c *Config) Retrieve(_ context.Context) (aws.Credentials, error) {
	return aws.Credentials{
		AccessKeyID:     c.AWS.AccessKeyID,
		SecretAccessKey: c.AWS.SecretAccessKey,
		Source:          "local config",
	}, nil
}
