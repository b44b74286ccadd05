package dynolayer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Environment variables read by LoadConfig.
const (
	EnvRegion     = "AWS_REGION"
	EnvEndpoint   = "DYNOLAYER_ENDPOINT"
	EnvProfile    = "AWS_PROFILE"
	EnvLogLevel   = "DYNOLAYER_LOG_LEVEL"
	EnvLogFormat  = "DYNOLAYER_LOG_FORMAT"
	EnvLogEnabled = "DYNOLAYER_LOG_ENABLED"
)

// DefaultRegion is used when AWS_REGION is not set.
const DefaultRegion = "sa-east-1"

// Config holds the settings needed to build a client and a logger.
type Config struct {
	Region   string `validate:"required"`
	Endpoint string `validate:"omitempty,url"` // DynamoDB Local or another compatible endpoint
	Profile  string
	Log      LogConfig
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level   string `validate:"omitempty,oneof=trace debug info warn error fatal panic disabled"`
	Format  string `validate:"omitempty,oneof=json console"`
	Enabled bool
}

// LoadConfig loads the given .env files, when they exist, and reads the
// configuration from the environment. Variables already set in the environment
// take precedence over the files.
func LoadConfig(files ...string) (Config, error) {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := Config{
		Region:   getenv(EnvRegion, DefaultRegion),
		Endpoint: os.Getenv(EnvEndpoint),
		Profile:  os.Getenv(EnvProfile),
		Log: LogConfig{
			Level:   strings.ToLower(getenv(EnvLogLevel, "info")),
			Format:  strings.ToLower(getenv(EnvLogFormat, "json")),
			Enabled: true,
		},
	}

	if v := os.Getenv(EnvLogEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", EnvLogEnabled, err)
		}
		cfg.Log.Enabled = enabled
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, e := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed on '%s'", e.Namespace(), e.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// NewClient builds a dynamodb client from the configuration. With an endpoint the
// client talks to it using static local credentials.
func NewClient(ctx context.Context, cfg Config) (*dynamodb.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
