package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env      string `envconfig:"ENV" default:"local"`
	HTTPHost string `envconfig:"HTTP_HOST" default:""`
	HTTPPort string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"debug"`
	APIKey   string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	// Type is one of "local", "s3" or "memory".
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".delegate/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"delegate/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type SupervisorEnv struct {
	Shell          string        `envconfig:"PROCESS_SHELL" default:"/bin/sh"`
	MaxProcesses   int           `envconfig:"MAX_PROCESSES" default:"32"`
	GracePeriod    time.Duration `envconfig:"GRACE_PERIOD" default:"10s"`
	RetainFinished time.Duration `envconfig:"RETAIN_FINISHED" default:"1h"`
	// Bounds for GetTaskOutput when the caller sends no or an excessive timeout.
	DefaultOutputWait time.Duration `envconfig:"DEFAULT_OUTPUT_WAIT" default:"30s"`
	MaxOutputWait     time.Duration `envconfig:"MAX_OUTPUT_WAIT" default:"10m"`
}

type VAPIDEnv struct {
	PublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	PrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	Subject    string `envconfig:"VAPID_SUBJECT" default:"mailto:admin@example.com"`
}

func (e *VAPIDEnv) Enabled() bool {
	return e != nil && e.PublicKey != "" && e.PrivateKey != ""
}

type Env struct {
	BaseEnv
	StorageEnv
	SupervisorEnv
	VAPIDEnv
}

// ClientEnv configures the delegate CLI.
type ClientEnv struct {
	ServerURL   string `envconfig:"SERVER_URL" default:"http://localhost:3200"`
	APIKey      string `envconfig:"API_KEY"`
	WorkspaceID string `envconfig:"WORKSPACE_ID"`
}

const namespace = "DELEGATE"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func LoadClientEnv() (*ClientEnv, error) {
	var env ClientEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load client env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func BaseEnvFromEnv(env *Env) *BaseEnv {
	return &env.BaseEnv
}

func StorageEnvFromEnv(env *Env) *StorageEnv {
	return &env.StorageEnv
}

func SupervisorEnvFromEnv(env *Env) *SupervisorEnv {
	return &env.SupervisorEnv
}

func VAPIDEnvFromEnv(env *Env) *VAPIDEnv {
	return &env.VAPIDEnv
}
