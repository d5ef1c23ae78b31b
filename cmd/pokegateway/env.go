package main

import (
	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Env is the process configuration. Client configuration lives in the
// YAML file it points at.
type Env struct {
	ConfigPath  string        `env:"CONFIG_PATH" envDefault:"."`
	ConfigName  string        `env:"CONFIG_NAME" envDefault:"config"`
	ListenAddr  string        `env:"LISTEN_ADDR" envDefault:":8080"`
	LogLevel    zapcore.Level `env:"LOG_LEVEL" envDefault:"info"`
	NatsURL     string        `env:"NATS_URL"`
	EventTopic  string        `env:"EVENT_TOPIC" envDefault:"httpx.calls"`
	TraceStdout bool          `env:"TRACE_STDOUT"`
	Workers     int           `env:"WORKERS" envDefault:"8"`
}

func ParseEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return e, errors.Wrap(err, "failed to parse environment")
	}
	return e, nil
}
