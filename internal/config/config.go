package config

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Config interface {
	EnvConfig
	TokenConfig
	SecurityConfig
	StorageConfig
	NotifyConfig
	CorsConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetBaseURL() string
	GetLogLevel() string
	GetEnv() string
	IsProduction() bool
}

type mainConfig struct {
	EnvVars
	Token
	Security
	Storage
	Notify
	Cors
}

func New() Config {
	return mainConfig{}
}

// Load reads the given .env files into the process environment before
// building the config. Missing files are skipped and variables already set
// in the environment win.
func Load(files ...string) Config {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			log.Debug().Str("file", f).Msg("env file not loaded")
		}
	}
	return New()
}
