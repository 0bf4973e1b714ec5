package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR targets an already running server, an in-process one is started when empty
	ServerAddr string `envconfig:"SERVER_ADDR"`
	// UPLOAD_ROOT is where that server stores files, required to check them on disk
	UploadRoot string `envconfig:"UPLOAD_ROOT"`
	// E2E_DEBUG_MESSAGES dumps every streamed message
	DebugMessages bool `envconfig:"E2E_DEBUG_MESSAGES" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
