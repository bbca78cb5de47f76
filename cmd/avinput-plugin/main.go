// avinput-plugin serves the AVI input adapter to a host process over
// the go-plugin handshake.
package main

import (
	"os"

	"github.com/mantonx/avinput/internal/config"
	"github.com/mantonx/avinput/internal/input"
	"github.com/mantonx/avinput/internal/logger"
	"github.com/mantonx/avinput/pkg/inputplugin"
)

func main() {
	cfg := config.GetManager()
	if path := os.Getenv("AVINPUT_CONFIG"); path != "" {
		if err := cfg.LoadFromFile(path); err != nil {
			logger.Warn("loading config failed, using defaults: %v", err)
		}
	}

	inputplugin.Serve(input.NewPlugin(input.WithConfigManager(cfg)))
}
