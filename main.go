package main

import (
	"os"

	"github.com/sahilchouksey/college-explorer-api/app"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
)

func main() {
	// setup and run app
	if err := app.SetupAndRunServer(); err != nil {
		logger.Error().Err(err).Msg("server exited")
		os.Exit(1)
	}
}
