package main

import (
	"os"

	"github.com/sakopay/ussd/internal/api"
	"github.com/sakopay/ussd/pkg/utils"
)

// Start the USSD engine API server
func main() {
	// Find env file
	envFile := ".env"
	if os.Getenv("ENV_FILE") != "" {
		envFile = os.Getenv("ENV_FILE")
	}

	// Load global config
	cfg := utils.NewConfigFromEnv(envFile)

	// Start
	api.Start(cfg)
}
