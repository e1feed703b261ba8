package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/navikt/avtalt/internal/cli"
	"github.com/navikt/avtalt/internal/config"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run() error {
	// A local .env is optional; the environment wins either way
	_ = godotenv.Load()

	serverConfig, err := config.GetServerConfig()
	if err != nil {
		return err
	}
	redisConfig, err := config.GetRedisConfig()
	if err != nil {
		return err
	}
	negotiationConfig, err := config.GetNegotiationConfig()
	if err != nil {
		return err
	}

	deps := &cli.Dependencies{
		ServerConfig:      serverConfig,
		RedisConfig:       redisConfig,
		NegotiationConfig: negotiationConfig,
		Out:               os.Stdout,
	}

	return cli.NewRootCmd(deps).Execute()
}
