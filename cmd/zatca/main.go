package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/jhoicas/zatca-einvoice/internal/interfaces/cli"
	"github.com/jhoicas/zatca-einvoice/pkg/logger"
)

func main() {
	// .env opcional: sin archivo se usan las variables del entorno
	envErr := godotenv.Load()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	log := logger.New(logger.Config{Env: "development", Level: level, Out: os.Stderr})
	if envErr != nil {
		log.Debug().Err(envErr).Msg("sin archivo .env")
	}

	cli.Execute(log.Component("cli"))
}
