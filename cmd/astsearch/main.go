package main

import (
	"github.com/joho/godotenv"

	"github.com/compozy/astsearch/cmd/astsearch/commands"
	"github.com/compozy/astsearch/pkg/logger"
)

func main() {
	// Load .env if present; missing files are fine
	_ = godotenv.Load()

	logger.InitLogger()
	commands.Execute()
}
