package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/wilofice/enel/internal/config"
	"github.com/wilofice/enel/internal/daemon"
)

func main() {
	configFlag := flag.String("config", "enel.toml", "path to the configuration file")
	flag.Parse()

	// API keys may live in a .env file next to the binary; a missing file
	// is fine, the environment still wins.
	_ = godotenv.Load()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fx.New(daemon.Module(cfg)).Run()
}
