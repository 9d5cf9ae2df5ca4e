package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/Yoitsuro/mySkripsiWebsite/internal/di"
	"github.com/Yoitsuro/mySkripsiWebsite/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	log.Printf("env=%s symbol=%s timeframe=%s source=%s backend=%s cache=%s",
		cfg.Environment, cfg.Forecast.Symbol, cfg.Forecast.Timeframe,
		cfg.Exchange.Source, cfg.Backend.Type, cfg.Cache.Type)

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	err = app.Run()
	cleanup()
	if err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
