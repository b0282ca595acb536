package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/FreedomSnow/sinoname/internal"
	"github.com/FreedomSnow/sinoname/internal/config"
	"github.com/FreedomSnow/sinoname/internal/log"
	"github.com/joho/godotenv"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"server": map[string]any{
			"baseURL":        "https://sinoname.yourcompany.com",
			"addr":           ":8080",
			"allowedOrigins": []string{"https://sinoname.yourcompany.com"},
		},
		"auth": map[string]any{
			"idp": map[string]any{
				"provider":     "google",
				"clientId":     "your-google-client-id",
				"clientSecret": map[string]string{"$env": "GOOGLE_CLIENT_SECRET"},
				"redirectUri":  "https://sinoname.yourcompany.com/api/auth/callback",
			},
			"encryptionKey": map[string]string{"$env": "SESSION_ENCRYPTION_KEY"},
			"storage":       "memory",
		},
		"naming": map[string]any{
			"baseURL": "https://naming-api.yourcompany.com",
			"apiKey":  map[string]string{"$env": "NAMING_API_KEY"},
			"timeout": "30s",
		},
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func main() {
	conf := flag.String("config", "", "path to config file (required)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	flag.Parse()

	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *conf == "" {
		fmt.Fprintf(os.Stderr, "Error: -config flag is required\n")
		fmt.Fprintf(os.Stderr, "Run with -help for usage information\n")
		os.Exit(1)
	}

	// A .env file is optional; env vars may come from the environment
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.LogWarn("Failed to load .env file: %v", err)
	}

	cfg, err := config.Load(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting sinoname", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.NewSinoName(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to build application: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to run server: %v", err)
		os.Exit(1)
	}
}
