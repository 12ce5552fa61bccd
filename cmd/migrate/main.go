package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"coreops/internal/platform/config"
	"coreops/internal/platform/db"
)

func main() {
	action := flag.String("action", "up", "migration action: up, down, drop or version")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	switch *action {
	case "version":
		version, dirty, err := db.MigrationVersion(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("migration version failed: %v", err)
		}
		fmt.Fprintf(os.Stdout, "version=%d dirty=%t\n", version, dirty)
	case "up", "down", "drop":
		if err := db.RunMigration(cfg.DatabaseURL, *action); err != nil {
			log.Fatalf("migration %s failed: %v", *action, err)
		}
		log.Printf("migration %s complete", *action)
	default:
		log.Fatalf("unknown action %q", *action)
	}
}
