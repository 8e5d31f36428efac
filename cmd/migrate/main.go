// migrate applies the embedded SQL migrations to the configured database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/tendant/pawfinder/internal/config"
	"github.com/tendant/pawfinder/pkg/repository"
)

func main() {
	direction := flag.String("direction", repository.DirectionUp, "Migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	if cfg.Storage != config.StoragePostgres {
		fmt.Fprintf(os.Stderr, "STORAGE=%s has nothing to migrate\n", cfg.Storage)
		os.Exit(1)
	}

	dsn := repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}.DSN()

	if err := repository.Migrate(dsn, *direction); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
	fmt.Println("migrations", *direction, "complete")
}
