package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/ignite/audience-engine/internal/config"
)

func main() {
	var (
		command    = flag.String("command", "", "Migration command: up, down, version, force")
		steps      = flag.Int("steps", 0, "Number of migration steps (for up/down)")
		version    = flag.Int("version", 0, "Migration version (for force)")
		dir        = flag.String("dir", "migrations", "Directory containing migration files")
		configPath = flag.String("config", "config/config.yaml", "Config file used when DATABASE_URL is unset")
	)
	flag.Parse()

	if *command == "" {
		fmt.Println("Usage: migrate -command [up|down|version|force] [options]")
		fmt.Println("Options:")
		fmt.Println("  -steps N       - Number of steps for up/down (down defaults to 1)")
		fmt.Println("  -version N     - Version number for force")
		fmt.Println("  -dir PATH      - Migrations directory (default: migrations)")
		os.Exit(1)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		cfg, err := config.LoadFromEnv(*configPath)
		if err != nil {
			log.Fatalf("DATABASE_URL is unset and config could not be loaded: %v", err)
		}
		dsn = cfg.Database.URL
	}
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+*dir, "postgres", driver)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}
	defer func() {
		if _, err := m.Close(); err != nil {
			log.Printf("Failed to close migration instance: %v", err)
		}
	}()

	switch *command {
	case "up":
		if *steps > 0 {
			err = m.Steps(*steps)
		} else {
			err = m.Up()
		}
		report("up", err)

	case "down":
		n := *steps
		if n <= 0 {
			n = 1
		}
		report("down", m.Steps(-n))

	case "version":
		v, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			fmt.Println("No migrations applied")
			return
		}
		if err != nil {
			log.Fatalf("Failed to get version: %v", err)
		}
		fmt.Printf("Current version: %d (dirty=%t)\n", v, dirty)

	case "force":
		if *version == 0 {
			log.Fatal("Version number required for force command")
		}
		if err := m.Force(*version); err != nil {
			log.Fatalf("Force migration failed: %v", err)
		}
		fmt.Printf("Migration version forced to %d\n", *version)

	default:
		log.Fatalf("Unknown command: %s", *command)
	}
}

func report(direction string, err error) {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No migrations to apply")
		return
	}
	if err != nil {
		log.Fatalf("Migration %s failed: %v", direction, err)
	}
	fmt.Printf("Migration %s complete\n", direction)
}
