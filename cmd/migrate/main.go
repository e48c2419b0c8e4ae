package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/aimsgrid/governance-engine/internal/infrastructure/config"
)

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, steps, version, force")
		steps  = flag.Int("steps", 0, "Number of migrations for the steps action (negative rolls back)")
		target = flag.Int("target", -1, "Version for the force action")
		dir    = flag.String("dir", "migrations", "Migrations directory")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	m, err := migrate.New("file://"+*dir, cfg.Database.URL)
	if err != nil {
		log.Fatalf("failed to open migrator: %v", err)
	}
	defer m.Close()

	switch *action {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		if *steps == 0 {
			log.Fatal("steps action requires a non-zero -steps value")
		}
		err = m.Steps(*steps)
	case "version":
		version, dirty, verr := m.Version()
		if verr != nil {
			log.Fatalf("failed to read version: %v", verr)
		}
		fmt.Printf("version=%d dirty=%v\n", version, dirty)
		return
	case "force":
		if *target < 0 {
			log.Fatal("force action requires a non-negative -target version")
		}
		err = m.Force(*target)
	default:
		log.Printf("unknown action %q", *action)
		os.Exit(1)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		log.Println("no pending migrations")
		return
	}
	if err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	log.Println("migrations applied")
}
