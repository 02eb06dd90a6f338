// Command migrate applies or rolls back the curator schema using goose.
package main

import (
	"database/sql"
	"flag"
	"log"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/mntogether/curator/internal/database"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up, down, or status")
	migrationsDir := flag.String("dir", "db/migrations", "path to the goose migration files")
	flag.Parse()

	logger := logrus.New()

	cfg := database.DefaultConfig()
	cfg.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid database configuration")
	}

	db, err := sql.Open("pgx", cfg.ConnectionString())
	if err != nil {
		logger.WithError(err).Fatal("failed to open database connection")
	}
	defer db.Close()

	if err := goose.SetDialect("postgres"); err != nil {
		logger.WithError(err).Fatal("failed to set goose dialect")
	}

	switch *direction {
	case "up":
		err = goose.Up(db, *migrationsDir)
	case "down":
		err = goose.Down(db, *migrationsDir)
	case "status":
		err = goose.Status(db, *migrationsDir)
	default:
		log.Fatalf("unknown direction %q, want up, down, or status", *direction)
	}
	if err != nil {
		logger.WithError(err).Fatal("migration failed")
	}
}
