package main

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/fantasy-advisor/internal/models"
	"github.com/jstittsworth/fantasy-advisor/pkg/config"
	"github.com/jstittsworth/fantasy-advisor/pkg/database"
)

type tabler interface {
	TableName() string
}

func main() {
	if len(os.Args) < 2 {
		logrus.Fatal("Usage: migrate [create-db|up|down]")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	command := os.Args[1]
	if command == "create-db" {
		if err := createDatabase(cfg.DatabaseURL); err != nil {
			logrus.Fatalf("Failed to create database: %v", err)
		}
		return
	}

	db, err := database.Open(database.Options{URL: cfg.DatabaseURL, MaxOpenConns: 1, Logger: logrus.StandardLogger()})
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	default:
		logrus.Fatalf("Unknown command: %s", command)
	}
}

// createDatabase creates the database named in databaseURL by connecting to
// the server's maintenance database.
func createDatabase(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	name := strings.TrimPrefix(u.Path, "/")
	if name == "" {
		return fmt.Errorf("database URL has no database name")
	}
	u.Path = "/postgres"

	conn, err := pq.ParseURL(u.String())
	if err != nil {
		return fmt.Errorf("invalid database URL: %w", err)
	}
	sqlDB, err := sql.Open("postgres", conn)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", name).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check for database %s: %w", name, err)
	}
	if exists {
		logrus.Infof("Database %s already exists", name)
		return nil
	}
	if _, err := sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to create database %s: %w", name, err)
	}
	logrus.Infof("Database %s created", name)
	return nil
}

func runMigrations(db *database.DB) error {
	if err := db.Migrate(models.All()...); err != nil {
		return err
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_weekly_stats_player_season ON weekly_stats(player_id, season, week DESC)",
		"CREATE INDEX IF NOT EXISTS idx_injury_alerts_league_created ON injury_alerts(league_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_injury_alerts_unacked ON injury_alerts(user_id) WHERE acknowledged = false",
	}
	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}

func dropTables(db *database.DB) error {
	all := models.All()
	// Reverse order so dependent tables go first.
	for i := len(all) - 1; i >= 0; i-- {
		t, ok := all[i].(tabler)
		if !ok {
			continue
		}
		stmt := fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", pq.QuoteIdentifier(t.TableName()))
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to drop table %s: %w", t.TableName(), err)
		}
	}
	return nil
}
