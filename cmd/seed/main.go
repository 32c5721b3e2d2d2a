// Command seed migrates the database and loads the sample catalog.
package main

import (
	"context"
	"flag"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/config"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/database"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository/postgres"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/seed"
)

func main() {
	days := flag.Int("days", 7, "number of days of slots to create")
	email := flag.String("demo-email", "demo@example.com", "demo user email, empty to skip")
	password := flag.String("demo-password", "demo1234", "demo user password")
	flag.Parse()

	cfg, err := config.Load("config", ".")
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	if cfg.Database.Driver != "postgres" {
		logrus.Fatalf("seed needs database.driver postgres, got %q", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		logrus.Fatalf("database: %v", err)
	}
	store := postgres.NewStore(pool)
	defer store.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logrus.Fatalf("migrate: %v", err)
	}

	tomorrow := time.Now().AddDate(0, 0, 1)
	if _, err := seed.Run(ctx, store.Repos(), seed.Options{
		From:         time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), 0, 0, 0, 0, time.UTC),
		Days:         *days,
		DemoEmail:    *email,
		DemoPassword: *password,
	}); err != nil {
		logrus.Fatalf("seed: %v", err)
	}
}
