package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"passenger-service/internal/infrastructure/config"
	"passenger-service/internal/infrastructure/persistence"
	repo "passenger-service/internal/interface/repository"
	"passenger-service/internal/usecase"
	"passenger-service/pkg/logger"
)

// Seeds passengers from a JSON array of {name, pnr, flightNumber, status}
func main() {
	file := flag.String("file", "passengers.json", "JSON file with passengers to create")
	flag.Parse()

	log := logger.NewLogger()
	defer log.Sync()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config", "error", err)
	}

	raw, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal("Failed to read seed file", "file", *file, "error", err)
	}

	var inputs []usecase.CreatePassengerInput
	if err := json.Unmarshal(raw, &inputs); err != nil {
		log.Fatal("Failed to parse seed file", "file", *file, "error", err)
	}

	ctx := context.Background()

	db, err := persistence.NewPostgresDB(ctx, cfg.PostgresURI, persistence.PostgresOptions{})
	if err != nil {
		log.Fatal("Failed to connect to PostgreSQL", "error", err)
	}
	defer persistence.ClosePostgresDB(db)

	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate schema", "error", err)
	}

	// Creation never publishes, so the relay has no broker behind it
	lifecycle := usecase.NewPassengerLifecycle(repo.NewGormPassengerRepository(db), nil, log)

	created := 0
	for i, in := range inputs {
		p, err := lifecycle.Create(ctx, in)
		if err != nil {
			log.Error("Skipping passenger", "index", i, "name", in.Name, "error", err)
			continue
		}
		log.Info("Passenger created", "id", p.ID, "name", p.Name, "pnr", p.PNR, "flightNumber", p.FlightNumber)
		created++
	}

	log.Info("Seeding complete", "created", created, "total", len(inputs))
}
