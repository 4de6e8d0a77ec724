package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"log"
	"os"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"naturepark-cloud/internal/flora"
)

// loadflora seeds the flora catalog from a JSON file. Entries whose
// scientific name is already cataloged are skipped, so reruns are safe.

type config struct {
	dsn   string
	file  string
	table string
}

type entry struct {
	ScientificName   string          `json:"scientific_name"`
	CommonNames      string          `json:"common_names"`
	InteractionFauna string          `json:"interaction_fauna"`
	FoodUses         string          `json:"food_uses"`
	MedicinalUses    string          `json:"medicinal_uses"`
	OrnamentalUses   string          `json:"ornamental_uses"`
	TraditionalUses  string          `json:"traditional_uses"`
	AromaticUses     string          `json:"aromatic_uses"`
	UsesFlags        map[string]bool `json:"uses_flags"`
}

func main() {
	cfg := parseConfig()
	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.file == "" {
		log.Fatal("file is required")
	}

	data, err := os.ReadFile(cfg.file)
	if err != nil {
		log.Fatalf("read file: %v", err)
	}
	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Fatalf("decode file: %v", err)
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := flora.NewPostgresRepository(db, flora.WithTable(cfg.table))

	ctx := context.Background()
	created := 0
	skipped := 0
	for _, e := range entries {
		plant := &flora.Plant{
			ID:               uuid.NewString(),
			ScientificName:   e.ScientificName,
			CommonNames:      e.CommonNames,
			InteractionFauna: e.InteractionFauna,
			FoodUses:         e.FoodUses,
			MedicinalUses:    e.MedicinalUses,
			OrnamentalUses:   e.OrnamentalUses,
			TraditionalUses:  e.TraditionalUses,
			AromaticUses:     e.AromaticUses,
			UsesFlags:        e.UsesFlags,
		}
		if err := repo.Create(ctx, plant); err != nil {
			if errors.Is(err, flora.ErrDuplicateName) {
				log.Printf("skipping %s: already cataloged", e.ScientificName)
				skipped++
				continue
			}
			log.Fatalf("create %s: %v", e.ScientificName, err)
		}
		created++
	}
	log.Printf("flora seed completed: created=%d skipped=%d", created, skipped)
}

func parseConfig() config {
	cfg := config{}
	flag.StringVar(&cfg.dsn, "pg-dsn", envOrDefault("PG_DSN", envOrDefault("DATABASE_URL", "")), "Postgres DSN")
	flag.StringVar(&cfg.file, "file", envOrDefault("FLORA_FILE", ""), "path to the flora JSON file")
	flag.StringVar(&cfg.table, "table", envOrDefault("FLORA_TABLE", ""), "plants table name")
	flag.Parse()
	return cfg
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
