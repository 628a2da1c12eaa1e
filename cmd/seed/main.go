package main

import (
	"context"
	"log"

	"github.com/safar/quickcart/internal/config"
	"github.com/safar/quickcart/internal/database"
	"github.com/safar/quickcart/internal/seed"
	"github.com/spf13/pflag"
)

func main() {
	file := pflag.StringP("file", "f", "seed/catalog.yaml", "seed catalog to load")
	envFile := pflag.String("env-file", ".env", "env file to load before reading the environment")
	reset := pflag.Bool("reset", false, "truncate all storefront tables before seeding")
	pflag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	data, err := seed.Load(*file)
	if err != nil {
		log.Fatalf("Load seed file: %v", err)
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	result, err := seed.Apply(context.Background(), db, data, *reset)
	if err != nil {
		log.Fatalf("Seed database: %v", err)
	}

	log.Printf("Seeded %d categories, %d products, %d users and %d cart lines",
		result.Categories, result.Products, result.Users, result.CartLines)
}
