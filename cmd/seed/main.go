// Command seed populates the document store with generated demo data.
package main

import (
	"context"
	"flag"
	"log"

	"snappit/internal/bootstrap"
	"snappit/internal/config"
	"snappit/internal/seed"
)

func main() {
	presetPath := flag.String("preset", "", "YAML preset file (defaults to the built-in preset)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	preset := seed.DefaultPreset
	if *presetPath != "" {
		preset, err = seed.LoadPreset(*presetPath)
		if err != nil {
			log.Fatalf("Failed to load preset: %v", err)
		}
	}

	if cfg.StoreBackend == "memory" {
		log.Fatal("Seeding the memory backend is pointless; it lives only inside one process")
	}

	st, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("Failed to initialize runtime: %v", err)
	}

	factory := seed.NewFactory(st, seed.Options{
		MaxDays:  preset.MaxDays,
		Password: preset.Password,
	})

	users, err := seed.Run(context.Background(), factory, preset)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Seeded %d users (threads per user: %d, comments per thread: %d)",
		len(users), preset.ThreadsPerUser, preset.CommentsPerThread)
	for _, u := range users {
		log.Printf("  %s <%s>", u.Username, u.Email)
	}
}
