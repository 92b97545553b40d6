package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"school-meal-engine/internal/core/kb"
	"school-meal-engine/internal/infrastructure/config"
	"school-meal-engine/internal/infrastructure/storage"
	"school-meal-engine/internal/pkg/common"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// seed 建立資料表並寫入知識庫種子，可重複執行
func main() {
	source := flag.String("source", "", "knowledge base seed: file path or http(s) URL (default: embedded seed)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := common.InitLogger(cfg.LogLevel, cfg.LogDir); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer common.Sync()

	if *source == "" {
		*source = cfg.Knowledge.SeedSource
	}

	if err := run(context.Background(), cfg, *source); err != nil {
		common.LogError("Seeding failed", zap.Error(err))
		common.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, source string) error {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	if err := storage.AutoMigrate(db); err != nil {
		return err
	}

	seed, err := kb.LoadSeed(ctx, source, cfg.Knowledge.SeedTimeout)
	if err != nil {
		return err
	}
	catalog, err := kb.NewCatalog(seed)
	if err != nil {
		return err
	}

	report, err := storage.NewKnowledgeStore(db).SeedKnowledge(ctx, catalog)
	if err != nil {
		return err
	}

	fmt.Printf("seeded %d allergens, %d ingredients, %d synonyms, %d menu cases\n",
		report.Allergens, report.Ingredients, report.Synonyms, report.Cases)
	return nil
}
