package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"heavenly-backend/internal/config"
	"heavenly-backend/internal/db"
	"heavenly-backend/internal/migrate"
)

func main() {
	logger := log.New(os.Stdout, "[migrate] ", log.LstdFlags|log.LUTC|log.Lshortfile)

	if err := godotenv.Load(); err != nil {
		logger.Printf("no .env file loaded: %v", err)
	}
	cfg := config.FromEnv()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatalf("connect db: %v", err)
	}
	defer pool.Close()

	if err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatalf("apply migrations: %v", err)
	}

	logger.Println("migrations applied")
}
