package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/speraxos/sweepguard/internal/lists"
	"github.com/speraxos/sweepguard/internal/setup"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using environment variables")
	}

	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer func() {
		_ = client.Close()
	}()

	registry, err := lists.NewRegistry(client)
	if err != nil {
		log.Fatalf("failed to build list registry: %s", err)
	}

	if err := setup.RunListTUI(context.Background(), registry); err != nil {
		log.Fatalf("list admin failed: %s", err)
	}
}
