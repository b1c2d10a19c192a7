// cmd/server/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/mixdown-games/encore/internal/auth"
	"github.com/mixdown-games/encore/internal/cache"
	"github.com/mixdown-games/encore/internal/handlers"
	"github.com/mixdown-games/encore/internal/middleware"
	"github.com/mixdown-games/encore/internal/party"
	"github.com/mixdown-games/encore/internal/store"
)

func main() {
	auth.Init()

	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	ctx := context.Background()

	var st store.Store
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := store.NewPostgres(ctx, dsn)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		defer pg.Close()
		st = pg
		logger.Info("using postgres store")
	} else {
		st = store.NewMemory()
		logger.Warn("DATABASE_URL not set, using in-memory store; parties will not survive a restart")
	}

	opts := []party.Option{party.WithLogger(logger)}
	if os.Getenv("REDIS_ADDR") != "" {
		c, err := cache.Connect()
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer c.Close()
		opts = append(opts, party.WithEventPublisher(c), party.WithSnapshotStore(c))
		logger.Info("score-event feed and snapshots on redis")
	}

	engine := party.NewEngine(st, opts...)
	srv := handlers.NewServer(engine, logger)

	mux := srv.Routes()

	addr := ":8080"
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	logger.Infof("Running on %s", addr)
	if err := http.ListenAndServe(addr, middleware.LogMiddleware(logger)(mux)); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
