package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"

	"keyflow-bot/internal/auth"
	"keyflow-bot/internal/bot"
	"keyflow-bot/internal/broadcast"
	"keyflow-bot/internal/config"
	"keyflow-bot/internal/logger"
	"keyflow-bot/internal/order"
	orderkafka "keyflow-bot/internal/order/kafka"
	"keyflow-bot/internal/payment"
	"keyflow-bot/internal/session"
	"keyflow-bot/internal/store"
	"keyflow-bot/internal/telegram"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	if cfg.Bot.Token == "" {
		log.Fatal("CONFIG", "BOT_TOKEN is required")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		log.Fatal("CONFIG", "ADMIN_IDS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- SQLite Setup ---
	sqldb, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open sqlite at %s: %v", cfg.Database.Path, err))
	}
	defer sqldb.Close()

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	if err := store.Migrate(ctx, bunDB); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migration failed: %v", err))
	}
	db := &store.DB{Bun: bunDB}

	// --- Redis Setup ---
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis: %v", err))
	}
	sessions := session.NewStore(redisClient)

	// --- Kafka Setup (optional) ---
	var events order.EventPublisher
	if cfg.Kafka.Enabled {
		producer := orderkafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		defer producer.Close()
		events = producer
		log.Info("KAFKA", fmt.Sprintf("Publishing order events to %s", cfg.Kafka.Topic))
	}

	// --- Wire Services ---
	tg := telegram.NewClient(cfg.Bot.Token, &http.Client{Timeout: cfg.Bot.PollTimeout + 10*time.Second})
	orders := order.NewService(db, events, log)
	dispatcher := broadcast.NewDispatcher(db, tg, log, cfg.Broadcast.SendDelay)
	pay := payment.NewInstructions(cfg.Payment)
	gate := auth.NewGate(cfg.Bot.AdminIDs)

	keyflow := bot.New(orders, db, sessions, dispatcher, tg, gate, pay, log,
		cfg.Bot.SupportUsername, cfg.Bot.WebAppURL)

	// --- HTTP Server (liveness + stats) ---
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Get("/api/v1/stats", func(w http.ResponseWriter, req *http.Request) {
		stats, err := db.GetStats(req.Context())
		if err != nil {
			http.Error(w, "failed to compute stats", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(stats)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("HTTP server running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	// --- Update Loop ---
	log.Info("BOT", "KeyFlow bot started")
	go keyflow.Poll(ctx, tg, cfg.Bot.PollTimeout)

	<-ctx.Done()
	log.Info("BOT", "Shutdown signal received")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("SERVER", fmt.Sprintf("Forced shutdown: %v", err))
	}
	if err := redisClient.Close(); err != nil {
		log.Error("REDIS", fmt.Sprintf("Close: %v", err))
	}

	log.Info("BOT", "Exited gracefully")
	os.Exit(0)
}
