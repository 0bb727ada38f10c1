package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/linkboard/linkboard/internal/auth"
	"github.com/linkboard/linkboard/internal/config"
	"github.com/linkboard/linkboard/internal/graphql"
	"github.com/linkboard/linkboard/internal/server"
	"github.com/linkboard/linkboard/internal/storage"
	"github.com/linkboard/linkboard/internal/storage/memory"
	"github.com/linkboard/linkboard/internal/storage/postgres"
)

func main() {
	configPath := flag.String("config", "config.yaml", "путь к файлу конфигурации")
	storageType := flag.String("storage", "memory", "тип хранилища: memory или postgres")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Не удалось загрузить конфигурацию: %v", err)
	}

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Не удалось создать логгер: %v", err)
	}
	defer zapLogger.Sync()
	logger := zapLogger.Sugar()

	var store storage.Storage
	switch *storageType {
	case "postgres":
		log.Println("Инициализация хранилища PostgreSQL")
		store, err = postgres.New(cfg.Postgres.DSN)
		if err != nil {
			log.Fatalf("Не удалось инициализировать PostgreSQL: %v", err)
		}
	case "memory":
		log.Println("Инициализация хранилища Memory")
		store = memory.New()
	default:
		log.Fatalf("Неизвестный тип хранилища: %s", *storageType)
	}
	defer store.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Не удалось подключиться к Redis: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.Secret)
	reset := auth.NewResetTokens(rdb)
	mailer := &auth.LogMailer{Logger: logger}
	resolver := graphql.NewResolver(store, tokens, reset, mailer, logger)

	srv := server.New(cfg, resolver, tokens, logger)
	log.Println("Запуск сервера")
	if err := srv.Run(); err != nil {
		log.Fatalf("Не удалось запустить сервер: %v", err)
	}
}
