// Package main запускает клиент витрины: локальную корзину с синхронизацией
// и расчёт доставки из командной строки.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/hamper-storefront/internal/cart"
	"github.com/mmeshcher/hamper-storefront/internal/config"
	"github.com/mmeshcher/hamper-storefront/internal/delivery"
	"github.com/mmeshcher/hamper-storefront/internal/geocode"
	"github.com/mmeshcher/hamper-storefront/internal/remote"
	"github.com/mmeshcher/hamper-storefront/internal/storage"
)

const snapshotTTL = 30 * 24 * time.Hour

func main() {
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st storage.Storage = storage.NewMemoryStorage()
	if cfg.RedisAddress != "" {
		client := storage.NewRedisClient(cfg.RedisAddress)
		defer client.Close()

		if err := client.Ping(ctx).Err(); err != nil {
			sugar.Warnw("redis is unavailable, cart will not survive this run", "error", err.Error())
		} else {
			st = storage.NewRedisStorage(client, snapshotTTL)
		}
	} else {
		sugar.Warn("REDIS_ADDRESS is not set, cart will not survive this run")
	}

	var rem cart.Remote
	if cfg.CartServiceAddress != "" {
		rem = remote.NewClient(cfg.CartServiceAddress, cfg.RequestTimeout)
	}

	store := cart.NewStore(st, rem, logger, cart.Options{
		Debounce:       cfg.SyncDebounce,
		RequestTimeout: cfg.RequestTimeout,
	})
	defer store.Close()

	store.Hydrate(ctx)
	store.ApplyIdentity(ctx, cart.Identity{
		Authenticated: cfg.AuthToken != "" && cfg.UserID != "",
		UserID:        cfg.UserID,
		Token:         cfg.AuthToken,
	})

	app := &app{
		store:   store,
		session: delivery.NewSession(delivery.NewEngine(delivery.Point{Lat: cfg.HubLat, Lng: cfg.HubLng}), logger),
		out:     os.Stdout,
	}
	if cfg.GeocoderAddress != "" {
		app.geocoder = geocode.NewClient(cfg.GeocoderAddress, cfg.RequestTimeout)
	}

	runErr := app.run(ctx, config.Args())

	// Отложенная отправка не должна потеряться при выходе из процесса.
	store.Flush(ctx)

	if runErr != nil {
		sugar.Fatalw("command failed", "error", runErr)
	}
}
