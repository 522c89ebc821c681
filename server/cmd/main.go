package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"stronghold/server"
	adapterredis "stronghold/server/adapter/redis"
	"stronghold/server/application"
	"stronghold/server/domain"
	"stronghold/server/state"
	"stronghold/server/state/memory"
	"stronghold/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	redisAddr := utils.GetEnvDefault("REDIS_ADDR", "")

	// 永続化層: REDIS_ADDRが設定されていればredis、なければプロセス内メモリ
	var store state.PlayerStore
	if redisAddr != "" {
		redisStore := adapterredis.NewStore(redisAddr)
		if err := redisStore.Ping(ctx); err != nil {
			log.Fatalf("redis unavailable: %v", err)
		}
		store = redisStore
		slog.InfoContext(ctx, "using redis player store", "addr", redisAddr)
	} else {
		store = memory.NewSnapshotStore()
		slog.InfoContext(ctx, "using in-memory player store")
	}
	defer store.Close()

	pubsub := domain.NewSimplePubSub()
	playerState := memory.NewConcurrentStore()
	clock := application.SystemClock()
	data := application.NewGameData()
	notifier := application.NewNotifier(pubsub)

	food := application.NewFoodSupplyReconciler(playerState, data, notifier)
	building := application.NewBuildingService(ctx, playerState, data, notifier, food, clock)
	troop := application.NewTroopService(ctx, playerState, data, notifier, food, clock)
	alliance := application.NewAllianceService(playerState)
	battle := application.NewBattleEngine(playerState, data, notifier, clock)
	travel := application.NewTravelScheduler(playerState, notifier, clock)
	limiter := application.NewRateLimiter(clock)

	gateway, err := application.NewGateway(
		limiter, playerState, store, data, food,
		building, troop, alliance, battle, travel, clock,
	)
	if err != nil {
		log.Fatalf("failed to build gateway: %v", err)
	}

	handler := server.Route(pubsub, gateway, gateway)
	s := server.NewServer(fmt.Sprintf("%s:%s", addr, port), handler)

	go func() {
		if err := s.Serve(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server error: %v", err)
		}
	}()
	slog.InfoContext(ctx, "server listening", "addr", addr+":"+port)

	<-ctx.Done()
	slog.InfoContext(ctx, "shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "graceful shutdown failed", "error", err)
		if err := s.Close(); err != nil {
			slog.ErrorContext(ctx, "forced close failed", "error", err)
		}
	}

	// 全プレイヤーの状態を永続化してから終了する
	if err := gateway.FlushAll(shutdownCtx); err != nil {
		slog.ErrorContext(ctx, "failed to flush player states", "error", err)
	}
	slog.InfoContext(ctx, "server shutdown complete")
}
