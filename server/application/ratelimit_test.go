package application_test

import (
	"testing"
	"time"

	"stronghold/server/application"
	"stronghold/server/domain"
)

func TestRateLimiter_AllowsWithinWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := application.NewRateLimiter(clock)
	actorID := domain.ActorID(1)

	for i := 0; i < 3; i++ {
		if !limiter.Allow(actorID, "TrainTroop", 3) {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if limiter.Allow(actorID, "TrainTroop", 3) {
		t.Fatal("4th request in the same window should be denied")
	}
}

func TestRateLimiter_ResetsAfterWindow(t *testing.T) {
	clock := newFakeClock()
	limiter := application.NewRateLimiter(clock)
	actorID := domain.ActorID(1)

	if !limiter.Allow(actorID, "StartBattle", 1) {
		t.Fatal("first request should be allowed")
	}
	if limiter.Allow(actorID, "StartBattle", 1) {
		t.Fatal("second request in the same window should be denied")
	}

	// ウィンドウ超過後の最初のアクセスで遅延リセットされる
	clock.Advance(1100 * time.Millisecond)
	if !limiter.Allow(actorID, "StartBattle", 1) {
		t.Fatal("request after window reset should be allowed")
	}
}

func TestRateLimiter_ActionsAndActorsAreIndependent(t *testing.T) {
	clock := newFakeClock()
	limiter := application.NewRateLimiter(clock)

	if !limiter.Allow(1, "StartBattle", 1) {
		t.Fatal("first request should be allowed")
	}
	// 別アクションは別ウィンドウ
	if !limiter.Allow(1, "StartTravel", 1) {
		t.Fatal("different action should have its own window")
	}
	// 別アクターは別ウィンドウ
	if !limiter.Allow(2, "StartBattle", 1) {
		t.Fatal("different actor should have its own window")
	}
}

func TestRateLimiter_PurgeClearsWindows(t *testing.T) {
	clock := newFakeClock()
	limiter := application.NewRateLimiter(clock)
	actorID := domain.ActorID(1)

	limiter.Allow(actorID, "StartBattle", 1)
	if limiter.Allow(actorID, "StartBattle", 1) {
		t.Fatal("window should be exhausted")
	}

	limiter.Purge(actorID)
	if !limiter.Allow(actorID, "StartBattle", 1) {
		t.Fatal("purge should clear the actor's windows")
	}
}
