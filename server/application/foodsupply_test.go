package application_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"stronghold/server/application"
	"stronghold/server/domain"
	"stronghold/server/state"
)

func TestFoodSupply_ProductionFromCompletedLevels(t *testing.T) {
	w := newWorld(t)
	// 初期状態はFarm Lv2のみ生産 (5 * 2 = 10)
	w.addPlayer(t, 1, nil)

	status, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	if status.Production != 10 {
		t.Fatalf("production = %v, want 10", status.Production)
	}
	if status.Usage != 0 {
		t.Fatalf("usage = %v, want 0", status.Usage)
	}
	if status.Paused {
		t.Fatal("supply should not be paused with zero usage")
	}
}

func TestFoodSupply_UpgradeInProgressDoesNotCount(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		for i := range p.Buildings {
			if p.Buildings[i].Type == "Farm" {
				// アップグレード進行中でも生産量は現レベルのまま
				p.Buildings[i].UpgradeDoneAt = time.Unix(1800000000, 0)
			}
		}
	})

	status, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	if status.Production != 10 {
		t.Fatalf("production = %v, want 10", status.Production)
	}
}

func TestFoodSupply_UsageFromRosterAndQueue(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 4 // 4 * 1 = 4
		p.Troops["Giant"] = 1     // 1 * 5 = 5
		p.TrainingQueue = append(p.TrainingQueue, state.TrainingJob{
			ID: "job-1", TroopType: "Archer", Quantity: 3, // 3 * 1 = 3
		})
	})

	status, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	if status.Usage != 12 {
		t.Fatalf("usage = %v, want 12", status.Usage)
	}
	if !status.Paused {
		t.Fatal("usage 12 against production 10 should pause the supply")
	}
}

func TestFoodSupply_PausedWhenUsageExceedsProduction(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 11 // usage 11 > production 10
	})

	status, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	if !status.Paused {
		t.Fatal("supply should be paused when usage exceeds production")
	}
}

func TestFoodSupply_RecomputeIsIdempotent(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 3
	})

	first, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	second, err := w.food.ComputeStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("ComputeStatus failed: %v", err)
	}
	if first != second {
		t.Fatalf("recompute without state change diverged: %+v vs %+v", first, second)
	}
}

func TestFoodSupply_NotifyPushesStatus(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, nil)

	msgCh := w.pubsub.Subscribe(domain.ActorTopic(1))
	defer w.pubsub.Unsubscribe(domain.ActorTopic(1), msgCh)

	w.food.Notify(context.Background(), 1)

	payload := waitMessage(t, msgCh, domain.MsgTypeFoodSupplyUpdate)
	var status application.FoodSupplyStatus
	if err := json.Unmarshal(payload, &status); err != nil {
		t.Fatalf("failed to decode status: %v", err)
	}
	if status.Production != 10 {
		t.Fatalf("pushed production = %v, want 10", status.Production)
	}
}
