package adapterredis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	adapterredis "stronghold/server/adapter/redis"
	"stronghold/server/state"
)

func newTestStore(t *testing.T) *adapterredis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := adapterredis.NewStoreFromClient(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_LoadMissingReturnsNil(t *testing.T) {
	store := newTestStore(t)

	loaded, err := store.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Fatalf("missing snapshot should load as nil, got %+v", loaded)
	}
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := newTestStore(t)

	player := state.PlayerData{
		ActorID:   7,
		Resources: state.Resources{Gold: 320, Elixir: 45},
		Buildings: []state.Building{
			{ID: "hall-1", Type: "TownHall", Level: 2},
		},
		Troops:     map[string]int{"Giant": 2},
		AllianceID: "alliance-1",
		Shielded:   true,
	}
	if err := store.Save(context.Background(), player); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(context.Background(), 7)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("saved snapshot should load")
	}
	if loaded.Resources != player.Resources {
		t.Fatalf("resources = %+v, want %+v", loaded.Resources, player.Resources)
	}
	if len(loaded.Buildings) != 1 || loaded.Buildings[0].Type != "TownHall" {
		t.Fatalf("buildings = %+v, want TownHall", loaded.Buildings)
	}
	if loaded.Troops["Giant"] != 2 {
		t.Fatalf("troops = %v, want Giant 2", loaded.Troops)
	}
	if loaded.AllianceID != "alliance-1" || !loaded.Shielded {
		t.Fatalf("metadata not preserved: %+v", loaded)
	}
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(context.Background(), state.PlayerData{ActorID: 1, Resources: state.Resources{Gold: 10}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(context.Background(), state.PlayerData{ActorID: 1, Resources: state.Resources{Gold: 99}}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Resources.Gold != 99 {
		t.Fatalf("gold = %d, want latest snapshot 99", loaded.Resources.Gold)
	}
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)

	if err := store.Save(context.Background(), state.PlayerData{ActorID: 1}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Delete(context.Background(), 1); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	loaded, err := store.Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded != nil {
		t.Fatal("deleted snapshot should load as nil")
	}
}
