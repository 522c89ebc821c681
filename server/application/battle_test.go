package application_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"stronghold/server/application"
	"stronghold/server/domain"
	"stronghold/server/state"
)

func TestBattleEngine_StartRejectsInvalidTargets(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 5
	})
	w.addPlayer(t, 3, func(p *state.PlayerData) {
		p.Shielded = true
	})

	if _, err := w.battle.Start(context.Background(), 1, 1); !errors.Is(err, application.ErrInvalidTarget) {
		t.Fatalf("self attack: got %v, want ErrInvalidTarget", err)
	}
	if _, err := w.battle.Start(context.Background(), 1, 99); !errors.Is(err, application.ErrInvalidTarget) {
		t.Fatalf("missing defender: got %v, want ErrInvalidTarget", err)
	}
	if _, err := w.battle.Start(context.Background(), 1, 3); !errors.Is(err, application.ErrInvalidTarget) {
		t.Fatalf("shielded defender: got %v, want ErrInvalidTarget", err)
	}
}

func TestBattleEngine_OneBattlePerAttacker(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, nil)
	w.addPlayer(t, 2, nil)
	w.addPlayer(t, 3, nil)

	battleID, err := w.battle.Start(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if battleID == "" {
		t.Fatal("battle id should not be empty")
	}

	if _, err := w.battle.Start(context.Background(), 1, 3); !errors.Is(err, application.ErrAlreadyInBattle) {
		t.Fatalf("second battle: got %v, want ErrAlreadyInBattle", err)
	}
	// 別アクターは独立して開戦できる
	if _, err := w.battle.Start(context.Background(), 3, 2); err != nil {
		t.Fatalf("independent attacker should be able to start: %v", err)
	}
}

func TestBattleEngine_DeployCommitsTroopsAtSubmission(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 5
	})
	w.addPlayer(t, 2, nil)

	battleID, err := w.battle.Start(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := w.battle.DeployTroop(context.Background(), 1, battleID, "Barbarian", domain.Vector3{X: 1}); err != nil {
		t.Fatalf("DeployTroop failed: %v", err)
	}

	player, err := w.state.GetPlayer(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if player.Troops["Barbarian"] != 4 {
		t.Fatalf("roster = %d, want 4 after deployment", player.Troops["Barbarian"])
	}

	// 放棄しても投入済みユニットは返還されない
	if !w.battle.Forfeit(context.Background(), 1) {
		t.Fatal("Forfeit should succeed for an active battle")
	}
	player, err = w.state.GetPlayer(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if player.Troops["Barbarian"] != 4 {
		t.Fatalf("roster = %d after forfeit, want 4 (no refund)", player.Troops["Barbarian"])
	}
}

func TestBattleEngine_DeployRejections(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, func(p *state.PlayerData) {
		p.Troops["Barbarian"] = 1
	})
	w.addPlayer(t, 2, nil)

	battleID, err := w.battle.Start(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 攻撃側以外はデプロイ不可
	if err := w.battle.DeployTroop(context.Background(), 2, battleID, "Barbarian", domain.Vector3{}); !errors.Is(err, application.ErrInvalidState) {
		t.Fatalf("defender deploy: got %v, want ErrInvalidState", err)
	}
	// 未知のユニット種別
	if err := w.battle.DeployTroop(context.Background(), 1, battleID, "Dragon", domain.Vector3{}); !errors.Is(err, application.ErrInvalidTarget) {
		t.Fatalf("unknown troop: got %v, want ErrInvalidTarget", err)
	}
	// 保有数を超えるデプロイ
	if err := w.battle.DeployTroop(context.Background(), 1, battleID, "Barbarian", domain.Vector3{}); err != nil {
		t.Fatalf("first deploy should succeed: %v", err)
	}
	if err := w.battle.DeployTroop(context.Background(), 1, battleID, "Barbarian", domain.Vector3{}); !errors.Is(err, state.ErrInsufficientTroops) {
		t.Fatalf("deploy without roster: got %v, want ErrInsufficientTroops", err)
	}

	// 終了後の戦闘は参照できない
	w.battle.Forfeit(context.Background(), 1)
	if err := w.battle.DeployTroop(context.Background(), 1, battleID, "Barbarian", domain.Vector3{}); !errors.Is(err, application.ErrInvalidTarget) {
		t.Fatalf("deploy after end: got %v, want ErrInvalidTarget", err)
	}
}

func TestBattleEngine_SpellDestroysBaseAndAwardsLoot(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, nil)
	w.addPlayer(t, 2, nil)

	msgCh := w.pubsub.Subscribe(domain.ActorTopic(1))
	defer w.pubsub.Unsubscribe(domain.ActorTopic(1), msgCh)

	battleID, err := w.battle.Start(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// 初期レイアウトの合計耐久は690。Lightning(300)+Quake(450)で全壊する
	if err := w.battle.DeploySpell(context.Background(), 1, battleID, "Lightning", domain.Vector3{}); err != nil {
		t.Fatalf("DeploySpell failed: %v", err)
	}
	if err := w.battle.DeploySpell(context.Background(), 1, battleID, "Quake", domain.Vector3{}); err != nil {
		t.Fatalf("DeploySpell failed: %v", err)
	}

	payload := waitMessage(t, msgCh, domain.MsgTypeBattleEnded)
	var result application.BattleResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("failed to decode battle result: %v", err)
	}
	if result.Destruction != 100 {
		t.Fatalf("destruction = %v, want 100", result.Destruction)
	}
	if result.StarsEarned != 3 {
		t.Fatalf("stars = %d, want 3", result.StarsEarned)
	}
	// 略奪上限は防衛側資源の20%、全壊なので満額
	if result.Loot["gold"] != 200 || result.Loot["elixir"] != 200 {
		t.Fatalf("loot = %v, want gold 200 / elixir 200", result.Loot)
	}

	// 呪文コスト(150+200)は戦闘終了後も返還されず、略奪分のみ加算される
	player, err := w.state.GetPlayer(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetPlayer failed: %v", err)
	}
	if player.Resources.Gold != 1200 {
		t.Fatalf("gold = %d, want 1200", player.Resources.Gold)
	}
	if player.Resources.Elixir != 850 {
		t.Fatalf("elixir = %d, want 850", player.Resources.Elixir)
	}

	if _, ok := w.battle.ActiveBattle(1); ok {
		t.Fatal("battle record should be reaped after ending")
	}
}

func TestBattleEngine_EndsWhenDurationExpires(t *testing.T) {
	w := newWorld(t)
	w.addPlayer(t, 1, nil)
	w.addPlayer(t, 2, nil)

	msgCh := w.pubsub.Subscribe(domain.ActorTopic(1))
	defer w.pubsub.Unsubscribe(domain.ActorTopic(1), msgCh)

	if _, err := w.battle.Start(context.Background(), 1, 2); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// tickスナップショットが配信されることを確認してから時間切れにする
	waitMessage(t, msgCh, domain.MsgTypeBattleTick)
	w.clock.Advance(60 * time.Millisecond)

	payload := waitMessage(t, msgCh, domain.MsgTypeBattleEnded)
	var result application.BattleResult
	if err := json.Unmarshal(payload, &result); err != nil {
		t.Fatalf("failed to decode battle result: %v", err)
	}
	if result.Destruction != 0 {
		t.Fatalf("destruction = %v, want 0 with no deployments", result.Destruction)
	}

	// 終了後は新しい戦闘を開始できる
	deadline := time.After(2 * time.Second)
	for {
		if _, err := w.battle.Start(context.Background(), 1, 2); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatal("attacker should be able to start a new battle after the previous one ended")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
