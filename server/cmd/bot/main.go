package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/coder/websocket"

	"stronghold/server/domain"
	"stronghold/server/state"
	"stronghold/utils"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	addr := utils.GetEnvDefault("ADDR", "localhost")
	port := utils.GetEnvDefault("PORT", "9090")
	botCountStr := utils.GetEnvDefault("BOT_COUNT", "3")
	botCount, err := strconv.Atoi(botCountStr)
	if err != nil {
		slog.Error("invalid BOT_COUNT", "value", botCountStr)
		os.Exit(1)
	}

	slog.Info("starting bots", "count", botCount, "server", fmt.Sprintf("ws://%s:%s/ws", addr, port))

	var wg sync.WaitGroup
	for i := 0; i < botCount; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runBot(ctx, addr, port, id+1, botCount)
		}(i)
	}

	wg.Wait()
	slog.Info("all bots stopped")
}

func runBot(ctx context.Context, addr, port string, actorID, botCount int) {
	logger := slog.With("actorID", actorID)

	for {
		if ctx.Err() != nil {
			return
		}
		err := botSession(ctx, addr, port, actorID, botCount, logger)
		if err != nil && ctx.Err() == nil {
			logger.Warn("bot session ended, reconnecting", "err", err)
			time.Sleep(2 * time.Second)
		}
	}
}

// botWorld はbotが受信メッセージから再構成するサーバー状態です。
type botWorld struct {
	mu        sync.Mutex
	buildings []state.Building
	battleID  string
}

func botSession(ctx context.Context, addr, port string, actorID, botCount int, logger *slog.Logger) error {
	serverURL := fmt.Sprintf("ws://%s:%s/ws?actor=%d", addr, port, actorID)
	conn, _, err := websocket.Dial(ctx, serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	logger.Info("connected")

	world := &botWorld{}
	var seq uint64

	// 受信ループ
	go func() {
		for {
			if ctx.Err() != nil {
				return
			}
			_, data, err := conn.Read(ctx)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("read error", "err", err)
				}
				return
			}
			world.apply(data, logger)
		}
	}()

	send := func(action string, args any) error {
		raw, err := json.Marshal(args)
		if err != nil {
			return err
		}
		seq++
		cmd, err := json.Marshal(domain.Command{Action: action, Seq: seq, Args: raw})
		if err != nil {
			return err
		}
		return conn.Write(ctx, websocket.MessageText, cmd)
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "shutdown")
			return nil
		case <-ticker.C:
			if err := world.act(send, actorID, botCount); err != nil {
				return fmt.Errorf("write: %w", err)
			}
		}
	}
}

// apply は受信メッセージを解釈してローカルの世界像を更新します。
func (w *botWorld) apply(data []byte, logger *slog.Logger) {
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch msg.Type {
	case domain.MsgTypeSync:
		var sync struct {
			Player state.PlayerData `json:"player"`
		}
		if err := json.Unmarshal(msg.Payload, &sync); err == nil {
			w.buildings = sync.Player.Buildings
		}
	case domain.MsgTypeBattleEnded:
		w.battleID = ""
	case domain.MsgTypeResponse:
		var resp struct {
			Success bool            `json:"success"`
			Error   string          `json:"error"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg.Payload, &resp); err != nil {
			return
		}
		if !resp.Success {
			logger.Debug("command rejected", "error", resp.Error)
			return
		}
		var payload struct {
			BattleID string         `json:"battleId"`
			Building state.Building `json:"building"`
		}
		if len(resp.Payload) > 0 {
			if err := json.Unmarshal(resp.Payload, &payload); err == nil {
				if payload.BattleID != "" {
					w.battleID = payload.BattleID
				}
				if payload.Building.ID != "" {
					w.buildings = append(w.buildings, payload.Building)
				}
			}
		}
	}
}

// act はtickごとに1アクションを選んで送信します。
func (w *botWorld) act(send func(action string, args any) error, actorID, botCount int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.battleID != "" {
		return send("DeployTroop", map[string]any{
			"battleId": w.battleID,
			"type":     "Barbarian",
			"position": map[string]float64{"x": rand.Float64() * 40, "y": 0, "z": rand.Float64() * 40},
		})
	}

	switch rand.Intn(4) {
	case 0:
		for _, b := range w.buildings {
			if b.Type == "GoldMine" {
				return send("CollectResources", map[string]any{"buildingId": b.ID})
			}
		}
		return nil
	case 1:
		return send("TrainTroop", map[string]any{"troopType": "Barbarian", "quantity": 5})
	case 2:
		if botCount < 2 {
			return nil
		}
		defender := rand.Intn(botCount) + 1
		if defender == actorID {
			return nil
		}
		return send("StartBattle", map[string]any{"defenderId": defender})
	default:
		return send("PlaceBuilding", map[string]any{
			"buildingType": "Cannon",
			"position":     map[string]float64{"x": rand.Float64() * 40, "y": 0, "z": rand.Float64() * 40},
		})
	}
}
