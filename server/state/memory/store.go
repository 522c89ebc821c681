package memory

import (
	"time"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// Store はインメモリのプレイヤー状態を保持する共通ストレージ。
// ConcurrentStore が本ストアをラップしてロック戦略とクロックを差し替える。
type Store struct {
	players map[domain.ActorID]*state.PlayerData
}

// NewStore は空のストアを生成する。
func NewStore() *Store {
	return &Store{
		players: make(map[domain.ActorID]*state.PlayerData),
	}
}

func (s *Store) getPlayer(actorID domain.ActorID) (*state.PlayerData, error) {
	player, ok := s.players[actorID]
	if !ok {
		return nil, state.ErrPlayerNotFound
	}
	return player, nil
}

func (s *Store) restore(data state.PlayerData) {
	copied := clonePlayer(&data)
	s.players[data.ActorID] = copied
}

func (s *Store) all() []state.PlayerData {
	players := make([]state.PlayerData, 0, len(s.players))
	for _, p := range s.players {
		players = append(players, copyPlayer(p))
	}
	return players
}

func (s *Store) applyPlaceBuilding(actorID domain.ActorID, b state.Building, cost state.Resources, ts time.Time) (state.Building, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return state.Building{}, err
	}
	for i := range player.Buildings {
		if player.Buildings[i].Position == b.Position {
			return state.Building{}, state.ErrPositionOccupied
		}
	}
	if err := debit(player, cost); err != nil {
		return state.Building{}, err
	}
	b.LastCollected = ts
	player.Buildings = append(player.Buildings, b)
	return b, nil
}

func (s *Store) applyStartUpgrade(actorID domain.ActorID, buildingID string, cost state.Resources, doneAt time.Time) (state.Building, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return state.Building{}, err
	}
	building, err := findBuilding(player, buildingID)
	if err != nil {
		return state.Building{}, err
	}
	if !building.UpgradeDoneAt.IsZero() {
		return state.Building{}, state.ErrUpgradeInProgress
	}
	if err := debit(player, cost); err != nil {
		return state.Building{}, err
	}
	building.UpgradeDoneAt = doneAt
	return *building, nil
}

func (s *Store) applyFinishUpgrade(actorID domain.ActorID, buildingID string) (state.Building, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return state.Building{}, err
	}
	building, err := findBuilding(player, buildingID)
	if err != nil {
		return state.Building{}, err
	}
	building.Level++
	building.UpgradeDoneAt = time.Time{}
	return *building, nil
}

func (s *Store) applyCollect(actorID domain.ActorID, buildingID string, ratePerSecond float64, storageCap int, ts time.Time) (int, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return 0, err
	}
	building, err := findBuilding(player, buildingID)
	if err != nil {
		return 0, err
	}
	elapsed := ts.Sub(building.LastCollected).Seconds()
	if elapsed < 0 {
		elapsed = 0
	}
	amount := int(elapsed * ratePerSecond)
	if amount > storageCap {
		amount = storageCap
	}
	building.LastCollected = ts
	player.Resources.Gold += amount
	return amount, nil
}

func (s *Store) applyStartTraining(actorID domain.ActorID, job state.TrainingJob, cost state.Resources, queueCap int) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	if len(player.TrainingQueue) >= queueCap {
		return state.ErrQueueFull
	}
	if err := debit(player, cost); err != nil {
		return err
	}
	player.TrainingQueue = append(player.TrainingQueue, job)
	return nil
}

func (s *Store) applyCancelTraining(actorID domain.ActorID, queueIndex int, refund state.Resources) (state.TrainingJob, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return state.TrainingJob{}, err
	}
	// queueIndexは1始まり
	if queueIndex < 1 || queueIndex > len(player.TrainingQueue) {
		return state.TrainingJob{}, state.ErrJobNotFound
	}
	job := player.TrainingQueue[queueIndex-1]
	player.TrainingQueue = append(player.TrainingQueue[:queueIndex-1], player.TrainingQueue[queueIndex:]...)
	player.Resources.Gold += refund.Gold
	player.Resources.Elixir += refund.Elixir
	return job, nil
}

func (s *Store) applyFinishTraining(actorID domain.ActorID, jobID string) (state.TrainingJob, error) {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return state.TrainingJob{}, err
	}
	for i := range player.TrainingQueue {
		if player.TrainingQueue[i].ID != jobID {
			continue
		}
		job := player.TrainingQueue[i]
		player.TrainingQueue = append(player.TrainingQueue[:i], player.TrainingQueue[i+1:]...)
		if player.Troops == nil {
			player.Troops = make(map[string]int)
		}
		player.Troops[job.TroopType] += job.Quantity
		return job, nil
	}
	return state.TrainingJob{}, state.ErrJobNotFound
}

func (s *Store) applyAddTroops(actorID domain.ActorID, troopType string, count int) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	if player.Troops == nil {
		player.Troops = make(map[string]int)
	}
	player.Troops[troopType] += count
	return nil
}

func (s *Store) applyRemoveTroops(actorID domain.ActorID, troopType string, count int) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	if player.Troops[troopType] < count {
		return state.ErrInsufficientTroops
	}
	player.Troops[troopType] -= count
	if player.Troops[troopType] == 0 {
		delete(player.Troops, troopType)
	}
	return nil
}

func (s *Store) applyAddResources(actorID domain.ActorID, r state.Resources) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	player.Resources.Gold += r.Gold
	player.Resources.Elixir += r.Elixir
	return nil
}

func (s *Store) applyDebit(actorID domain.ActorID, cost state.Resources) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	return debit(player, cost)
}

func (s *Store) applySetAlliance(actorID domain.ActorID, allianceID string) error {
	player, err := s.getPlayer(actorID)
	if err != nil {
		return err
	}
	player.AllianceID = allianceID
	return nil
}

func findBuilding(player *state.PlayerData, buildingID string) (*state.Building, error) {
	for i := range player.Buildings {
		if player.Buildings[i].ID == buildingID {
			return &player.Buildings[i], nil
		}
	}
	return nil, state.ErrBuildingNotFound
}

func debit(player *state.PlayerData, cost state.Resources) error {
	if player.Resources.Gold < cost.Gold || player.Resources.Elixir < cost.Elixir {
		return state.ErrInsufficientResources
	}
	player.Resources.Gold -= cost.Gold
	player.Resources.Elixir -= cost.Elixir
	return nil
}

func copyPlayer(p *state.PlayerData) state.PlayerData {
	return *clonePlayer(p)
}

func clonePlayer(p *state.PlayerData) *state.PlayerData {
	copied := *p
	copied.Buildings = append([]state.Building(nil), p.Buildings...)
	copied.TrainingQueue = append([]state.TrainingJob(nil), p.TrainingQueue...)
	copied.Troops = make(map[string]int, len(p.Troops))
	for k, v := range p.Troops {
		copied.Troops[k] = v
	}
	return &copied
}
