package application

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"stronghold/server/domain"
	"stronghold/server/state"
)

// Alliance は同盟1つ分の台帳です。
type Alliance struct {
	ID          string
	Name        string
	Description string
	LeaderID    domain.ActorID
	Members     map[domain.ActorID]struct{}
}

// AllianceService は同盟の作成・加入・脱退・ユニット寄付を担当します。
type AllianceService struct {
	mu        sync.Mutex
	alliances map[string]*Alliance

	state state.PlayerState
}

func NewAllianceService(st state.PlayerState) *AllianceService {
	return &AllianceService{
		alliances: make(map[string]*Alliance),
		state:     st,
	}
}

// Create は同盟を新設し、作成者を加入させます。
func (s *AllianceService) Create(ctx context.Context, actorID domain.ActorID, name, description string) (string, error) {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return "", err
	}
	if player.AllianceID != "" {
		return "", ErrInvalidState
	}

	alliance := &Alliance{
		ID:          uuid.NewString(),
		Name:        name,
		Description: description,
		LeaderID:    actorID,
		Members:     map[domain.ActorID]struct{}{actorID: {}},
	}

	s.mu.Lock()
	s.alliances[alliance.ID] = alliance
	s.mu.Unlock()

	if err := s.state.SetAlliance(ctx, actorID, alliance.ID); err != nil {
		s.mu.Lock()
		delete(s.alliances, alliance.ID)
		s.mu.Unlock()
		return "", err
	}
	return alliance.ID, nil
}

// Join は既存の同盟へ加入します。
func (s *AllianceService) Join(ctx context.Context, actorID domain.ActorID, allianceID string) error {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return err
	}
	if player.AllianceID != "" {
		return ErrInvalidState
	}

	s.mu.Lock()
	alliance, ok := s.alliances[allianceID]
	if !ok {
		s.mu.Unlock()
		return ErrInvalidTarget
	}
	alliance.Members[actorID] = struct{}{}
	s.mu.Unlock()

	return s.state.SetAlliance(ctx, actorID, allianceID)
}

// Leave は同盟から脱退します。最後の1人が抜けた同盟は解散されます。
func (s *AllianceService) Leave(ctx context.Context, actorID domain.ActorID, allianceID string) error {
	player, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return err
	}
	if player.AllianceID != allianceID {
		return ErrInvalidState
	}

	s.mu.Lock()
	if alliance, ok := s.alliances[allianceID]; ok {
		delete(alliance.Members, actorID)
		if len(alliance.Members) == 0 {
			delete(s.alliances, allianceID)
		}
	}
	s.mu.Unlock()

	return s.state.SetAlliance(ctx, actorID, "")
}

// Donate は同じ同盟のメンバーへユニットを寄付します。
func (s *AllianceService) Donate(ctx context.Context, actorID, recipientID domain.ActorID, troopType string, count int) error {
	if actorID == recipientID {
		return ErrInvalidTarget
	}
	donor, err := s.state.GetPlayer(ctx, actorID)
	if err != nil {
		return err
	}
	recipient, err := s.state.GetPlayer(ctx, recipientID)
	if err != nil {
		return ErrInvalidTarget
	}
	if donor.AllianceID == "" || donor.AllianceID != recipient.AllianceID {
		return ErrInvalidState
	}

	if err := s.state.RemoveTroops(ctx, actorID, troopType, count); err != nil {
		return err
	}
	if err := s.state.AddTroops(ctx, recipientID, troopType, count); err != nil {
		// 受領側が消えた場合は寄付側へ戻す
		_ = s.state.AddTroops(ctx, actorID, troopType, count)
		return err
	}
	return nil
}

// Lookup は同盟台帳のコピーを返します。
func (s *AllianceService) Lookup(allianceID string) (Alliance, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	alliance, ok := s.alliances[allianceID]
	if !ok {
		return Alliance{}, false
	}
	copied := *alliance
	copied.Members = make(map[domain.ActorID]struct{}, len(alliance.Members))
	for member := range alliance.Members {
		copied.Members[member] = struct{}{}
	}
	return copied, true
}
