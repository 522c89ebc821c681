package application

import (
	"errors"

	"stronghold/server/state"
)

var (
	ErrInvalidState     = errors.New("application: invalid state")
	ErrInvalidTarget    = errors.New("application: invalid target")
	ErrAlreadyInBattle  = errors.New("application: already in battle")
	ErrAlreadyTraveling = errors.New("application: already traveling")
)

// クライアントへ返すエラーコード
const (
	CodeRateLimited           = "RATE_LIMITED"
	CodeInvalidState          = "INVALID_STATE"
	CodeInvalidTarget         = "INVALID_TARGET"
	CodeAlreadyInBattle       = "ALREADY_IN_BATTLE"
	CodeAlreadyTraveling      = "ALREADY_TRAVELING"
	CodeInsufficientResources = "INSUFFICIENT_RESOURCES"
	CodeInsufficientTroops    = "INSUFFICIENT_TROOPS"
	CodeQueueFull             = "QUEUE_FULL"
	CodeUpgradeInProgress     = "UPGRADE_IN_PROGRESS"
	CodePositionOccupied      = "POSITION_OCCUPIED"
	// 内部フォールトはゲートウェイ境界でこの文字列に変換される
	CodeServerError = "Server error"
)

// codeFor はサービス層のエラーをクライアント向けエラーコードへ変換します。
// 未知のエラーは内部フォールトとして CodeServerError になります。
func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrInvalidState):
		return CodeInvalidState
	case errors.Is(err, ErrInvalidTarget):
		return CodeInvalidTarget
	case errors.Is(err, ErrAlreadyInBattle):
		return CodeAlreadyInBattle
	case errors.Is(err, ErrAlreadyTraveling):
		return CodeAlreadyTraveling
	case errors.Is(err, state.ErrInsufficientResources):
		return CodeInsufficientResources
	case errors.Is(err, state.ErrInsufficientTroops):
		return CodeInsufficientTroops
	case errors.Is(err, state.ErrQueueFull):
		return CodeQueueFull
	case errors.Is(err, state.ErrUpgradeInProgress):
		return CodeUpgradeInProgress
	case errors.Is(err, state.ErrPositionOccupied):
		return CodePositionOccupied
	case errors.Is(err, state.ErrPlayerNotFound),
		errors.Is(err, state.ErrBuildingNotFound),
		errors.Is(err, state.ErrJobNotFound):
		return CodeInvalidTarget
	default:
		return CodeServerError
	}
}
