package domain

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// ActorID は接続プレイヤーを識別する安定した数値IDです。
type ActorID int64

// Session は1接続の論理的な接続状態を表す構造体です。
// 認証済みのActorIDと接続単位のセッションIDを保持します。
type Session struct {
	actorID   ActorID
	sessionID string

	// activity
	lastRead  atomic.Int64
	lastWrite atomic.Int64

	// lifecycle
	closed atomic.Bool
}

func NewSession(actorID ActorID) *Session {
	s := &Session{
		actorID:   actorID,
		sessionID: uuid.NewString(),
	}
	now := time.Now().UnixNano()
	s.lastRead.Store(now)
	s.lastWrite.Store(now)
	return s
}

func (s *Session) ActorID() ActorID {
	return s.actorID
}

func (s *Session) ID() string {
	return s.sessionID
}

func (s *Session) TouchRead() {
	s.lastRead.Store(time.Now().UnixNano())
}

func (s *Session) TouchWrite() {
	s.lastWrite.Store(time.Now().UnixNano())
}

func (s *Session) Close() bool {
	return s.closed.CompareAndSwap(false, true)
}

func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// IsIdle は読み書きがtimeoutを超えて停止しているかを判定します。
func (s *Session) IsIdle(timeout time.Duration) (bool, IdleReason) {
	if timeout <= 0 {
		return false, IdleDisabled
	}
	var reason IdleReason
	if s.IsReadIdle(timeout) {
		reason |= IdleRead
	}
	if s.IsWriteIdle(timeout) {
		reason |= IdleWrite
	}
	// 読み書きの両方が停止している場合のみアイドル
	return reason == IdleRead|IdleWrite, reason
}

func (s *Session) IsReadIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastRead.Load()), timeout)
}

func (s *Session) IsWriteIdle(timeout time.Duration) bool {
	return isIdleSince(unixNanoToTime(s.lastWrite.Load()), timeout)
}

func isIdleSince(last time.Time, timeout time.Duration) bool {
	return time.Since(last) > timeout
}

func unixNanoToTime(nano int64) time.Time {
	return time.Unix(0, nano)
}
