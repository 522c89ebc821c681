package domain_test

import (
	"testing"
	"time"

	domain "stronghold/server/domain"
)

func TestSession_IsIdle(t *testing.T) {
	session := domain.NewSession(1)

	ok, _ := session.IsIdle(1 * time.Hour)
	if ok {
		t.Fatal("fresh session should not be idle")
	}

	time.Sleep(20 * time.Millisecond)
	ok, reason := session.IsIdle(10 * time.Millisecond)
	if !ok {
		t.Fatal("session without activity should be idle")
	}
	if reason != domain.IdleRead|domain.IdleWrite {
		t.Fatalf("reason = %v, want read+write idle", reason)
	}

	// 読み込みだけ再開してもアイドル判定は解除される
	session.TouchRead()
	ok, _ = session.IsIdle(10 * time.Millisecond)
	if ok {
		t.Fatal("recent read activity should clear idleness")
	}
}

func TestSession_IsIdle_DisabledTimeout(t *testing.T) {
	session := domain.NewSession(1)

	ok, reason := session.IsIdle(0)
	if ok {
		t.Fatal("zero timeout should disable idle detection")
	}
	if reason != domain.IdleDisabled {
		t.Fatalf("reason = %v, want IdleDisabled", reason)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	session := domain.NewSession(1)

	if !session.Close() {
		t.Fatal("first close should succeed")
	}
	if session.Close() {
		t.Fatal("second close should report already closed")
	}
	if !session.IsClosed() {
		t.Fatal("session should be closed")
	}
}
