package application

import (
	"sync"
	"time"

	"stronghold/server/domain"
)

// ウィンドウ長は1秒固定
const rateWindowLength = time.Second

type rateKey struct {
	actorID domain.ActorID
	action  string
}

type rateWindow struct {
	count int
	reset time.Time
}

// RateLimiter はアクター・アクションごとの固定ウィンドウカウンターです。
// 公平性のためのヒューリスティックであり、正当性の保証には使用しないこと。
type RateLimiter struct {
	mu      sync.Mutex
	windows map[rateKey]rateWindow
	clock   Clock
}

func NewRateLimiter(clock Clock) *RateLimiter {
	if clock == nil {
		clock = SystemClock()
	}
	return &RateLimiter{
		windows: make(map[rateKey]rateWindow),
		clock:   clock,
	}
}

// Allow はウィンドウ内のカウントを加算し、limit以内であればtrueを返します。
// ウィンドウはリセット時刻を過ぎた最初のアクセスで遅延リセットされます。
func (l *RateLimiter) Allow(actorID domain.ActorID, action string, limit int) bool {
	now := l.clock.Now()
	key := rateKey{actorID: actorID, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	window, ok := l.windows[key]
	if !ok || now.After(window.reset) {
		window = rateWindow{count: 0, reset: now.Add(rateWindowLength)}
	}
	window.count++
	l.windows[key] = window
	return window.count <= limit
}

// Purge はアクターの全ウィンドウを削除します。切断時に呼び出すこと。
func (l *RateLimiter) Purge(actorID domain.ActorID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.windows {
		if key.actorID == actorID {
			delete(l.windows, key)
		}
	}
}
