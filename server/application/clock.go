package application

import "time"

// Clock はテストで時間ソースを差し替えるための境界です。
type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

type systemClock struct{}

func (systemClock) Now() time.Time                  { return time.Now() }
func (systemClock) Since(t time.Time) time.Duration { return time.Since(t) }

// SystemClock は実時間を返すClock実装です。
func SystemClock() Clock { return systemClock{} }
