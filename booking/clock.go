package booking

import "time"

// Clock отдаёт текущее время. Внедряется, чтобы тесты могли его зафиксировать.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

func SystemClock() Clock { return systemClock{} }

// FixedClock — часы, остановленные на заданном моменте.
type FixedClock struct {
	Time time.Time
}

func (c FixedClock) Now() time.Time { return c.Time }
