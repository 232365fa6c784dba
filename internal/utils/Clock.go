package utils

import "time"

// Clock supplies "now" so day keys can be resolved against a fixed instant in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) SetNow(now time.Time) {
	m.FixedNow = now
}

// AddDays moves the mock clock by whole calendar days.
func (m *MockClock) AddDays(days int) {
	m.FixedNow = m.FixedNow.AddDate(0, 0, days)
}
