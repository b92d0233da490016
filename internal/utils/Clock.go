package utils

import "time"

// Clock supplies timestamps written to storage.
type Clock interface {
	Now() time.Time
}

// SystemClock returns UTC time at the microsecond precision Postgres keeps.
type SystemClock struct{}

func (s SystemClock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

type MockClock struct {
	FixedNow time.Time
}

func (m *MockClock) Now() time.Time {
	return m.FixedNow
}

func (m *MockClock) Advance(d time.Duration) {
	m.FixedNow = m.FixedNow.Add(d)
}
