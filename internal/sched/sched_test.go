package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWindowed struct {
	mu     sync.Mutex
	states []bool
}

func (f *fakeWindowed) SetReducedWindow(active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, active)
}

func (f *fakeWindowed) last() (bool, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.states) == 0 {
		return false, false
	}
	return f.states[len(f.states)-1], true
}

func TestParseClockTime(t *testing.T) {
	ct, err := parseClockTime("06:30")
	require.NoError(t, err)
	assert.Equal(t, 6, ct.hour)
	assert.Equal(t, 30, ct.minute)

	_, err = parseClockTime("25:00")
	assert.Error(t, err)
	_, err = parseClockTime("12:75")
	assert.Error(t, err)
	_, err = parseClockTime("noon")
	assert.Error(t, err)
}

func TestCronSpec(t *testing.T) {
	assert.Equal(t, "30 6 * * *", clockTime{hour: 6, minute: 30}.cronSpec())
	assert.Equal(t, "0 0 * * *", clockTime{}.cronSpec())
}

func TestNewRejectsMalformedTimes(t *testing.T) {
	_, err := New(&fakeWindowed{}, "bogus", "06:00")
	assert.Error(t, err)
	_, err = New(&fakeWindowed{}, "00:00", "bogus")
	assert.Error(t, err)
}

func TestInWindow(t *testing.T) {
	at := func(hour, minute int) time.Time {
		return time.Date(2026, 3, 14, hour, minute, 0, 0, time.Local)
	}

	tests := []struct {
		name  string
		start string
		end   string
		t     time.Time
		want  bool
	}{
		{"inside simple window", "00:00", "06:00", at(3, 0), true},
		{"at window start", "00:00", "06:00", at(0, 0), true},
		{"at window end", "00:00", "06:00", at(6, 0), false},
		{"outside simple window", "00:00", "06:00", at(12, 0), false},
		{"inside wrapped window before midnight", "22:00", "06:00", at(23, 30), true},
		{"inside wrapped window after midnight", "22:00", "06:00", at(4, 0), true},
		{"outside wrapped window", "22:00", "06:00", at(12, 0), false},
		{"zero-length window never matches", "08:00", "08:00", at(8, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(&fakeWindowed{}, tt.start, tt.end)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.InWindow(tt.t))
		})
	}
}

func TestStartAppliesCurrentWindowState(t *testing.T) {
	target := &fakeWindowed{}
	s, err := New(target, "00:00", "23:59")
	require.NoError(t, err)
	s.now = func() time.Time { return time.Date(2026, 3, 14, 12, 0, 0, 0, time.Local) }

	s.Start()
	defer s.Stop()

	state, ok := target.last()
	require.True(t, ok, "Start must seed the window state immediately")
	assert.True(t, state)
}
