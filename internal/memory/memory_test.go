package memory

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeMonitor returns a monitor with a fixed limit whose samples come from
// alloc instead of the runtime.
func fakeMonitor(limit int64, alloc *atomic.Uint64, onCritical func(float64)) *Monitor {
	m := NewMonitor(Config{
		MemoryLimitBytes:  limit,
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     10 * time.Millisecond,
		OnCritical:        onCritical,
	})
	m.alloc = alloc.Load
	return m
}

func TestNewMonitorExplicitLimit(t *testing.T) {
	m := NewMonitor(Config{MemoryLimitBytes: 100 << 20, HighWaterMark: 0.7, CriticalWaterMark: 0.85})
	if m.limit != 100<<20 {
		t.Errorf("Expected limit %d, got %d", 100<<20, m.limit)
	}
	if m.IsPaused() {
		t.Error("new monitor should not be paused")
	}
}

func TestMonitorPauseAndResume(t *testing.T) {
	var alloc atomic.Uint64
	var criticals atomic.Int32
	m := fakeMonitor(1000, &alloc, func(float64) { criticals.Add(1) })
	defer m.Stop()

	steps := []struct {
		alloc      uint64
		wantPaused bool
	}{
		{500, false},
		{900, true},
		{950, true},
		{800, true}, // between the marks: stays paused
		{600, false},
		{860, true},
	}
	for _, s := range steps {
		alloc.Store(s.alloc)
		m.checkMemory()
		if m.IsPaused() != s.wantPaused {
			t.Errorf("alloc %d: paused = %v, want %v", s.alloc, m.IsPaused(), s.wantPaused)
		}
	}
	if got := criticals.Load(); got != 2 {
		t.Errorf("OnCritical ran %d times, want 2", got)
	}
}

func TestMonitorWaitIfPaused(t *testing.T) {
	var alloc atomic.Uint64
	m := fakeMonitor(1000, &alloc, nil)
	defer m.Stop()

	if !m.WaitIfPaused() {
		t.Fatal("WaitIfPaused should return true when not paused")
	}

	alloc.Store(900)
	m.checkMemory()

	released := make(chan bool)
	go func() { released <- m.WaitIfPaused() }()

	select {
	case <-released:
		t.Fatal("WaitIfPaused returned while paused")
	case <-time.After(50 * time.Millisecond):
	}

	alloc.Store(100)
	m.checkMemory()

	select {
	case ok := <-released:
		if !ok {
			t.Error("WaitIfPaused should return true after recovery")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitIfPaused did not return after recovery")
	}
}

func TestMonitorStopReleasesWaiters(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(990)
	m := fakeMonitor(1000, &alloc, nil)
	m.checkMemory()

	released := make(chan bool)
	go func() { released <- m.WaitIfPaused() }()
	m.Stop()
	m.Stop()

	select {
	case ok := <-released:
		if ok {
			t.Error("WaitIfPaused should return false after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("Stop did not release the waiter")
	}
}

func TestMonitorStartSamples(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(900)
	var once sync.Once
	fired := make(chan struct{})
	m := fakeMonitor(1000, &alloc, func(float64) { once.Do(func() { close(fired) }) })
	m.Start()
	defer m.Stop()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("monitor loop never sampled")
	}
}

func TestMonitorStatus(t *testing.T) {
	var alloc atomic.Uint64
	alloc.Store(250)
	m := fakeMonitor(1000, &alloc, nil)
	m.checkMemory()

	s := m.Status()
	if s.Alloc != 250 || s.Limit != 1000 || s.Usage != 0.25 || s.Paused {
		t.Errorf("Status() = %+v", s)
	}
}
