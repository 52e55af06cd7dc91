package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestMonitorEvictsUnresponsiveSession(t *testing.T) {
	cfg := testConfig()
	cfg.InactivityTimeout = time.Minute
	r := mustRegistry(t, cfg)

	removed := make(chan RemoveReason, 1)
	r.SetRemovalHandler(func(s Snapshot, reason RemoveReason) {
		removed <- reason
	})

	deadPing := func(ctx context.Context, id string) (bool, error) {
		return false, nil
	}
	m := NewMonitor(r, deadPing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})

	select {
	case reason := <-removed:
		if reason != ReasonPingFailure {
			t.Errorf("reason = %q, want %q", reason, ReasonPingFailure)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("unresponsive session was never evicted")
	}
}

func TestMonitorHealthySessionSurvives(t *testing.T) {
	cfg := testConfig()
	r := mustRegistry(t, cfg)

	var probes atomic.Int64
	alivePing := func(ctx context.Context, id string) (bool, error) {
		probes.Add(1)
		return true, nil
	}
	m := NewMonitor(r, alivePing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	time.Sleep(100 * time.Millisecond)

	if !r.Has("s1") {
		t.Fatal("healthy session was evicted")
	}
	if probes.Load() == 0 {
		t.Fatal("session was never probed")
	}
	snap, _ := r.Get("s1")
	if snap.FailedPings != 0 {
		t.Errorf("FailedPings = %d, want 0", snap.FailedPings)
	}
	if snap.LastPongAt.IsZero() {
		t.Error("successful probes did not record a pong")
	}
}

func TestMonitorSuccessResetsFailureCount(t *testing.T) {
	r := mustRegistry(t, testConfig()) // threshold 3

	// Fail twice, then recover: the counter must reset so the session
	// never reaches the threshold
	var calls atomic.Int64
	flakyPing := func(ctx context.Context, id string) (bool, error) {
		n := calls.Add(1)
		return n > 2, nil
	}
	m := NewMonitor(r, flakyPing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	time.Sleep(150 * time.Millisecond)

	if !r.Has("s1") {
		t.Fatal("recovered session was evicted")
	}
	snap, _ := r.Get("s1")
	if snap.FailedPings != 0 {
		t.Errorf("FailedPings = %d after recovery, want 0", snap.FailedPings)
	}
}

func TestMonitorErrorCountsAsFailure(t *testing.T) {
	r := mustRegistry(t, testConfig())

	removed := make(chan struct{}, 1)
	r.SetRemovalHandler(func(s Snapshot, reason RemoveReason) {
		removed <- struct{}{}
	})

	errPing := func(ctx context.Context, id string) (bool, error) {
		return false, errors.New("transport broken")
	}
	m := NewMonitor(r, errPing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("erroring probes never evicted the session")
	}
}

func TestMonitorPanicCountsAsFailure(t *testing.T) {
	r := mustRegistry(t, testConfig())

	removed := make(chan struct{}, 1)
	r.SetRemovalHandler(func(s Snapshot, reason RemoveReason) {
		removed <- struct{}{}
	})

	panicPing := func(ctx context.Context, id string) (bool, error) {
		panic("callback bug")
	}
	m := NewMonitor(r, panicPing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("panicking probes never evicted the session")
	}
}

func TestMonitorZeroIntervalDisablesProbing(t *testing.T) {
	r := mustRegistry(t, testConfig())

	var probes atomic.Int64
	countingPing := func(ctx context.Context, id string) (bool, error) {
		probes.Add(1)
		return false, nil
	}
	m := NewMonitor(r, countingPing, 0)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	time.Sleep(50 * time.Millisecond)

	if probes.Load() != 0 {
		t.Errorf("probed %d times with interval 0, want 0", probes.Load())
	}
	if !r.Has("s1") {
		t.Error("session evicted with probing disabled")
	}
}

func TestMonitorStopsProbingRemovedSession(t *testing.T) {
	r := mustRegistry(t, testConfig())

	var probes atomic.Int64
	countingPing := func(ctx context.Context, id string) (bool, error) {
		probes.Add(1)
		return true, nil
	}
	m := NewMonitor(r, countingPing, 10*time.Millisecond)
	m.Start()
	defer m.Stop()

	r.Add("s1", ClientInfo{})
	time.Sleep(30 * time.Millisecond)
	r.Remove("s1")

	time.Sleep(20 * time.Millisecond)
	settled := probes.Load()
	time.Sleep(50 * time.Millisecond)
	if probes.Load() != settled {
		t.Errorf("probing continued after removal: %d -> %d", settled, probes.Load())
	}
}
