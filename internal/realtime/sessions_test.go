package realtime

import (
	"errors"
	"sync"
	"testing"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   [][]byte
	closed bool
}

func (c *fakeConn) Send(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, payload)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) payloads() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([][]byte(nil), c.sent...)
}

func TestRegistrySecondLoginDenied(t *testing.T) {
	reg := NewRegistry()
	first := &fakeConn{}
	second := &fakeConn{}

	if err := reg.Login("team-1", first); err != nil {
		t.Fatalf("first login: %v", err)
	}
	if err := reg.Login("team-1", second); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("expected ErrAlreadyActive, got %v", err)
	}
	if reg.Count() != 1 {
		t.Fatalf("expected 1 session, got %d", reg.Count())
	}
}

func TestRegistryRepeatLoginFromHolderSucceeds(t *testing.T) {
	reg := NewRegistry()
	conn := &fakeConn{}

	if err := reg.Login("team-1", conn); err != nil {
		t.Fatalf("login: %v", err)
	}
	if err := reg.Login("team-1", conn); err != nil {
		t.Fatalf("repeat login from holder: %v", err)
	}
}

func TestRegistryLogoutGuardedByHolder(t *testing.T) {
	reg := NewRegistry()
	holder := &fakeConn{}
	stale := &fakeConn{}

	if err := reg.Login("team-1", holder); err != nil {
		t.Fatalf("login: %v", err)
	}
	if reg.Logout("team-1", stale) {
		t.Fatal("stale connection released another's session")
	}
	if !reg.Holds("team-1") {
		t.Fatal("session lost to stale logout")
	}
	if !reg.Logout("team-1", holder) {
		t.Fatal("holder could not release its own session")
	}
}

func TestRegistryForceLogoutEvictsAnyHolder(t *testing.T) {
	reg := NewRegistry()
	holder := &fakeConn{}

	if err := reg.Login("team-1", holder); err != nil {
		t.Fatalf("login: %v", err)
	}
	prior, ok := reg.ForceLogout("team-1")
	if !ok || prior != holder {
		t.Fatalf("expected prior holder back, got %v ok=%v", prior, ok)
	}
	if reg.Holds("team-1") {
		t.Fatal("session still held after force logout")
	}
	if _, ok := reg.ForceLogout("team-1"); ok {
		t.Fatal("force logout of idle team reported a holder")
	}
}

func TestRegistryLoginRace(t *testing.T) {
	reg := NewRegistry()
	const attempts = 32

	var wg sync.WaitGroup
	wins := make(chan struct{}, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Login("team-1", &fakeConn{}); err == nil {
				wins <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for range wins {
		won++
	}
	if won != 1 {
		t.Fatalf("expected exactly one winning login, got %d", won)
	}
}

func TestRegistryClear(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []string{"a", "b", "c"} {
		if err := reg.Login(id, &fakeConn{}); err != nil {
			t.Fatalf("login %s: %v", id, err)
		}
	}
	if cleared := reg.Clear(); cleared != 3 {
		t.Fatalf("expected 3 cleared, got %d", cleared)
	}
	if reg.Count() != 0 {
		t.Fatalf("expected empty registry, got %d", reg.Count())
	}
}
