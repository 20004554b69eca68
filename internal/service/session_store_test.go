package service

import (
	"testing"
	"time"

	"github.com/MarselBissengaliyev/x-backend/internal/transfer"
)

func TestSessionStorePutGetDiscard(t *testing.T) {
	store := NewSessionStore(time.Minute)
	defer store.Close()

	page := newFakeSession()
	id, err := store.Put(page, transfer.AccountCreation{Login: "user"})
	if err != nil {
		t.Fatal(err)
	}

	sess, ok := store.Get(id)
	if !ok {
		t.Fatal("session not found right after Put")
	}
	if sess.pending.Login != "user" {
		t.Errorf("pending login = %q", sess.pending.Login)
	}

	store.Discard(id)
	if _, ok := store.Get(id); ok {
		t.Error("session still retrievable after Discard")
	}
	if !page.isClosed() {
		t.Error("Discard must close the page")
	}
}

func TestSessionStoreReleaseKeepsPageOpen(t *testing.T) {
	store := NewSessionStore(time.Minute)
	defer store.Close()

	page := newFakeSession()
	id, err := store.Put(page, transfer.AccountCreation{Login: "user"})
	if err != nil {
		t.Fatal(err)
	}

	store.Release(id)
	if _, ok := store.Get(id); ok {
		t.Error("session still retrievable after Release")
	}
	if page.isClosed() {
		t.Error("Release must not close the page")
	}
}

func TestSessionStoreSweepsExpired(t *testing.T) {
	store := NewSessionStore(50 * time.Millisecond)
	defer store.Close()

	page := newFakeSession()
	if _, err := store.Put(page, transfer.AccountCreation{Login: "user"}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if store.Len() == 0 && page.isClosed() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("session not swept and closed after TTL")
}

func TestSessionStoreGetDefersSweep(t *testing.T) {
	store := NewSessionStore(time.Minute)
	defer store.Close()

	page := newFakeSession()
	id, err := store.Put(page, transfer.AccountCreation{Login: "user"})
	if err != nil {
		t.Fatal(err)
	}

	store.mu.Lock()
	store.sessions[id].createdAt = time.Now().Add(-2 * time.Minute)
	store.mu.Unlock()

	if _, ok := store.Get(id); !ok {
		t.Fatal("session gone before resume")
	}
	store.sweep()

	if _, ok := store.Get(id); !ok {
		t.Error("a just-resumed session must survive the sweep")
	}
	if page.isClosed() {
		t.Error("sweep must not close a page a resume is using")
	}
}

func TestSessionStoreCloseShutsEverything(t *testing.T) {
	store := NewSessionStore(time.Minute)

	page := newFakeSession()
	if _, err := store.Put(page, transfer.AccountCreation{Login: "user"}); err != nil {
		t.Fatal(err)
	}

	store.Close()
	if store.Len() != 0 {
		t.Error("Close must drop all sessions")
	}
	if !page.isClosed() {
		t.Error("Close must close parked pages")
	}
}
