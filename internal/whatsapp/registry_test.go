package whatsapp

import (
	"sync"
	"testing"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"github.com/pkg/errors"
)

func newTestRegistry(store *memStore, audit *memAudit, clients ...*fakeClient) *Registry {
	if len(clients) == 0 {
		clients = []*fakeClient{newFakeClient()}
	}
	return NewRegistry(store, audit, factoryOf(clients...), testSessionConfig(), nil)
}

func TestRegistryCreatePersistsBeforeRegistering(t *testing.T) {
	store := newMemStore()
	reg := newTestRegistry(store, &memAudit{})

	sess, err := reg.Create("instance-1", "baileys_k1", "sales", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sess.Status() != StatusDisconnected {
		t.Fatalf("new instance status = %s, want disconnected", sess.Status())
	}

	row, _ := store.Get("instance-1")
	if row == nil {
		t.Fatal("instance row was not persisted")
	}
	if row.ApiKey != "baileys_k1" || row.Name != "sales" {
		t.Fatalf("row = %+v, fields not persisted", row)
	}

	// Created instances never auto-connect.
	if got := reg.Get("instance-1").Status(); got != StatusDisconnected {
		t.Fatalf("status = %s, created instance must stay disconnected", got)
	}
}

func TestRegistryCreateDuplicate(t *testing.T) {
	reg := newTestRegistry(newMemStore(), &memAudit{})
	if _, err := reg.Create("instance-1", "k1", "a", nil); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := reg.Create("instance-1", "k2", "b", nil)
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestRegistryCreateWithProxy(t *testing.T) {
	store := newMemStore()
	reg := newTestRegistry(store, &memAudit{})

	proxy := &domain.ProxyConfig{Enabled: true, Type: "socks5", Host: "10.0.0.1", Port: 1080, Username: "u", Password: "p"}
	if _, err := reg.Create("instance-1", "k1", "a", proxy); err != nil {
		t.Fatalf("create: %v", err)
	}

	row, _ := store.Get("instance-1")
	if !row.ProxyEnabled || row.ProxyType != "socks5" || row.ProxyPort != 1080 {
		t.Fatalf("proxy columns not persisted: %+v", row)
	}

	infos, err := reg.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 1 || infos[0].Proxy == nil {
		t.Fatal("listing should carry a proxy summary")
	}
	if !infos[0].Proxy.HasAuth {
		t.Fatal("proxy summary should flag credentials without exposing them")
	}
}

func TestRegistryGetByAPIKey(t *testing.T) {
	reg := newTestRegistry(newMemStore(), &memAudit{})
	_, _ = reg.Create("instance-1", "baileys_k1", "a", nil)

	if sess := reg.GetByAPIKey("baileys_k1"); sess == nil || sess.ID() != "instance-1" {
		t.Fatal("api key lookup failed")
	}
	if sess := reg.GetByAPIKey("unknown"); sess != nil {
		t.Fatal("unknown api key should resolve to nil")
	}
}

func TestRegistryDelete(t *testing.T) {
	store := newMemStore()
	audit := &memAudit{}
	purged := make([]string, 0, 1)
	var mu sync.Mutex
	reg := NewRegistry(store, audit, factoryOf(newFakeClient()), testSessionConfig(), func(id string) error {
		mu.Lock()
		defer mu.Unlock()
		purged = append(purged, id)
		return nil
	})

	_, _ = reg.Create("instance-1", "k1", "a", nil)
	_ = audit.Append(&domain.WaMessageLog{InstanceID: "instance-1", MessageType: "text"})

	if err := reg.Delete("instance-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if row, _ := store.Get("instance-1"); row != nil {
		t.Fatal("instance row survived deletion")
	}
	if recs, _ := audit.ListByInstance("instance-1", 10); len(recs) != 0 {
		t.Fatal("audit history survived deletion")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(purged) != 1 || purged[0] != "instance-1" {
		t.Fatal("credential purge was not invoked")
	}
	if reg.Get("instance-1") != nil {
		t.Fatal("session survived deletion")
	}
}

func TestRegistryDeleteKeepsSessionOnStoreFailure(t *testing.T) {
	store := newMemStore()
	reg := newTestRegistry(store, &memAudit{})
	_, _ = reg.Create("instance-1", "k1", "a", nil)

	store.deleteErr = errForTest("db down")
	if err := reg.Delete("instance-1"); err == nil {
		t.Fatal("delete should surface the store failure")
	}

	// A failed delete must leave the instance whole: row, session and
	// lookup all intact, no listed-but-unreachable state.
	if row, _ := store.Get("instance-1"); row == nil {
		t.Fatal("instance row vanished despite the failed delete")
	}
	if reg.Get("instance-1") == nil {
		t.Fatal("session evicted despite the failed delete")
	}

	store.deleteErr = nil
	if err := reg.Delete("instance-1"); err != nil {
		t.Fatalf("retry delete: %v", err)
	}
	if reg.Get("instance-1") != nil {
		t.Fatal("session survived successful delete")
	}
}

func TestRegistryDeleteUnknown(t *testing.T) {
	reg := newTestRegistry(newMemStore(), &memAudit{})
	if err := reg.Delete("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegistryHydrateAutoResumes(t *testing.T) {
	store := newMemStore()
	_ = store.Create(&domain.WaInstance{ID: "instance-a", ApiKey: "ka", Status: "connected"})
	_ = store.Create(&domain.WaInstance{ID: "instance-b", ApiKey: "kb", Status: "qr"})
	_ = store.Create(&domain.WaInstance{ID: "instance-c", ApiKey: "kc", Status: "disconnected"})

	cliA, cliB, cliC := newFakeClient(), newFakeClient(), newFakeClient()
	total := func() int { return cliA.connects() + cliB.connects() + cliC.connects() }

	reg := NewRegistry(store, &memAudit{}, factoryOf(cliA, cliB, cliC), testSessionConfig(), nil)
	n, err := reg.Hydrate()
	if err != nil {
		t.Fatalf("hydrate: %v", err)
	}
	if n != 3 {
		t.Fatalf("hydrated %d rows, want 3", n)
	}
	for _, id := range []string{"instance-a", "instance-b", "instance-c"} {
		if reg.Get(id) == nil {
			t.Fatalf("session %s missing after hydrate", id)
		}
	}

	// Only the connected and qr rows resume; the disconnected one stays put.
	if !waitUntil(time.Second, func() bool { return total() == 2 }) {
		t.Fatalf("connect calls = %d, want 2 auto-resumes", total())
	}
	time.Sleep(20 * time.Millisecond)
	if total() != 2 {
		t.Fatalf("connect calls = %d after settle, want 2", total())
	}
}

func TestRegistryStats(t *testing.T) {
	cli := newFakeClient()
	reg := newTestRegistry(newMemStore(), &memAudit{}, cli)

	sess, _ := reg.Create("instance-1", "k1", "a", nil)
	_, _ = reg.Create("instance-2", "k2", "b", nil)

	_ = sess.Connect()
	waitUntil(time.Second, func() bool { return cli.connects() == 1 })
	cli.emit(OpenedEvent{Identity: "551@s.whatsapp.net"})

	st := reg.Stats()
	if st.Total != 2 || st.Connected != 1 || st.Disconnected != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestRegistryDisconnectAll(t *testing.T) {
	cli1, cli2 := newFakeClient(), newFakeClient()
	reg := newTestRegistry(newMemStore(), &memAudit{}, cli1, cli2)

	s1, _ := reg.Create("instance-1", "k1", "a", nil)
	s2, _ := reg.Create("instance-2", "k2", "b", nil)
	_ = s1.Connect()
	_ = s2.Connect()
	waitUntil(time.Second, func() bool { return cli1.connects()+cli2.connects() == 2 })

	reg.DisconnectAll()

	if s1.Status() != StatusDisconnected || s2.Status() != StatusDisconnected {
		t.Fatal("sessions still live after DisconnectAll")
	}
}
