package whatsapp

import (
	"context"
	"sync"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
)

// fakeClient is an in-memory ProtocolClient. Tests drive the session state
// machine by emitting events through the captured handler.
type fakeClient struct {
	mu           sync.Mutex
	handler      func(Event)
	connectCalls int
	disconnects  int
	closed       bool
	connectErr   error

	participants []string
	groups       []Group
	sendErr      error
	lastMentions []string
	lastText     string
	lastGroupID  string
	lastPTT      bool
	receipt      Receipt
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		receipt: Receipt{MessageID: "MSG-1", Timestamp: time.Unix(1700000000, 0)},
	}
}

func (f *fakeClient) Connect(handler func(Event)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.handler = handler
	return nil
}

func (f *fakeClient) emit(evt Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

func (f *fakeClient) connects() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connectCalls
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
}

func (f *fakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeClient) SendText(ctx context.Context, groupID, text string, linkPreview bool, mentions []string) (*Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.lastGroupID = groupID
	f.lastText = text
	f.lastMentions = mentions
	r := f.receipt
	return &r, nil
}

func (f *fakeClient) SendMedia(ctx context.Context, groupID, mediaURL, mediaType, caption string, mentions []string) (*Receipt, error) {
	return f.SendText(ctx, groupID, mediaURL, false, mentions)
}

func (f *fakeClient) SendDocument(ctx context.Context, groupID, documentURL, fileName, mimeType, caption string, mentions []string) (*Receipt, error) {
	return f.SendText(ctx, groupID, documentURL, false, mentions)
}

func (f *fakeClient) SendAudio(ctx context.Context, groupID, audioURL string, ptt bool, mentions []string) (*Receipt, error) {
	f.mu.Lock()
	f.lastPTT = ptt
	f.mu.Unlock()
	return f.SendText(ctx, groupID, audioURL, false, mentions)
}

func (f *fakeClient) GroupParticipants(ctx context.Context, groupID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.participants))
	copy(out, f.participants)
	return out, nil
}

func (f *fakeClient) JoinedGroups(ctx context.Context) ([]Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups, nil
}

// memStore is an in-memory InstanceStore.
type memStore struct {
	mu        sync.Mutex
	rows      map[string]domain.WaInstance
	updates   []string
	deleteErr error
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]domain.WaInstance)}
}

func (s *memStore) Create(inst *domain.WaInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst.CreatedAt = time.Now()
	s.rows[inst.ID] = *inst
	return nil
}

func (s *memStore) UpdateStatus(id, status, phone string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil
	}
	row.Status = status
	row.Phone = phone
	s.rows[id] = row
	s.updates = append(s.updates, id+":"+status)
	return nil
}

func (s *memStore) Get(id string) (*domain.WaInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[id]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *memStore) GetByAPIKey(key string) (*domain.WaInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ApiKey == key {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (s *memStore) List() ([]domain.WaInstance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.WaInstance, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *memStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.rows, id)
	return nil
}

func (s *memStore) statusOf(id string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[id].Status
}

// memAudit is an in-memory AuditStore.
type memAudit struct {
	mu   sync.Mutex
	recs []domain.WaMessageLog
}

func (a *memAudit) Append(rec *domain.WaMessageLog) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recs = append(a.recs, *rec)
	return nil
}

func (a *memAudit) ListByInstance(id string, limit int) ([]domain.WaMessageLog, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []domain.WaMessageLog
	for _, r := range a.recs {
		if r.InstanceID == id {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (a *memAudit) PurgeInstance(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.recs[:0]
	for _, r := range a.recs {
		if r.InstanceID != id {
			kept = append(kept, r)
		}
	}
	a.recs = kept
	return nil
}

func (a *memAudit) DeleteOlderThan(days int) (int64, error) {
	return 0, nil
}

func (a *memAudit) all() []domain.WaMessageLog {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]domain.WaMessageLog, len(a.recs))
	copy(out, a.recs)
	return out
}

// factoryOf returns a ClientFactory handing out a fixed sequence of fake
// clients, one per construction.
func factoryOf(clients ...*fakeClient) ClientFactory {
	var mu sync.Mutex
	i := 0
	return func(inst *domain.WaInstance, transport *ProxyTransport) (ProtocolClient, error) {
		mu.Lock()
		defer mu.Unlock()
		cli := clients[i%len(clients)]
		i++
		return cli, nil
	}
}

// waitUntil polls cond until it holds or the deadline passes.
func waitUntil(timeout time.Duration, cond func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(2 * time.Millisecond)
	}
	return cond()
}
