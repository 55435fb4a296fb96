package whatsapp

import (
	"sync"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"go.uber.org/zap"
)

// CredentialPurger releases the credential path of a deleted instance.
type CredentialPurger func(id string) error

// Stats aggregates instance counts per status.
type Stats struct {
	Total        int `json:"total"`
	Connected    int `json:"connected"`
	Disconnected int `json:"disconnected"`
	QR           int `json:"qr"`
	Error        int `json:"error"`
}

// ProxySummary is the non-sensitive proxy view exposed by listings.
type ProxySummary struct {
	Type    string `json:"type"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	HasAuth bool   `json:"hasAuth"`
}

// InstanceInfo merges a persisted instance row with its live session state.
type InstanceInfo struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Phone     string        `json:"phone,omitempty"`
	Status    Status        `json:"status"`
	QRCode    string        `json:"qrCode,omitempty"`
	Proxy     *ProxySummary `json:"proxy,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Registry owns the collection of sessions keyed by instance id. It is safe
// for concurrent use from HTTP handlers and protocol callbacks; a single
// coarse lock guards the map since registry mutations are rare compared to
// per-session event traffic.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	store   InstanceStore
	audit   AuditStore
	factory ClientFactory
	cfg     SessionConfig
	purge   CredentialPurger
}

func NewRegistry(store InstanceStore, audit AuditStore, factory ClientFactory, cfg SessionConfig, purge CredentialPurger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		audit:    audit,
		factory:  factory,
		cfg:      cfg,
		purge:    purge,
	}
}

// Create registers a new instance in the disconnected state and persists it
// immediately. It does not auto-connect.
func (r *Registry) Create(id, apiKey, name string, proxy *domain.ProxyConfig) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; ok {
		return nil, ErrAlreadyExists
	}

	inst := domain.WaInstance{
		ID:     id,
		Name:   name,
		ApiKey: apiKey,
		Status: string(StatusDisconnected),
	}
	inst.ApplyProxyConfig(proxy)

	if err := r.store.Create(&inst); err != nil {
		return nil, err
	}

	sess := newSession(inst, r.factory, r.store, r.cfg)
	r.sessions[id] = sess
	zap.L().Info("whatsapp: instance created",
		zap.String("instance_id", id), zap.String("name", name),
		zap.Bool("proxy", inst.ProxyEnabled))
	return sess, nil
}

// Hydrate reconstructs sessions from persisted rows at startup and
// auto-resumes instances that were previously connected or awaiting a
// scan. Resume failures are logged, not fatal to the batch.
func (r *Registry) Hydrate() (int, error) {
	rows, err := r.store.List()
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	resume := make([]*Session, 0, len(rows))
	for _, row := range rows {
		if _, ok := r.sessions[row.ID]; ok {
			continue
		}
		sess := newSession(row, r.factory, r.store, r.cfg)
		r.sessions[row.ID] = sess
		if row.Status == string(StatusConnected) || row.Status == string(StatusQR) {
			resume = append(resume, sess)
		}
	}
	r.mu.Unlock()

	for _, sess := range resume {
		zap.L().Info("whatsapp: auto-resuming instance", zap.String("instance_id", sess.ID()))
		if err := sess.Connect(); err != nil {
			zap.L().Warn("whatsapp: auto-resume failed",
				zap.String("instance_id", sess.ID()), zap.Error(err))
		}
	}

	zap.L().Info("whatsapp: registry hydrated", zap.Int("instances", len(rows)))
	return len(rows), nil
}

// Get returns the session for an instance id, nil when absent.
func (r *Registry) Get(id string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// GetByAPIKey resolves an api key to its session through the persistence
// layer, since the in-memory map is keyed by id.
func (r *Registry) GetByAPIKey(key string) *Session {
	row, err := r.store.GetByAPIKey(key)
	if err != nil {
		zap.L().Warn("whatsapp: api key lookup failed", zap.Error(err))
		return nil
	}
	if row == nil {
		return nil
	}
	return r.Get(row.ID)
}

// Delete forces a terminal disconnect, removes the session, and purges the
// persisted row, audit history and credential path.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	// Drop the row before evicting the session, so a persistence failure
	// leaves the instance fully intact instead of listed but unreachable.
	if err := r.store.Delete(id); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()

	sess.Disconnect()
	if r.audit != nil {
		if err := r.audit.PurgeInstance(id); err != nil {
			zap.L().Warn("whatsapp: failed to purge audit history",
				zap.String("instance_id", id), zap.Error(err))
		}
	}
	if r.purge != nil {
		if err := r.purge(id); err != nil {
			zap.L().Warn("whatsapp: failed to release credential path",
				zap.String("instance_id", id), zap.Error(err))
		}
	}
	zap.L().Info("whatsapp: instance removed", zap.String("instance_id", id))
	return nil
}

// List merges persisted rows with live session state.
func (r *Registry) List() ([]InstanceInfo, error) {
	rows, err := r.store.List()
	if err != nil {
		return nil, err
	}
	out := make([]InstanceInfo, 0, len(rows))
	for _, row := range rows {
		info := InstanceInfo{
			ID:        row.ID,
			Name:      row.Name,
			Phone:     row.Phone,
			Status:    Status(row.Status),
			CreatedAt: row.CreatedAt,
		}
		if sess := r.Get(row.ID); sess != nil {
			snap := sess.Snapshot()
			info.Status = snap.Status
			info.Phone = snap.Phone
			info.QRCode = snap.QRCode
		}
		if row.ProxyEnabled {
			info.Proxy = &ProxySummary{
				Type:    row.ProxyType,
				Host:    row.ProxyHost,
				Port:    row.ProxyPort,
				HasAuth: row.ProxyUsername != "" && row.ProxyPassword != "",
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Stats returns aggregate counts per status.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	st := Stats{Total: len(r.sessions)}
	for _, sess := range r.sessions {
		switch sess.Status() {
		case StatusConnected:
			st.Connected++
		case StatusQR:
			st.QR++
		case StatusError:
			st.Error++
		default:
			st.Disconnected++
		}
	}
	return st
}

// DisconnectAll tears down every session, best-effort. Used at shutdown
// before the store closes so no in-flight event can write afterwards.
func (r *Registry) DisconnectAll() {
	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		sessions = append(sessions, sess)
	}
	r.mu.RUnlock()

	zap.L().Info("whatsapp: disconnecting all instances", zap.Int("count", len(sessions)))
	for _, sess := range sessions {
		sess.Disconnect()
	}
}
