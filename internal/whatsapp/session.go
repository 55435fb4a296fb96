package whatsapp

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"go.uber.org/zap"
)

// Status is the connection state of one instance.
type Status string

const (
	StatusDisconnected Status = "disconnected"
	StatusQR           Status = "qr"
	StatusConnected    Status = "connected"
	StatusError        Status = "error"
)

// SessionConfig tunes the reconnection policy shared by all sessions.
type SessionConfig struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
}

// Snapshot is a read-only view of a session's current state.
type Snapshot struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Status   Status `json:"status"`
	QRCode   string `json:"qrCode,omitempty"`
	HasProxy bool   `json:"hasProxy"`
}

// Session is the per-instance connection state machine. All state mutations
// are serialized under mu; protocol events for one session are handled one
// at a time in arrival order. Transitions broadcast on cond so request
// handlers can wait for pairing without polling.
type Session struct {
	mu   sync.Mutex
	cond *sync.Cond

	inst     domain.WaInstance
	status   Status
	phone    string
	qrCode   string
	attempts int

	retryTimer   *time.Timer
	retryPending bool

	client  ProtocolClient
	factory ClientFactory
	store   InstanceStore
	cfg     SessionConfig
}

func newSession(inst domain.WaInstance, factory ClientFactory, store InstanceStore, cfg SessionConfig) *Session {
	s := &Session{
		inst:    inst,
		status:  StatusDisconnected,
		factory: factory,
		store:   store,
		cfg:     cfg,
	}
	s.cond = sync.NewCond(&s.mu)
	return s
}

func (s *Session) ID() string   { return s.inst.ID }
func (s *Session) Name() string { return s.inst.Name }

// Status returns the current connection status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Snapshot returns a side-effect-free view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		ID:       s.inst.ID,
		Name:     s.inst.Name,
		Phone:    s.phone,
		Status:   s.status,
		QRCode:   s.qrCode,
		HasProxy: s.inst.ProxyEnabled,
	}
}

// Connect asks the protocol client to (re)establish a session. Idempotent
// when already connected. Returns immediately; completion is signaled via
// events. An invalid proxy config degrades to a direct connection.
func (s *Session) Connect() error {
	s.mu.Lock()
	if s.status == StatusConnected {
		s.mu.Unlock()
		return nil
	}
	s.cancelRetryLocked()

	cli := s.client
	if cli == nil {
		// The transport descriptor is rebuilt from the latest stored config
		// on every fresh client.
		transport, err := BuildProxyTransport(s.inst.ProxyConfig())
		if err != nil {
			zap.L().Warn("whatsapp: proxy config rejected, connecting without proxy",
				zap.String("instance_id", s.inst.ID), zap.Error(err))
			transport = nil
		}
		cli, err = s.factory(&s.inst, transport)
		if err != nil {
			s.status = StatusError
			s.persistLocked()
			s.cond.Broadcast()
			s.mu.Unlock()
			return &ConnectError{Err: err}
		}
		s.client = cli
	}
	s.mu.Unlock()

	go func() {
		if err := cli.Connect(s.eventSink(cli)); err != nil {
			s.dispatch(cli, FailedEvent{Err: err})
		}
	}()
	return nil
}

// Disconnect cancels any pending retry, tears down the live session and
// forces the disconnected state. Idempotent.
func (s *Session) Disconnect() {
	s.mu.Lock()
	s.cancelRetryLocked()
	cli := s.client
	s.client = nil
	dirty := s.status != StatusDisconnected || s.phone != "" || s.qrCode != ""
	s.status = StatusDisconnected
	s.phone = ""
	s.qrCode = ""
	s.attempts = 0
	if dirty {
		s.persistLocked()
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	if cli != nil {
		cli.Disconnect()
		if err := cli.Close(); err != nil {
			zap.L().Warn("whatsapp: closing protocol client failed",
				zap.String("instance_id", s.inst.ID), zap.Error(err))
		}
		zap.L().Info("whatsapp: instance disconnected", zap.String("instance_id", s.inst.ID))
	}
}

// Protocol returns the protocol client when the session is connected, or a
// NotReadyError carrying the current status otherwise.
func (s *Session) Protocol() (ProtocolClient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusConnected || s.client == nil {
		return nil, &NotReadyError{Status: s.status}
	}
	return s.client, nil
}

// GroupParticipants fetches the current participant list of a group.
// Requires a connected session.
func (s *Session) GroupParticipants(ctx context.Context, groupID string) ([]string, error) {
	cli, err := s.Protocol()
	if err != nil {
		return nil, err
	}
	return cli.GroupParticipants(ctx, groupID)
}

// Groups lists the groups the instance participates in. Requires a
// connected session.
func (s *Session) Groups(ctx context.Context) ([]Group, error) {
	cli, err := s.Protocol()
	if err != nil {
		return nil, err
	}
	return cli.JoinedGroups(ctx)
}

// WaitPairing blocks until the session reaches the qr or connected state,
// or the timeout elapses. It returns the snapshot at that moment; a
// still-connecting status is returned as-is rather than failing.
func (s *Session) WaitPairing(timeout time.Duration) Snapshot {
	deadline := time.Now().Add(timeout)
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.status != StatusQR && s.status != StatusConnected {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		t := time.AfterFunc(remaining, s.cond.Broadcast)
		s.cond.Wait()
		t.Stop()
	}
	return s.snapshotLocked()
}

// eventSink binds event delivery to one protocol client so events from a
// torn-down client cannot touch the state machine.
func (s *Session) eventSink(cli ProtocolClient) func(Event) {
	return func(evt Event) { s.dispatch(cli, evt) }
}

func (s *Session) dispatch(cli ProtocolClient, evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != cli {
		// Stale event from a client replaced by disconnect/delete.
		return
	}

	switch e := evt.(type) {
	case PairingEvent:
		s.status = StatusQR
		s.qrCode = renderQR(e.Code)
		s.phone = ""
		s.persistLocked()
		zap.L().Info("whatsapp: pairing code issued", zap.String("instance_id", s.inst.ID))

	case OpenedEvent:
		s.status = StatusConnected
		s.phone = normalizeIdentity(e.Identity)
		s.qrCode = ""
		s.attempts = 0
		s.persistLocked()
		zap.L().Info("whatsapp: instance connected",
			zap.String("instance_id", s.inst.ID),
			zap.String("phone", s.phone),
			zap.Bool("proxy", s.inst.ProxyEnabled))

	case ClosedEvent:
		switch {
		case e.LoggedOut:
			// Authoritative logout: credentials are gone, never retry.
			s.cancelRetryLocked()
			s.status = StatusDisconnected
			s.phone = ""
			s.qrCode = ""
			s.attempts = 0
			s.persistLocked()
			zap.L().Info("whatsapp: instance logged out, fresh pairing required",
				zap.String("instance_id", s.inst.ID), zap.Int("cause", e.Code))
		case s.attempts < s.cfg.MaxReconnectAttempts:
			// Still trying: status is left as-is during the retry window.
			s.attempts++
			s.retryPending = true
			s.retryTimer = time.AfterFunc(s.cfg.ReconnectDelay, s.retryConnect)
			zap.L().Info("whatsapp: connection closed, scheduling reconnect",
				zap.String("instance_id", s.inst.ID),
				zap.Int("attempt", s.attempts),
				zap.Int("max", s.cfg.MaxReconnectAttempts))
		default:
			s.status = StatusDisconnected
			s.phone = ""
			s.qrCode = ""
			s.attempts = 0
			s.persistLocked()
			zap.L().Warn("whatsapp: reconnect attempts exhausted",
				zap.String("instance_id", s.inst.ID))
		}

	case FailedEvent:
		s.status = StatusError
		s.phone = ""
		s.qrCode = ""
		s.persistLocked()
		zap.L().Warn("whatsapp: connect failed",
			zap.String("instance_id", s.inst.ID), zap.Error(e.Err))
	}

	s.cond.Broadcast()
}

// retryConnect runs from the retry timer. A disconnect that raced the timer
// clears retryPending first, which makes this a no-op.
func (s *Session) retryConnect() {
	s.mu.Lock()
	if !s.retryPending {
		s.mu.Unlock()
		return
	}
	s.retryPending = false
	s.retryTimer = nil
	cli := s.client
	s.mu.Unlock()
	if cli == nil {
		return
	}
	if err := cli.Connect(s.eventSink(cli)); err != nil {
		s.dispatch(cli, FailedEvent{Err: err})
	}
}

func (s *Session) cancelRetryLocked() {
	s.retryPending = false
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

func (s *Session) persistLocked() {
	if s.store == nil {
		return
	}
	if err := s.store.UpdateStatus(s.inst.ID, string(s.status), s.phone); err != nil {
		zap.L().Warn("whatsapp: failed to persist instance status",
			zap.String("instance_id", s.inst.ID), zap.Error(err))
	}
}

// normalizeIdentity reduces a session identity like "5511999@s.whatsapp.net"
// or "5511999:12@s.whatsapp.net" to the bare phone number.
func normalizeIdentity(identity string) string {
	if i := strings.IndexByte(identity, '@'); i >= 0 {
		identity = identity[:i]
	}
	if i := strings.IndexByte(identity, ':'); i >= 0 {
		identity = identity[:i]
	}
	return identity
}
