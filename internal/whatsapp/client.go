package whatsapp

import (
	"context"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
)

// Event is raised by the protocol client and consumed by the session state
// machine. Events for one client are delivered one at a time, in arrival
// order.
type Event interface {
	sessionEvent()
}

// PairingEvent carries a fresh pairing token to be rendered as a QR code.
type PairingEvent struct {
	Code string
}

// OpenedEvent signals a successfully established session. Identity is the
// account identifier the session authenticated as.
type OpenedEvent struct {
	Identity string
}

// ClosedEvent signals a closed session. LoggedOut marks an authoritative
// logout: the credentials are gone and a fresh pairing is required.
type ClosedEvent struct {
	LoggedOut bool
	Code      int
}

// FailedEvent signals a failed connection attempt. No automatic retry
// follows; an operator-triggered reconnect is required.
type FailedEvent struct {
	Err error
}

func (PairingEvent) sessionEvent() {}
func (OpenedEvent) sessionEvent()  {}
func (ClosedEvent) sessionEvent()  {}
func (FailedEvent) sessionEvent()  {}

// Receipt identifies one transmitted message.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

// Group is a summary of one group chat the instance participates in.
type Group struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Participants int    `json:"participants"`
	Description  string `json:"description"`
	CreatedAt    int64  `json:"createdAt"`
	IsAdmin      bool   `json:"isAdmin"`
}

// ProtocolClient is the opaque collaborator that owns the wire protocol,
// encryption and credential storage. The orchestrator only drives its
// lifecycle and send primitives.
type ProtocolClient interface {
	// Connect registers the event handler and dials the network. Completion
	// is signaled through events, but an immediate dial failure is returned.
	Connect(handler func(Event)) error
	// Disconnect tears down the live connection and stops event delivery.
	Disconnect()
	// Close releases the credential store handle.
	Close() error

	SendText(ctx context.Context, groupID, text string, linkPreview bool, mentions []string) (*Receipt, error)
	SendMedia(ctx context.Context, groupID, mediaURL, mediaType, caption string, mentions []string) (*Receipt, error)
	SendDocument(ctx context.Context, groupID, documentURL, fileName, mimeType, caption string, mentions []string) (*Receipt, error)
	SendAudio(ctx context.Context, groupID, audioURL string, ptt bool, mentions []string) (*Receipt, error)

	GroupParticipants(ctx context.Context, groupID string) ([]string, error)
	JoinedGroups(ctx context.Context) ([]Group, error)
}

// ClientFactory builds a protocol client for one instance, bound to the
// instance's credential path and the given proxy transport (nil for a
// direct connection).
type ClientFactory func(inst *domain.WaInstance, transport *ProxyTransport) (ProtocolClient, error)
