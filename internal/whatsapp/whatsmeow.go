package whatsapp

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/guonaihong/gout"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"go.mau.fi/whatsmeow"
	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	waTypes "go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	xproxy "golang.org/x/net/proxy"
	"google.golang.org/protobuf/proto"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
)

const fetchTimeout = 60 * time.Second

// WhatsmeowFactory builds whatsmeow-backed protocol clients. Each instance
// id owns one sqlite credential store under <workdir>/auth, never shared.
type WhatsmeowFactory struct {
	authDir string
}

func NewWhatsmeowFactory(workdir string) (*WhatsmeowFactory, error) {
	dir := filepath.Join(workdir, "auth")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create auth dir")
	}
	return &WhatsmeowFactory{authDir: dir}, nil
}

func (f *WhatsmeowFactory) credentialPath(id string) string {
	return filepath.Join(f.authDir, id+".db")
}

// NewClient opens the instance's credential store and builds a client with
// the given proxy transport applied. Satisfies ClientFactory.
func (f *WhatsmeowFactory) NewClient(inst *domain.WaInstance, transport *ProxyTransport) (ProtocolClient, error) {
	ctx := context.Background()
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on", f.credentialPath(inst.ID)))
	if err != nil {
		return nil, errors.Wrap(err, "open credential store")
	}
	container := sqlstore.NewWithDB(db, "sqlite3", nil)
	if err := container.Upgrade(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "migrate credential store")
	}
	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "load device")
	}

	cli := whatsmeow.NewClient(device, nil)
	// The session state machine owns the retry policy.
	cli.EnableAutoReconnect = false
	applyProxy(cli, transport, inst.ID)

	return &meowClient{cli: cli, db: db}, nil
}

// PurgeCredentials releases the credential path of a deleted instance.
func (f *WhatsmeowFactory) PurgeCredentials(id string) error {
	base := f.credentialPath(id)
	var first error
	for _, p := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) && first == nil {
			first = err
		}
	}
	return first
}

// applyProxy configures the client's transport from a descriptor. Failures
// degrade to a direct connection rather than blocking the instance.
func applyProxy(cli *whatsmeow.Client, t *ProxyTransport, instanceID string) {
	if t == nil {
		return
	}
	switch t.Kind {
	case ProxySocks5, ProxySocks5TLS:
		var forward xproxy.Dialer = &net.Dialer{Timeout: 30 * time.Second}
		if t.InsecureTLS {
			zap.L().Warn("whatsapp: proxy TLS certificate verification disabled",
				zap.String("instance_id", instanceID), zap.String("proxy", t.Address()))
			forward = &tlsDialer{inner: &net.Dialer{Timeout: 30 * time.Second}}
		}
		var auth *xproxy.Auth
		if u := t.URL.User; u != nil {
			pw, _ := u.Password()
			auth = &xproxy.Auth{User: u.Username(), Password: pw}
		}
		dialer, err := xproxy.SOCKS5("tcp", t.Address(), auth, forward)
		if err != nil {
			zap.L().Warn("whatsapp: socks proxy setup failed, connecting without proxy",
				zap.String("instance_id", instanceID), zap.Error(err))
			return
		}
		cli.SetSOCKSProxy(dialer)
	case ProxyHTTP, ProxyHTTPS:
		cli.SetProxy(http.ProxyURL(t.URL))
	default:
		// socks4 and anything else the client may or may not accept.
		if err := cli.SetProxyAddress(t.URL.String()); err != nil {
			zap.L().Warn("whatsapp: proxy not supported by client, connecting without proxy",
				zap.String("instance_id", instanceID),
				zap.String("kind", string(t.Kind)), zap.Error(err))
			return
		}
	}
	zap.L().Info("whatsapp: proxy transport configured",
		zap.String("instance_id", instanceID),
		zap.String("kind", string(t.Kind)), zap.String("proxy", t.Address()))
}

// tlsDialer reaches the proxy server over TLS without verifying its
// certificate (the socks5-tls trade-off, logged at Warn when active).
type tlsDialer struct {
	inner *net.Dialer
}

func (d *tlsDialer) Dial(network, addr string) (net.Conn, error) {
	return tls.DialWithDialer(d.inner, network, addr, &tls.Config{InsecureSkipVerify: true})
}

// meowClient adapts one whatsmeow client to the ProtocolClient interface,
// translating whatsmeow events into session events.
type meowClient struct {
	cli *whatsmeow.Client
	db  *sql.DB

	mu        sync.Mutex
	handler   func(Event)
	handlerID uint32
	stopped   bool
}

func (m *meowClient) Connect(handler func(Event)) error {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return errors.New("protocol client closed")
	}
	if m.handler == nil {
		m.handler = handler
		m.handlerID = m.cli.AddEventHandler(m.translate)
	}
	m.mu.Unlock()

	if m.cli.IsConnected() {
		return nil
	}
	return m.cli.Connect()
}

func (m *meowClient) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	if m.handler != nil {
		m.cli.RemoveEventHandler(m.handlerID)
		m.handler = nil
	}
	m.mu.Unlock()
	m.cli.Disconnect()
}

func (m *meowClient) Close() error {
	return m.db.Close()
}

// translate runs on whatsmeow's event loop, so delivery order per client is
// preserved.
func (m *meowClient) translate(evt interface{}) {
	switch e := evt.(type) {
	case *events.QR:
		if len(e.Codes) > 0 {
			m.emit(PairingEvent{Code: e.Codes[0]})
		}
	case *events.Connected:
		m.emit(OpenedEvent{Identity: m.identity()})
	case *events.LoggedOut:
		m.emit(ClosedEvent{LoggedOut: true, Code: int(e.Reason)})
	case *events.StreamReplaced:
		m.emit(ClosedEvent{})
	case *events.Disconnected:
		m.emit(ClosedEvent{})
	case *events.ConnectFailure:
		m.emit(FailedEvent{Err: fmt.Errorf("connect failure: %s (reason %d)", e.Message, int(e.Reason))})
	case *events.TemporaryBan:
		m.emit(FailedEvent{Err: fmt.Errorf("temporarily banned (code %d)", int(e.Code))})
	case *events.ClientOutdated:
		m.emit(FailedEvent{Err: errors.New("client version outdated")})
	}
}

func (m *meowClient) emit(evt Event) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()
	if h != nil {
		h(evt)
	}
}

func (m *meowClient) identity() string {
	if id := m.cli.Store.ID; id != nil {
		return id.User
	}
	return ""
}

func (m *meowClient) SendText(ctx context.Context, groupID, text string, linkPreview bool, mentions []string) (*Receipt, error) {
	jid, err := waTypes.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid group id")
	}
	var msg *waE2E.Message
	if len(mentions) > 0 || linkPreview {
		msg = &waE2E.Message{ExtendedTextMessage: &waE2E.ExtendedTextMessage{
			Text:        proto.String(text),
			ContextInfo: contextInfo(mentions),
		}}
	} else {
		msg = &waE2E.Message{Conversation: proto.String(text)}
	}
	resp, err := m.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}
	return &Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *meowClient) SendMedia(ctx context.Context, groupID, mediaURL, mediaType, caption string, mentions []string) (*Receipt, error) {
	jid, err := waTypes.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid group id")
	}
	var kind whatsmeow.MediaType
	switch mediaType {
	case "image":
		kind = whatsmeow.MediaImage
	case "video":
		kind = whatsmeow.MediaVideo
	case "audio":
		kind = whatsmeow.MediaAudio
	default:
		return nil, fmt.Errorf("unsupported media type %q", mediaType)
	}

	data, err := fetchURL(ctx, mediaURL)
	if err != nil {
		return nil, err
	}
	up, err := m.cli.Upload(ctx, data, kind)
	if err != nil {
		return nil, errors.Wrap(err, "upload media")
	}
	mime := mimetype.Detect(data).String()

	msg := &waE2E.Message{}
	switch mediaType {
	case "image":
		msg.ImageMessage = &waE2E.ImageMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mime),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(caption),
			ContextInfo:   contextInfo(mentions),
		}
	case "video":
		msg.VideoMessage = &waE2E.VideoMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mime),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			Caption:       proto.String(caption),
			ContextInfo:   contextInfo(mentions),
		}
	case "audio":
		msg.AudioMessage = &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String(mime),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			ContextInfo:   contextInfo(mentions),
		}
	}

	resp, err := m.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}
	return &Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *meowClient) SendDocument(ctx context.Context, groupID, documentURL, fileName, mimeType, caption string, mentions []string) (*Receipt, error) {
	jid, err := waTypes.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid group id")
	}
	data, err := fetchURL(ctx, documentURL)
	if err != nil {
		return nil, err
	}
	up, err := m.cli.Upload(ctx, data, whatsmeow.MediaDocument)
	if err != nil {
		return nil, errors.Wrap(err, "upload document")
	}

	msg := &waE2E.Message{DocumentMessage: &waE2E.DocumentMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		Mimetype:      proto.String(mimeType),
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		FileName:      proto.String(fileName),
		Title:         proto.String(fileName),
		Caption:       proto.String(caption),
		ContextInfo:   contextInfo(mentions),
	}}

	resp, err := m.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}
	return &Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *meowClient) SendAudio(ctx context.Context, groupID, audioURL string, ptt bool, mentions []string) (*Receipt, error) {
	jid, err := waTypes.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid group id")
	}
	data, err := fetchURL(ctx, audioURL)
	if err != nil {
		return nil, err
	}
	up, err := m.cli.Upload(ctx, data, whatsmeow.MediaAudio)
	if err != nil {
		return nil, errors.Wrap(err, "upload audio")
	}

	msg := &waE2E.Message{AudioMessage: &waE2E.AudioMessage{
		URL:           proto.String(up.URL),
		DirectPath:    proto.String(up.DirectPath),
		MediaKey:      up.MediaKey,
		Mimetype:      proto.String("audio/mp4"),
		FileEncSHA256: up.FileEncSHA256,
		FileSHA256:    up.FileSHA256,
		FileLength:    proto.Uint64(up.FileLength),
		PTT:           proto.Bool(ptt),
		ContextInfo:   contextInfo(mentions),
	}}

	resp, err := m.cli.SendMessage(ctx, jid, msg)
	if err != nil {
		return nil, err
	}
	return &Receipt{MessageID: resp.ID, Timestamp: resp.Timestamp}, nil
}

func (m *meowClient) GroupParticipants(ctx context.Context, groupID string) ([]string, error) {
	jid, err := waTypes.ParseJID(groupID)
	if err != nil {
		return nil, errors.Wrap(err, "invalid group id")
	}
	info, err := m.cli.GetGroupInfo(ctx, jid)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(info.Participants))
	for _, p := range info.Participants {
		out = append(out, p.JID.String())
	}
	return out, nil
}

func (m *meowClient) JoinedGroups(ctx context.Context) ([]Group, error) {
	groups, err := m.cli.GetJoinedGroups(ctx)
	if err != nil {
		return nil, err
	}
	var own waTypes.JID
	if m.cli.Store.ID != nil {
		own = m.cli.Store.ID.ToNonAD()
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		admin := false
		for _, p := range g.Participants {
			if p.JID.ToNonAD() == own && (p.IsAdmin || p.IsSuperAdmin) {
				admin = true
				break
			}
		}
		out = append(out, Group{
			ID:           g.JID.String(),
			Name:         g.Name,
			Participants: len(g.Participants),
			Description:  g.Topic,
			CreatedAt:    g.GroupCreated.Unix(),
			IsAdmin:      admin,
		})
	}
	return out, nil
}

func contextInfo(mentions []string) *waE2E.ContextInfo {
	if len(mentions) == 0 {
		return nil
	}
	return &waE2E.ContextInfo{MentionedJID: mentions}
}

// fetchURL downloads a payload reference. The content is not re-validated;
// the caller decides what it is.
func fetchURL(ctx context.Context, rawURL string) ([]byte, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, errors.Wrap(err, "invalid payload url")
	}
	fctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()
	var body []byte
	if err := gout.GET(rawURL).WithContext(fctx).BindBody(&body).Do(); err != nil {
		return nil, errors.Wrapf(err, "fetch %s", rawURL)
	}
	return body, nil
}
