package whatsapp

import (
	"context"
	"time"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/domain"
	"go.uber.org/zap"
)

// WildcardMention is the request-level marker meaning "mention every
// current participant of the destination group".
const WildcardMention = "*"

// TextMessage is a text send request.
type TextMessage struct {
	GroupID     string   `json:"groupId"`
	Message     string   `json:"message"`
	LinkPreview bool     `json:"linkPreview"`
	Mentions    []string `json:"mentions"`
}

// MediaMessage is an image/video/audio send request referencing a URL.
type MediaMessage struct {
	GroupID   string   `json:"groupId"`
	MediaURL  string   `json:"mediaUrl"`
	MediaType string   `json:"mediaType"`
	Caption   string   `json:"caption"`
	Mentions  []string `json:"mentions"`
}

// DocumentMessage is a document send request referencing a URL.
type DocumentMessage struct {
	GroupID     string   `json:"groupId"`
	DocumentURL string   `json:"documentUrl"`
	FileName    string   `json:"fileName"`
	Caption     string   `json:"caption"`
	Mentions    []string `json:"mentions"`
}

// AudioMessage is a voice-note send request referencing a URL.
type AudioMessage struct {
	GroupID  string   `json:"groupId"`
	AudioURL string   `json:"audioUrl"`
	PTT      bool     `json:"ptt"`
	Mentions []string `json:"mentions"`
}

// SendResult is returned to the caller after a successful dispatch.
type SendResult struct {
	MessageID string    `json:"messageId"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher gates sends on session readiness, expands wildcard mentions
// and appends one audit record per attempt, successful or not.
type Dispatcher struct {
	audit AuditStore
}

func NewDispatcher(audit AuditStore) *Dispatcher {
	return &Dispatcher{audit: audit}
}

// SendText dispatches a text message through the session's protocol client.
func (d *Dispatcher) SendText(ctx context.Context, sess *Session, msg TextMessage) (*SendResult, error) {
	rec := d.newRecord(sess, msg.GroupID, "text", msg.Message, msg.Mentions)
	cli, mentions, err := d.prepare(ctx, sess, msg.GroupID, msg.Mentions)
	if err != nil {
		return nil, d.fail(rec, err)
	}
	receipt, err := cli.SendText(ctx, msg.GroupID, msg.Message, msg.LinkPreview, mentions)
	if err != nil {
		return nil, d.fail(rec, &SendError{Err: err})
	}
	return d.sent(rec, receipt), nil
}

// SendMedia dispatches an image, video or audio message by URL.
func (d *Dispatcher) SendMedia(ctx context.Context, sess *Session, msg MediaMessage) (*SendResult, error) {
	rec := d.newRecord(sess, msg.GroupID, msg.MediaType, msg.MediaURL, msg.Mentions)
	cli, mentions, err := d.prepare(ctx, sess, msg.GroupID, msg.Mentions)
	if err != nil {
		return nil, d.fail(rec, err)
	}
	receipt, err := cli.SendMedia(ctx, msg.GroupID, msg.MediaURL, msg.MediaType, msg.Caption, mentions)
	if err != nil {
		return nil, d.fail(rec, &SendError{Err: err})
	}
	return d.sent(rec, receipt), nil
}

// SendDocument dispatches a document by URL. The MIME type is resolved from
// the file name extension.
func (d *Dispatcher) SendDocument(ctx context.Context, sess *Session, msg DocumentMessage) (*SendResult, error) {
	rec := d.newRecord(sess, msg.GroupID, "document", msg.DocumentURL, msg.Mentions)
	cli, mentions, err := d.prepare(ctx, sess, msg.GroupID, msg.Mentions)
	if err != nil {
		return nil, d.fail(rec, err)
	}
	receipt, err := cli.SendDocument(ctx, msg.GroupID, msg.DocumentURL, msg.FileName, MimeTypeByName(msg.FileName), msg.Caption, mentions)
	if err != nil {
		return nil, d.fail(rec, &SendError{Err: err})
	}
	return d.sent(rec, receipt), nil
}

// SendAudio dispatches a voice note by URL.
func (d *Dispatcher) SendAudio(ctx context.Context, sess *Session, msg AudioMessage) (*SendResult, error) {
	rec := d.newRecord(sess, msg.GroupID, "audio", msg.AudioURL, msg.Mentions)
	cli, mentions, err := d.prepare(ctx, sess, msg.GroupID, msg.Mentions)
	if err != nil {
		return nil, d.fail(rec, err)
	}
	receipt, err := cli.SendAudio(ctx, msg.GroupID, msg.AudioURL, msg.PTT, mentions)
	if err != nil {
		return nil, d.fail(rec, &SendError{Err: err})
	}
	return d.sent(rec, receipt), nil
}

// prepare checks readiness and expands the wildcard mention. The
// participant list is fetched fresh on every expansion, never cached.
func (d *Dispatcher) prepare(ctx context.Context, sess *Session, groupID string, mentions []string) (ProtocolClient, []string, error) {
	cli, err := sess.Protocol()
	if err != nil {
		return nil, nil, err
	}
	if len(mentions) == 1 && mentions[0] == WildcardMention {
		mentions, err = cli.GroupParticipants(ctx, groupID)
		if err != nil {
			return nil, nil, &SendError{Err: err}
		}
	}
	return cli, mentions, nil
}

func (d *Dispatcher) newRecord(sess *Session, groupID, kind, content string, mentions []string) *domain.WaMessageLog {
	return &domain.WaMessageLog{
		InstanceID:     sess.ID(),
		GroupID:        groupID,
		MessageType:    kind,
		MessageContent: content,
		HasMentions:    len(mentions) > 0,
	}
}

func (d *Dispatcher) sent(rec *domain.WaMessageLog, receipt *Receipt) *SendResult {
	rec.Status = domain.MessageStatusSent
	d.append(rec)
	return &SendResult{MessageID: receipt.MessageID, Timestamp: receipt.Timestamp}
}

// fail records the attempt before surfacing the error, so the audit trail
// stays complete even for rejected sends.
func (d *Dispatcher) fail(rec *domain.WaMessageLog, err error) error {
	rec.Status = domain.MessageStatusFailed
	rec.Error = err.Error()
	d.append(rec)
	return err
}

func (d *Dispatcher) append(rec *domain.WaMessageLog) {
	if d.audit == nil {
		return
	}
	if err := d.audit.Append(rec); err != nil {
		zap.L().Warn("whatsapp: failed to append audit record",
			zap.String("instance_id", rec.InstanceID), zap.Error(err))
	}
}
