package domain

import "time"

const (
	MessageStatusSent   = "sent"
	MessageStatusFailed = "failed"
)

// WaMessageLog is one audit record per send attempt. Rows are append-only
// and never updated after insertion.
type WaMessageLog struct {
	ID             int64     `json:"id,string" gorm:"primaryKey;autoIncrement"`
	InstanceID     string    `json:"instance_id" gorm:"index;size:64"`
	GroupID        string    `json:"group_id"`
	MessageType    string    `json:"message_type"`
	MessageContent string    `json:"message_content"`
	HasMentions    bool      `json:"has_mentions"`
	Status         string    `json:"status"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName Specify table name
func (WaMessageLog) TableName() string {
	return "baileys_messages_log"
}
