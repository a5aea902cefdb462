package chat

import "time"

type Conversation struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)" json:"id"`
	Title     *string   `gorm:"type:varchar(255)" json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages []Message `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID string         `gorm:"type:varchar(26);index;not null" json:"conversation_id"`
	Role           string         `gorm:"type:varchar(16);not null" json:"role"`
	Content        string         `gorm:"type:text;not null" json:"content"`
	ModelUsed      *string        `gorm:"type:varchar(128)" json:"model_used,omitempty"`
	Metadata       map[string]any `gorm:"type:text;serializer:json" json:"metadata,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (Message) TableName() string { return "messages" }

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)
