package rest

import (
	"github.com/ebarros/parley/internal/model"
	"github.com/ebarros/parley/internal/wire"
)

// Participant is a chat member as returned by the REST API.
type Participant struct {
	ID     wire.UserID `json:"_id"`
	Name   string      `json:"username"`
	Status string      `json:"status"`
}

// Message is a message as returned by the REST API.
type Message struct {
	ID        string        `json:"messageId"`
	ChatID    string        `json:"chatId"`
	SenderID  wire.UserID   `json:"senderId"`
	Text      string        `json:"text"`
	CreatedAt int64         `json:"createdAt"`
	ReadBy    []wire.UserID `json:"readBy"`
}

// Model converts the DTO to the engine's model type.
func (m *Message) Model() *model.Message {
	return &model.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  string(m.SenderID),
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		ReadBy:    wire.UserIDStrings(m.ReadBy),
	}
}

// Chat is a chat summary as returned by the REST API.
type Chat struct {
	ID           string        `json:"chatId"`
	Name         string        `json:"name"`
	IsGroup      bool          `json:"isGroup"`
	Participants []Participant `json:"participants"`
	LastMessage  *Message      `json:"lastMessage"`
	UpdatedAt    int64         `json:"updatedAt"`
}

// Summary converts the DTO to the engine's model type.
func (c *Chat) Summary() *model.ChatSummary {
	out := &model.ChatSummary{
		ID:        c.ID,
		Name:      c.Name,
		IsGroup:   c.IsGroup,
		UpdatedAt: c.UpdatedAt,
	}
	for _, p := range c.Participants {
		out.Participants = append(out.Participants, model.Participant{
			ID:     string(p.ID),
			Name:   p.Name,
			Status: p.Status,
		})
	}
	if c.LastMessage != nil {
		out.LastMessage = c.LastMessage.Model()
	}
	return out
}

// User is a directory entry from the user search endpoint.
type User struct {
	ID     wire.UserID `json:"_id"`
	Name   string      `json:"username"`
	Status string      `json:"status"`
}

// CreateChatRequest is the body for creating a chat.
type CreateChatRequest struct {
	Participants []string `json:"participants"`
	IsGroup      bool     `json:"isGroup"`
	Name         string   `json:"name,omitempty"`
}

// UpdateChatRequest is the body for updating chat settings.
type UpdateChatRequest struct {
	Name string `json:"name,omitempty"`
}
