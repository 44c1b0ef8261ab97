// Package model holds the in-memory data model the sync engine keeps
// consistent with the server: chat summaries, messages and read state.
package model

import "slices"

// Participant is a chat member with globally scoped presence.
type Participant struct {
	ID     string
	Name   string
	Status string // "online" or "offline"
}

// Message is a single chat message. ID and CreatedAt are assigned by the
// server; ReadBy only ever grows.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Text      string
	CreatedAt int64 // unix millis, server clock
	ReadBy    []string
}

// ReadByUser reports whether userID appears in the message's read set.
func (m *Message) ReadByUser(userID string) bool {
	return slices.Contains(m.ReadBy, userID)
}

// MarkRead adds userID to the read set. Returns false when the id was
// already present, so re-applied receipts are visible as no-ops.
func (m *Message) MarkRead(userID string) bool {
	if m.ReadByUser(userID) {
		return false
	}
	m.ReadBy = append(m.ReadBy, userID)
	return true
}

// DeliveryStatus derives the read indicator for a message authored by the
// local user: "read" once any other participant appears in ReadBy, "sent"
// otherwise. Never stored, always derived.
func (m *Message) DeliveryStatus(selfID string) string {
	for _, id := range m.ReadBy {
		if id != selfID {
			return "read"
		}
	}
	return "sent"
}

// Clone returns a deep copy so callers can hand out messages without
// exposing the engine's mutable state.
func (m *Message) Clone() Message {
	c := *m
	c.ReadBy = slices.Clone(m.ReadBy)
	return c
}

// ChatSummary is one entry of the chat list.
type ChatSummary struct {
	ID           string
	Name         string
	IsGroup      bool
	Participants []Participant
	LastMessage  *Message
	UnreadCount  int
	UpdatedAt    int64 // unix millis, fallback ordering key
}

// LastActivity returns the timestamp the chat list orders by: the last
// message's CreatedAt when one exists, UpdatedAt otherwise.
func (c *ChatSummary) LastActivity() int64 {
	if c.LastMessage != nil {
		return c.LastMessage.CreatedAt
	}
	return c.UpdatedAt
}

// Clone returns a deep copy of the summary.
func (c *ChatSummary) Clone() ChatSummary {
	out := *c
	out.Participants = slices.Clone(c.Participants)
	if c.LastMessage != nil {
		m := c.LastMessage.Clone()
		out.LastMessage = &m
	}
	return out
}
