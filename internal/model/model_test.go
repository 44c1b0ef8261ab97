package model

import "testing"

func TestDeliveryStatus(t *testing.T) {
	tests := []struct {
		name   string
		readBy []string
		want   string
	}{
		{"unread", nil, "sent"},
		{"read only by self", []string{"me"}, "sent"},
		{"read by other", []string{"u2"}, "read"},
		{"read by self and other", []string{"me", "u2"}, "read"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := Message{ID: "m1", SenderID: "me", ReadBy: tt.readBy}
			if got := m.DeliveryStatus("me"); got != tt.want {
				t.Errorf("DeliveryStatus() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	m := Message{ID: "m1"}
	if !m.MarkRead("u1") {
		t.Error("first MarkRead should report a change")
	}
	if m.MarkRead("u1") {
		t.Error("second MarkRead should be a no-op")
	}
	if len(m.ReadBy) != 1 {
		t.Errorf("ReadBy has %d entries, want 1", len(m.ReadBy))
	}
}

func TestLastActivity(t *testing.T) {
	c := ChatSummary{ID: "c1", UpdatedAt: 100}
	if got := c.LastActivity(); got != 100 {
		t.Errorf("LastActivity() = %d, want UpdatedAt fallback 100", got)
	}
	c.LastMessage = &Message{ID: "m1", CreatedAt: 250}
	if got := c.LastActivity(); got != 250 {
		t.Errorf("LastActivity() = %d, want 250", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	m := Message{ID: "m1", ReadBy: []string{"u1"}}
	c := ChatSummary{ID: "c1", LastMessage: &m, Participants: []Participant{{ID: "u1"}}}

	cp := c.Clone()
	cp.LastMessage.ReadBy[0] = "changed"
	cp.Participants[0].Status = "online"

	if c.LastMessage.ReadBy[0] != "u1" {
		t.Error("clone shares ReadBy backing array")
	}
	if c.Participants[0].Status != "" {
		t.Error("clone shares participants backing array")
	}
}
