// Package thread maintains the ordered message list for the chat that is
// currently open. It merges REST history pages, locally originated sends and
// pushed messages into one deduplicated sequence; the dedup key is the
// server-assigned message id.
package thread

import (
	"sort"
	"sync"

	"github.com/ebarros/parley/internal/model"
)

// Thread is the reconciled message list of the open chat.
type Thread struct {
	mu     sync.RWMutex
	chatID string
	msgs   []*model.Message
	byID   map[string]*model.Message
}

// New creates an empty thread.
func New() *Thread {
	return &Thread{byID: make(map[string]*model.Message)}
}

// Load replaces the list wholesale with a server history page for chatID,
// ordered by CreatedAt ascending. Duplicate ids within the page collapse to
// the first occurrence.
func (t *Thread) Load(chatID string, msgs []*model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.chatID = chatID
	t.msgs = t.msgs[:0]
	t.byID = make(map[string]*model.Message, len(msgs))

	for _, m := range msgs {
		if m.ID == "" {
			continue
		}
		if _, seen := t.byID[m.ID]; seen {
			continue
		}
		c := m.Clone()
		t.byID[m.ID] = &c
		t.msgs = append(t.msgs, &c)
	}
	sort.SliceStable(t.msgs, func(i, j int) bool {
		return t.msgs[i].CreatedAt < t.msgs[j].CreatedAt
	})
}

// ChatID returns the chat the thread currently represents, or "".
func (t *Thread) ChatID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.chatID
}

// Append merges one message into the list, keeping ascending CreatedAt
// order. Returns false and leaves the list untouched for a duplicate id or
// a message belonging to another chat.
func (t *Thread) Append(msg *model.Message) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ID == "" || msg.ChatID != t.chatID || t.chatID == "" {
		return false
	}
	if _, seen := t.byID[msg.ID]; seen {
		return false
	}

	c := msg.Clone()
	t.byID[c.ID] = &c

	// Most arrivals are newest-last; walk back only as far as needed.
	pos := len(t.msgs)
	for pos > 0 && t.msgs[pos-1].CreatedAt > c.CreatedAt {
		pos--
	}
	t.msgs = append(t.msgs, nil)
	copy(t.msgs[pos+1:], t.msgs[pos:])
	t.msgs[pos] = &c
	return true
}

// Remove deletes a message by id. Returns false when the id is unknown.
func (t *Thread) Remove(messageID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.byID[messageID]; !ok {
		return false
	}
	delete(t.byID, messageID)
	for i, m := range t.msgs {
		if m.ID == messageID {
			t.msgs = append(t.msgs[:i], t.msgs[i+1:]...)
			break
		}
	}
	return true
}

// MergeReadReceipt adds userID to the message's readBy set. Idempotent;
// an unknown message id is a no-op since the receipt may precede the
// history page of a chat that was never opened. Returns whether the set
// actually grew.
func (t *Thread) MergeReadReceipt(messageID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	m, ok := t.byID[messageID]
	if !ok {
		return false
	}
	return m.MarkRead(userID)
}

// Messages returns a snapshot copy of the list in display order.
func (t *Thread) Messages() []model.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.Message, len(t.msgs))
	for i, m := range t.msgs {
		out[i] = m.Clone()
	}
	return out
}

// Len returns the number of messages held.
func (t *Thread) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.msgs)
}

// Clear empties the thread, e.g. when navigating away from the chat.
func (t *Thread) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chatID = ""
	t.msgs = nil
	t.byID = make(map[string]*model.Message)
}
