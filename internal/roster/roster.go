// Package roster maintains the ordered collection of chat summaries: the
// last-message preview, unread counters and participant presence. Activity
// moves a chat to the front; the remainder stays sorted by last activity
// with chat id as the final tie-breaker, so the order is total and
// deterministic.
package roster

import (
	"slices"
	"strings"
	"sync"

	"github.com/ebarros/parley/internal/model"
)

// Roster is the chat list ledger.
type Roster struct {
	mu    sync.RWMutex
	chats []*model.ChatSummary
	byID  map[string]*model.ChatSummary
}

// New creates an empty roster.
func New() *Roster {
	return &Roster{byID: make(map[string]*model.ChatSummary)}
}

// Replace swaps the whole list for a fresh server page and re-sorts it.
// Unread counts of chats present in both lists are preserved: the server
// page does not know what the local user has already seen.
func (r *Roster) Replace(chats []*model.ChatSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := r.byID
	r.chats = r.chats[:0]
	r.byID = make(map[string]*model.ChatSummary, len(chats))

	for _, c := range chats {
		if c.ID == "" {
			continue
		}
		if _, seen := r.byID[c.ID]; seen {
			continue
		}
		cp := c.Clone()
		if prev, ok := old[c.ID]; ok && cp.UnreadCount == 0 {
			cp.UnreadCount = prev.UnreadCount
		}
		r.byID[cp.ID] = &cp
		r.chats = append(r.chats, &cp)
	}
	r.sortLocked("")
}

// Upsert inserts or overwrites a single summary, e.g. a freshly created
// chat, and re-sorts.
func (r *Roster) Upsert(chat *model.ChatSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := chat.Clone()
	if existing, ok := r.byID[cp.ID]; ok {
		*existing = cp
	} else {
		r.byID[cp.ID] = &cp
		r.chats = append(r.chats, &cp)
	}
	r.sortLocked(cp.ID)
}

// UpsertActivity sets the last-message preview of chatID and moves the chat
// to the front. Returns false when the chat is unknown: its participants and
// group flag cannot be synthesized locally, so the caller must refetch the
// full list instead.
func (r *Roster) UpsertActivity(chatID string, last *model.Message) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byID[chatID]
	if !ok {
		return false
	}
	if last != nil {
		m := last.Clone()
		c.LastMessage = &m
		if m.CreatedAt > c.UpdatedAt {
			c.UpdatedAt = m.CreatedAt
		}
	}
	r.sortLocked(chatID)
	return true
}

// BumpUnread increments the unread counter by exactly one.
func (r *Roster) BumpUnread(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[chatID]; ok {
		c.UnreadCount++
	}
}

// ClearUnread resets the counter to zero; called when the chat's history
// is loaded into view.
func (r *Roster) ClearUnread(chatID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.byID[chatID]; ok {
		c.UnreadCount = 0
	}
}

// UnreadCount returns the current counter for a chat.
func (r *Roster) UnreadCount(chatID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.byID[chatID]; ok {
		return c.UnreadCount
	}
	return 0
}

// ApplyPresence updates the status of every participant entry matching
// userID across all summaries; presence is global, not per chat.
func (r *Roster) ApplyPresence(userID, presence string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.chats {
		for i := range c.Participants {
			if c.Participants[i].ID == userID {
				c.Participants[i].Status = presence
			}
		}
	}
}

// Get returns a snapshot of one summary.
func (r *Roster) Get(chatID string) (model.ChatSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[chatID]
	if !ok {
		return model.ChatSummary{}, false
	}
	return c.Clone(), true
}

// Chats returns a snapshot of the list in display order.
func (r *Roster) Chats() []model.ChatSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.ChatSummary, len(r.chats))
	for i, c := range r.chats {
		out[i] = c.Clone()
	}
	return out
}

// ChatIDs returns the ids of all known chats in display order; the
// coordinator walks these to re-join rooms after a reconnect.
func (r *Roster) ChatIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.chats))
	for i, c := range r.chats {
		out[i] = c.ID
	}
	return out
}

// Len returns the number of known chats.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.chats)
}

// sortLocked orders the list: the chat named by front first, then last
// activity descending, then chat id ascending.
func (r *Roster) sortLocked(front string) {
	slices.SortStableFunc(r.chats, func(a, b *model.ChatSummary) int {
		if front != "" {
			if a.ID == front {
				return -1
			}
			if b.ID == front {
				return 1
			}
		}
		if d := b.LastActivity() - a.LastActivity(); d != 0 {
			if d > 0 {
				return 1
			}
			return -1
		}
		return strings.Compare(a.ID, b.ID)
	})
}
