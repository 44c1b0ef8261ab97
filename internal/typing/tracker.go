// Package typing tracks who is composing a message in each chat. Remote
// entries come from push events and expire after an inactivity window;
// local composing is debounced so the server sees at most one
// typing-started per window.
package typing

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultWindow is the inactivity window after which a typing indicator
// expires and the local typing-stopped signal fires.
const DefaultWindow = 3 * time.Second

// Signaler sends the local user's typing transitions to the server.
type Signaler interface {
	SignalTyping(chatID string, typing bool) error
}

// Tracker maintains per-chat typing sets.
type Tracker struct {
	self     string
	window   time.Duration
	signaler Signaler
	logger   *zap.Logger

	mu           sync.Mutex
	remote       map[string]map[string]*time.Timer // chatID -> userID -> expiry
	localPending map[string]*time.Timer            // chats with an unexpired local typing-started
}

// NewTracker creates a tracker. self is the local user id, filtered from
// every read so self-typing never renders as a remote indicator.
func NewTracker(self string, window time.Duration, signaler Signaler, logger *zap.Logger) *Tracker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Tracker{
		self:         self,
		window:       window,
		signaler:     signaler,
		logger:       logger,
		remote:       make(map[string]map[string]*time.Timer),
		localPending: make(map[string]*time.Timer),
	}
}

// NotifyTyping records local composing activity. The typing-started signal
// goes out at most once per window; each call re-arms the timer that emits
// typing-stopped after the window passes without renewal.
func (t *Tracker) NotifyTyping(chatID string) {
	if chatID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, active := t.localPending[chatID]; active {
		timer.Reset(t.window)
		return
	}

	if err := t.signaler.SignalTyping(chatID, true); err != nil {
		t.logger.Warn("typing signal failed", zap.String("chat_id", chatID), zap.Error(err))
		return
	}
	t.localPending[chatID] = time.AfterFunc(t.window, func() {
		t.stopLocal(chatID)
	})
}

// Leave clears any pending local debounce for chatID, emits typing-stopped
// if typing-started was sent, and drops the chat's remote set. Called when
// navigating away so no stale indicator survives.
func (t *Tracker) Leave(chatID string) {
	t.mu.Lock()
	if timers, ok := t.remote[chatID]; ok {
		for _, timer := range timers {
			timer.Stop()
		}
		delete(t.remote, chatID)
	}
	_, wasTyping := t.localPending[chatID]
	t.mu.Unlock()

	if wasTyping {
		t.stopLocal(chatID)
	}
}

func (t *Tracker) stopLocal(chatID string) {
	t.mu.Lock()
	timer, active := t.localPending[chatID]
	if active {
		timer.Stop()
		delete(t.localPending, chatID)
	}
	t.mu.Unlock()

	if active {
		if err := t.signaler.SignalTyping(chatID, false); err != nil {
			t.logger.Warn("stop-typing signal failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}
}

// SetRemoteTyping adds or removes userID from the chat's typing set.
// Adding a present id renews its expiry; removing an absent id is a no-op.
func (t *Tracker) SetRemoteTyping(chatID, userID string, typing bool) {
	if chatID == "" || userID == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	timers := t.remote[chatID]
	if typing {
		if timers == nil {
			timers = make(map[string]*time.Timer)
			t.remote[chatID] = timers
		}
		if timer, ok := timers[userID]; ok {
			timer.Reset(t.window)
			return
		}
		timers[userID] = time.AfterFunc(t.window, func() {
			t.expireRemote(chatID, userID)
		})
		return
	}

	if timer, ok := timers[userID]; ok {
		timer.Stop()
		delete(timers, userID)
		if len(timers) == 0 {
			delete(t.remote, chatID)
		}
	}
}

func (t *Tracker) expireRemote(chatID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if timers, ok := t.remote[chatID]; ok {
		delete(timers, userID)
		if len(timers) == 0 {
			delete(t.remote, chatID)
		}
	}
}

// TypingUsers returns the ids currently typing in a chat, sorted. The
// local user's own id is filtered at read time.
func (t *Tracker) TypingUsers(chatID string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	timers, ok := t.remote[chatID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(timers))
	for id := range timers {
		if id == t.self {
			continue
		}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
