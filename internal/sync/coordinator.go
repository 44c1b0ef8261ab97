// Package sync is the engine's coordinator: the sole writer into the chat
// roster, the open-chat thread and the typing tracker. Push events arrive
// through the bus, UI intents arrive through method calls, and the
// coordinator serializes both onto the shared state.
package sync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ebarros/parley/internal/bus"
	"github.com/ebarros/parley/internal/model"
	"github.com/ebarros/parley/internal/rest"
	"github.com/ebarros/parley/internal/roster"
	"github.com/ebarros/parley/internal/thread"
	"github.com/ebarros/parley/internal/typing"
	"github.com/ebarros/parley/internal/wire"
	"go.uber.org/zap"
)

// ErrDisconnected is returned by Send while the push channel is down.
// Sends fail fast; nothing is queued for later delivery.
var ErrDisconnected = errors.New("push channel down, message not sent")

// ErrNoOpenChat is returned by intents that need an open chat.
var ErrNoOpenChat = errors.New("no chat is open")

// markReadDelay is how long a message must stay visible in the open chat
// before the read receipt goes out. Leaving the chat first cancels it.
const markReadDelay = 750 * time.Millisecond

// API is the slice of the REST client the coordinator depends on.
type API interface {
	ListChats(ctx context.Context) ([]rest.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]rest.Message, error)
	CreateMessage(ctx context.Context, chatID, text string) (*rest.Message, error)
	DeleteMessage(ctx context.Context, messageID string) error
	MarkRead(ctx context.Context, messageID string) error
	CreateChat(ctx context.Context, req *rest.CreateChatRequest) (*rest.Chat, error)
	UpdateChat(ctx context.Context, chatID string, req *rest.UpdateChatRequest) (*rest.Chat, error)
}

// Transport is the slice of the socket manager the coordinator depends on.
type Transport interface {
	Emit(cmd wire.Command) error
	IsConnected() bool
}

// typingSignaler adapts the transport to the tracker's signal interface.
type typingSignaler struct {
	t Transport
}

func (s typingSignaler) SignalTyping(chatID string, typing bool) error {
	cmd := wire.StartTyping(chatID)
	if !typing {
		cmd = wire.StopTyping(chatID)
	}
	return s.t.Emit(cmd)
}

// Coordinator routes push events and UI intents into the roster, the
// open-chat thread and the typing tracker.
type Coordinator struct {
	self      string
	api       API
	transport Transport
	bus       *bus.Bus
	logger    *zap.Logger

	roster *roster.Roster
	thread *thread.Thread
	typing *typing.Tracker

	readDelay time.Duration

	mu          sync.Mutex
	socketError bool
	refetching  bool
	readCancel  context.CancelFunc

	stop func()
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReadDelay overrides the deferred read-receipt delay.
func WithReadDelay(d time.Duration) Option {
	return func(c *Coordinator) { c.readDelay = d }
}

// WithTypingWindow overrides the typing inactivity window.
func WithTypingWindow(d time.Duration) Option {
	return func(c *Coordinator) {
		c.typing = typing.NewTracker(c.self, d, typingSignaler{t: c.transport}, c.logger)
	}
}

// New creates a coordinator for the local user self.
func New(self string, api API, transport Transport, b *bus.Bus, logger *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		self:      self,
		api:       api,
		transport: transport,
		bus:       b,
		logger:    logger,
		roster:    roster.New(),
		thread:    thread.New(),
		readDelay: markReadDelay,
	}
	c.typing = typing.NewTracker(self, typing.DefaultWindow, typingSignaler{t: transport}, logger)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start subscribes to the push and socket bus namespaces and runs the
// event loop until Stop.
func (c *Coordinator) Start() {
	pushCh, pushCancel := c.bus.Subscribe("push.", 64)
	sockCh, sockCancel := c.bus.Subscribe("socket.", 16)

	ctx, cancel := context.WithCancel(context.Background())
	c.stop = func() {
		cancel()
		pushCancel()
		sockCancel()
	}

	go c.run(ctx, pushCh, sockCh)
}

// Stop ends the event loop and cancels any pending read receipts.
func (c *Coordinator) Stop() {
	if c.stop != nil {
		c.stop()
	}
	c.cancelPendingReads()
}

func (c *Coordinator) run(ctx context.Context, pushCh, sockCh <-chan bus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-pushCh:
			c.dispatch(evt)
		case evt := <-sockCh:
			c.dispatch(evt)
		}
	}
}

func (c *Coordinator) dispatch(evt bus.Event) {
	switch evt.Kind {
	case "socket.connected":
		c.onConnected()
	case "socket.disconnected":
		c.onDisconnected()
	case "push.message":
		if p, ok := evt.Payload.(*wire.NewMessage); ok {
			c.onPushedMessage(p)
		}
	case "push.read":
		if p, ok := evt.Payload.(*wire.MessageRead); ok {
			c.onReadReceipt(p)
		}
	case "push.typing":
		if p, ok := evt.Payload.(*wire.TypingEvent); ok {
			c.onTyping(p, true)
		}
	case "push.stop_typing":
		if p, ok := evt.Payload.(*wire.TypingEvent); ok {
			c.onTyping(p, false)
		}
	case "push.presence":
		if p, ok := evt.Payload.(*wire.UserStatus); ok {
			c.onPresence(p)
		}
	}
}

// onConnected rejoins every known chat room. The server deduplicates
// joins, so a room already joined is harmless.
func (c *Coordinator) onConnected() {
	c.mu.Lock()
	c.socketError = false
	c.mu.Unlock()

	for _, id := range c.roster.ChatIDs() {
		if err := c.transport.Emit(wire.JoinChat(id)); err != nil {
			c.logger.Warn("rejoin failed", zap.String("chat_id", id), zap.Error(err))
		}
	}
	c.logger.Info("rejoined chat rooms", zap.Int("count", c.roster.Len()))
}

func (c *Coordinator) onDisconnected() {
	c.mu.Lock()
	c.socketError = true
	c.mu.Unlock()
}

// onPushedMessage reconciles one pushed message. The open chat appends
// with dedup; any other known chat bumps its unread counter unless the
// local user authored the message; an unknown chat forces a full roster
// refetch rather than fabricating an entry. All REST work leaves this
// goroutine: the dispatch loop must never suspend on network I/O or the
// bus buffer fills and pushes arriving during the stall are lost.
func (c *Coordinator) onPushedMessage(p *wire.NewMessage) {
	msg := p.Message()

	if c.thread.ChatID() == msg.ChatID {
		if !c.thread.Append(msg) {
			return
		}
		c.roster.UpsertActivity(msg.ChatID, msg)
		c.publishUpserted(*msg)
		c.publishRoster()
		if msg.SenderID != c.self {
			go c.markMessagesRead([]string{msg.ID})
		}
		return
	}

	// Duplicate delivery of a background-chat push: the thread's dedup
	// cannot see it, so compare against the preview already recorded.
	if cur, ok := c.roster.Get(msg.ChatID); ok {
		if cur.LastMessage != nil && cur.LastMessage.ID == msg.ID {
			return
		}
	}

	if !c.roster.UpsertActivity(msg.ChatID, msg) {
		c.refetchRoster(msg.ChatID)
		return
	}
	if msg.SenderID != c.self {
		c.roster.BumpUnread(msg.ChatID)
	}
	c.publishRoster()
}

// refetchRoster runs RefreshChats off the dispatch goroutine. Concurrent
// triggers coalesce into the in-flight fetch.
func (c *Coordinator) refetchRoster(chatID string) {
	c.mu.Lock()
	if c.refetching {
		c.mu.Unlock()
		return
	}
	c.refetching = true
	c.mu.Unlock()

	c.logger.Info("message for unknown chat, refetching roster",
		zap.String("chat_id", chatID))
	go func() {
		defer func() {
			c.mu.Lock()
			c.refetching = false
			c.mu.Unlock()
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.RefreshChats(ctx); err != nil {
			c.logger.Error("roster refetch failed", zap.Error(err))
		}
	}()
}

func (c *Coordinator) onReadReceipt(p *wire.MessageRead) {
	if !c.thread.MergeReadReceipt(p.MessageID, string(p.UserID)) {
		return
	}
	for _, m := range c.thread.Messages() {
		if m.ID == p.MessageID {
			c.publishUpserted(m)
			return
		}
	}
}

func (c *Coordinator) onTyping(p *wire.TypingEvent, isTyping bool) {
	c.typing.SetRemoteTyping(p.ChatID, string(p.UserID), isTyping)
	c.bus.Publish(bus.Event{Kind: "chat.typing_changed", Payload: p.ChatID})
}

func (c *Coordinator) onPresence(p *wire.UserStatus) {
	c.roster.ApplyPresence(string(p.UserID), p.Status)
	c.publishRoster()
}

// OpenChat loads a chat's history, makes it the open chat, clears its
// unread counter, joins its room and schedules read receipts for unread
// inbound messages. Any previously open chat is left first.
func (c *Coordinator) OpenChat(ctx context.Context, chatID string) error {
	msgs, err := c.api.ListMessages(ctx, chatID)
	if err != nil {
		return err
	}

	c.leaveCurrent()

	history := make([]*model.Message, 0, len(msgs))
	for i := range msgs {
		history = append(history, msgs[i].Model())
	}
	c.thread.Load(chatID, history)
	c.roster.ClearUnread(chatID)

	if err := c.transport.Emit(wire.JoinChat(chatID)); err != nil {
		c.logger.Warn("join failed", zap.String("chat_id", chatID), zap.Error(err))
	}

	c.scheduleReadReceipts(chatID)
	c.publishRoster()
	return nil
}

// LeaveChat closes the open chat: pending read receipts are cancelled so
// no retroactive receipt goes out, composing state is cleared and the
// thread is dropped.
func (c *Coordinator) LeaveChat() {
	c.leaveCurrent()
	c.thread.Clear()
}

func (c *Coordinator) leaveCurrent() {
	c.cancelPendingReads()
	if open := c.thread.ChatID(); open != "" {
		c.typing.Leave(open)
	}
}

// scheduleReadReceipts arms a cancellable timer that reports unread
// inbound messages as read once the chat has stayed open for the delay.
func (c *Coordinator) scheduleReadReceipts(chatID string) {
	var targets []string
	for _, m := range c.thread.Messages() {
		if m.SenderID != c.self && !m.ReadByUser(c.self) {
			targets = append(targets, m.ID)
		}
	}
	if len(targets) == 0 {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.readCancel = cancel
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.readDelay):
		}
		if c.thread.ChatID() != chatID {
			return
		}
		c.markMessagesRead(targets)
	}()
}

func (c *Coordinator) cancelPendingReads() {
	c.mu.Lock()
	if c.readCancel != nil {
		c.readCancel()
		c.readCancel = nil
	}
	c.mu.Unlock()
}

// markMessagesRead sends read receipts over both surfaces: the REST call
// records the receipt, the socket command fans it out to participants.
// The local merge keeps the thread consistent without waiting for the echo.
func (c *Coordinator) markMessagesRead(messageIDs []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, id := range messageIDs {
		if err := c.api.MarkRead(ctx, id); err != nil {
			c.logger.Warn("mark-as-read failed", zap.String("message_id", id), zap.Error(err))
			continue
		}
		if err := c.transport.Emit(wire.MarkAsRead(id)); err != nil {
			c.logger.Debug("read receipt not emitted", zap.Error(err))
		}
		c.thread.MergeReadReceipt(id, c.self)
	}
}

// Send submits a message to the open chat. While the push channel is down
// the call fails fast; nothing is queued. The REST response carries the
// canonical id, so the later push echo deduplicates to a no-op.
func (c *Coordinator) Send(ctx context.Context, text string) (*model.Message, error) {
	chatID := c.thread.ChatID()
	if chatID == "" {
		return nil, ErrNoOpenChat
	}
	if !c.transport.IsConnected() {
		return nil, ErrDisconnected
	}

	created, err := c.api.CreateMessage(ctx, chatID, text)
	if err != nil {
		return nil, err
	}
	msg := created.Model()
	if c.thread.Append(msg) {
		c.publishUpserted(*msg)
	}
	c.roster.UpsertActivity(chatID, msg)
	c.publishRoster()
	return msg, nil
}

// Delete removes a message. The server confirms first; the local copy is
// only dropped on success so a failed delete never desyncs the thread.
func (c *Coordinator) Delete(ctx context.Context, messageID string) error {
	if err := c.api.DeleteMessage(ctx, messageID); err != nil {
		return err
	}
	if c.thread.Remove(messageID) {
		c.bus.Publish(bus.Event{Kind: "message.removed", Payload: messageID})
	}
	return nil
}

// NotifyTyping records local composing activity for the open chat.
func (c *Coordinator) NotifyTyping() {
	if chatID := c.thread.ChatID(); chatID != "" {
		c.typing.NotifyTyping(chatID)
	}
}

// RefreshChats replaces the roster from the server's chat list.
func (c *Coordinator) RefreshChats(ctx context.Context) error {
	chats, err := c.api.ListChats(ctx)
	if err != nil {
		return err
	}
	summaries := make([]*model.ChatSummary, 0, len(chats))
	for i := range chats {
		summaries = append(summaries, chats[i].Summary())
	}
	c.roster.Replace(summaries)
	c.publishRoster()
	return nil
}

// CreateChat creates a chat server-side and inserts it into the roster
// without waiting for the next refresh.
func (c *Coordinator) CreateChat(ctx context.Context, req *rest.CreateChatRequest) (*model.ChatSummary, error) {
	chat, err := c.api.CreateChat(ctx, req)
	if err != nil {
		return nil, err
	}
	summary := chat.Summary()
	c.roster.Upsert(summary)
	if err := c.transport.Emit(wire.JoinChat(summary.ID)); err != nil {
		c.logger.Warn("join failed", zap.String("chat_id", summary.ID), zap.Error(err))
	}
	c.publishRoster()
	return summary, nil
}

// UpdateChat updates chat settings server-side and refreshes the local copy.
func (c *Coordinator) UpdateChat(ctx context.Context, chatID string, req *rest.UpdateChatRequest) (*model.ChatSummary, error) {
	chat, err := c.api.UpdateChat(ctx, chatID, req)
	if err != nil {
		return nil, err
	}
	summary := chat.Summary()
	c.roster.Upsert(summary)
	c.publishRoster()
	return summary, nil
}

// Chats returns the roster in display order.
func (c *Coordinator) Chats() []model.ChatSummary {
	return c.roster.Chats()
}

// Messages returns the open chat's messages in ascending order.
func (c *Coordinator) Messages() []model.Message {
	return c.thread.Messages()
}

// OpenChatID returns the id of the open chat, or "".
func (c *Coordinator) OpenChatID() string {
	return c.thread.ChatID()
}

// Unread returns the unread counter for a chat.
func (c *Coordinator) Unread(chatID string) int {
	return c.roster.UnreadCount(chatID)
}

// TypingUsers returns who is typing in a chat, excluding the local user.
func (c *Coordinator) TypingUsers(chatID string) []string {
	return c.typing.TypingUsers(chatID)
}

// SocketError reports whether the engine is in the degraded offline state.
func (c *Coordinator) SocketError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.socketError
}

func (c *Coordinator) publishRoster() {
	c.bus.Publish(bus.Event{Kind: "chat.roster_updated"})
}

func (c *Coordinator) publishUpserted(m model.Message) {
	c.bus.Publish(bus.Event{Kind: "message.upserted", Payload: m})
}
