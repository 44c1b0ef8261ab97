package wire

import "github.com/google/uuid"

// Outbound command names emitted by the client.
const (
	CmdJoinChat    = "joinChat"
	CmdSendMessage = "sendMessage"
	CmdTyping      = "typing"
	CmdStopTyping  = "stopTyping"
	CmdMarkAsRead  = "markAsRead"
)

// Command is a client-to-server frame. RequestID correlates server
// acknowledgments and log lines with the emitting call site.
type Command struct {
	Event     string `json:"event"`
	Payload   any    `json:"payload,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func newCommand(event string, payload any) Command {
	return Command{Event: event, Payload: payload, RequestID: uuid.NewString()}
}

// JoinChat subscribes the connection to a chat room. Joining a room the
// connection is already in is a server-side no-op.
func JoinChat(chatID string) Command {
	return newCommand(CmdJoinChat, map[string]string{"chatId": chatID})
}

// SendMessage submits a message over the push channel.
func SendMessage(chatID, text string) Command {
	return newCommand(CmdSendMessage, map[string]string{"chatId": chatID, "text": text})
}

// StartTyping signals that the local user began composing.
func StartTyping(chatID string) Command {
	return newCommand(CmdTyping, map[string]string{"chatId": chatID})
}

// StopTyping signals that the local user stopped composing.
func StopTyping(chatID string) Command {
	return newCommand(CmdStopTyping, map[string]string{"chatId": chatID})
}

// MarkAsRead reports that the local user has seen a message.
func MarkAsRead(messageID string) Command {
	return newCommand(CmdMarkAsRead, map[string]string{"messageId": messageID})
}
