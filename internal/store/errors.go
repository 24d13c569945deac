package store

import "fmt"

// chatNotFoundError signals an unknown chat id for 404 mapping.
type chatNotFoundError struct{ id string }

func (e chatNotFoundError) Error() string { return "chat not found: " + e.id }

func errChatNotFound(id string) error { return chatNotFoundError{id: id} }

// IsChatNotFound reports whether err indicates a missing chat id.
func IsChatNotFound(err error) bool {
	_, ok := err.(chatNotFoundError)
	return ok
}

// messageNotFoundError signals an unknown message timestamp within a chat.
type messageNotFoundError struct {
	chatID    string
	timestamp int64
}

func (e messageNotFoundError) Error() string {
	return fmt.Sprintf("message not found: chat %s timestamp %d", e.chatID, e.timestamp)
}

func errMessageNotFound(chatID string, ts int64) error {
	return messageNotFoundError{chatID: chatID, timestamp: ts}
}

// IsMessageNotFound reports whether err indicates a missing message.
func IsMessageNotFound(err error) bool {
	_, ok := err.(messageNotFoundError)
	return ok
}
