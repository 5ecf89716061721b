package domain

import "encoding/json"

// Events exchanged over the notification socket.
const (
	EventNotifications   = "notifications"
	EventPaymentReceived = "payment_received"
)

// SocketMessage is the envelope of every message of the notification
// socket. Data is a text for notifications and a PaymentReceived for
// payment_received events.
type SocketMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func NewNotificationMessage(text string) SocketMessage {
	data, _ := json.Marshal(text)
	return SocketMessage{EventNotifications, data}
}

func NewPaymentReceivedMessage(p PaymentReceived) SocketMessage {
	data, _ := json.Marshal(p)
	return SocketMessage{EventPaymentReceived, data}
}
