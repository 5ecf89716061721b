package http_handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const writeWait = 10 * time.Second

// Notifications upgrades the connection to a websocket that receives every
// notification broadcast by the relay. Payments reported by the client are
// broadcast to every connected listener.
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.warn(err, "failed to upgrade notification socket")
		return
	}
	defer conn.Close()

	id, chNotifications := h.notifySvc.Subscribe()
	defer h.notifySvc.Unsubscribe(id)
	h.log("listener %s connected", id)

	chDone := make(chan struct{})
	go h.readMessages(conn, id, chDone)

	for {
		select {
		case text, ok := <-chNotifications:
			if !ok {
				h.closeSocket(conn)
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(domain.NewNotificationMessage(text)); err != nil {
				h.warn(err, "failed to notify listener %s", id)
				return
			}
		case <-chDone:
			h.log("listener %s disconnected", id)
			return
		case <-h.chClose:
			h.closeSocket(conn)
			return
		}
	}
}

func (h *Handler) readMessages(
	conn *websocket.Conn, id string, chDone chan struct{},
) {
	defer close(chDone)

	for {
		msg := domain.SocketMessage{}
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseNormalClosure, websocket.CloseGoingAway,
			) {
				h.warn(err, "connection with listener %s broken", id)
			}
			return
		}
		if msg.Event != domain.EventPaymentReceived {
			h.log("ignoring event %s from listener %s", msg.Event, id)
			continue
		}

		payment := domain.PaymentReceived{}
		if err := json.Unmarshal(msg.Data, &payment); err != nil {
			h.warn(err, "invalid payment event from listener %s", id)
			continue
		}
		count := h.notifySvc.Publish(payment)
		h.log("relayed payment of %s to %d listeners", payment.Address, count)
	}
}

func (h *Handler) closeSocket(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
