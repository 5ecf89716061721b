package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "listen to payment notifications",
	Long: "this command connects to the notification socket of the relay " +
		"daemon and prints every notification received",
	RunE: watch,
}

func watch(_ *cobra.Command, _ []string) error {
	state, err := getState()
	if err != nil {
		return err
	}
	addr, err := socketURL(state["cosigner_url"])
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %s", addr, err)
	}
	defer conn.Close()
	fmt.Printf("listening for notifications on %s\n", addr)

	chErr := make(chan error, 1)
	go func() {
		for {
			msg := domain.SocketMessage{}
			if err := conn.ReadJSON(&msg); err != nil {
				chErr <- err
				return
			}
			if msg.Event != domain.EventNotifications {
				continue
			}
			var text string
			if err := json.Unmarshal(msg.Data, &text); err != nil {
				continue
			}
			fmt.Println(text)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	select {
	case <-sigChan:
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteMessage(websocket.CloseMessage, msg)
		return nil
	case err := <-chErr:
		if websocket.IsCloseError(err, websocket.CloseGoingAway) {
			fmt.Println("relay daemon shut down")
			return nil
		}
		return err
	}
}

// socketURL turns the http url of the daemon into the one of its
// notification socket.
func socketURL(daemonURL string) (string, error) {
	u, err := url.Parse(daemonURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid cosigner url %s", daemonURL)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/notifications"
	return u.String(), nil
}
