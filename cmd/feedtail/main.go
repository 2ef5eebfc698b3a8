// Package main provides a debugging tool that logs into the API, opens the
// realtime feed websocket and prints every frame the server pushes.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

func main() {
	host := flag.String("host", "localhost:8390", "API server host")
	email := flag.String("email", "", "User email")
	password := flag.String("password", "", "User password")
	watch := flag.String("watch", "", "Thread id to watch comments for")
	flag.Parse()

	if *email == "" || *password == "" {
		log.Fatal("both -email and -password are required")
	}

	token, err := login(*host, *email, *password)
	if err != nil {
		log.Fatalf("Login failed: %v", err)
	}
	log.Printf("Logged in, connecting to feed...")

	wsURL := url.URL{
		Scheme:   "ws",
		Host:     *host,
		Path:     "/ws/feed",
		RawQuery: "token=" + url.QueryEscape(token),
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalf("WebSocket dial failed: %v", err)
	}
	defer conn.Close()

	if *watch != "" {
		frame := map[string]interface{}{
			"type":    "watch_comments",
			"payload": map[string]string{"thread_id": *watch},
		}
		if err := conn.WriteJSON(frame); err != nil {
			log.Fatalf("Failed to send watch frame: %v", err)
		}
		log.Printf("Watching comments for thread %s", *watch)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				log.Printf("Read error: %v", err)
				return
			}
			var pretty bytes.Buffer
			if err := json.Indent(&pretty, message, "", "  "); err != nil {
				log.Printf("<- %s", message)
				continue
			}
			log.Printf("<- %s", pretty.String())
		}
	}()

	select {
	case <-interrupt:
		log.Println("Interrupted, closing connection")
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	case <-done:
	}
}

func login(host, email, password string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		return "", err
	}

	resp, err := http.Post(
		fmt.Sprintf("http://%s/api/auth/login", host),
		"application/json",
		bytes.NewReader(body),
	)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned status %d", resp.StatusCode)
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", fmt.Errorf("login response missing token")
	}
	return out.Token, nil
}
