package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/gorilla/websocket"

	"matchroom/domain"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"MATCHROOM_WS_URL,default=ws://localhost:8080/ws"`
	Token     string `env:"MATCHROOM_TOKEN,required=true"`
	PartnerID string `env:"MATCHROOM_PARTNER_ID,required=true"`
	Topic     string `env:"MATCHROOM_TOPIC,default=general"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the connection lifecycle: dial with the access token,
// print everything the server pushes, and send each stdin line as a
// chat frame addressed to the configured partner.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish the WebSocket connection, authenticating via the
	// token query parameter.
	url := fmt.Sprintf("%s?token=%s", config.ServerURL, config.Token)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, err)
	}
	// Defer ensures the connection is closed even if the read loop fails later.
	defer func() {
		fmt.Println("Closing connection...")
		_ = conn.Close()
	}()

	fmt.Printf(">>> Connected to %s! Chatting with %s (Ctrl+C to quit)...\n",
		config.ServerURL, config.PartnerID)

	// 4. Reception loop, decoupled from stdin.
	errChan := make(chan error, 1)
	go func() {
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				errChan <- err
				return
			}
			if string(raw) == "__ping__" {
				_ = conn.WriteMessage(websocket.TextMessage, []byte("__pong__"))
				continue
			}
			var frame domain.Outbound
			if err := json.Unmarshal(raw, &frame); err != nil {
				fmt.Printf("[%s] <unreadable frame> %s\n", time.Now().Format(time.TimeOnly), raw)
				continue
			}
			fmt.Printf("[%s] %s: %v\n", time.Now().Format(time.TimeOnly), frame.Type, frame.Payload)
		}
	}()

	// 5. Send loop: one chat frame per stdin line.
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("Stopping client...")
			return exitOK, nil
		case err := <-errChan:
			// Normal exit if the user triggered a shutdown.
			if ctx.Err() != nil {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("read error: %w", err)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if line == "" {
				continue
			}
			frame := map[string]any{
				"type": domain.TypeChat,
				"payload": map[string]any{
					"text":  line,
					"to":    config.PartnerID,
					"topic": config.Topic,
				},
			}
			if err := conn.WriteJSON(frame); err != nil {
				return exitRuntime, fmt.Errorf("write error: %w", err)
			}
		}
	}
}
