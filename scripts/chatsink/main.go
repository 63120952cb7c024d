// Chat sink for local warden runs.
// Accepts the system-chat feed websocket and prints every frame the warden sends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/livekit/protocol/auth"

	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	path := flag.String("path", "/system-chat", "feed path")
	apiKey := flag.String("key", "", "API key to verify bearer tokens against (accept anything when empty)")
	apiSecret := flag.String("secret", "", "API secret matching -key")
	flag.Parse()

	http.HandleFunc(*path, func(w http.ResponseWriter, r *http.Request) {
		if *apiKey != "" {
			if err := verify(r, *apiKey, *apiSecret); err != nil {
				log.Printf("reject %s: %v", r.RemoteAddr, err)
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			log.Printf("accept %s: %v", r.RemoteAddr, err)
			return
		}

		log.Printf("feed connected from %s", r.RemoteAddr)
		drain(conn)
		log.Printf("feed from %s closed", r.RemoteAddr)
	})

	log.Printf("Chat sink listening on %s%s", *addr, *path)
	log.Fatal(http.ListenAndServe(*addr, nil))
}

// drain prints frames until the peer goes away. It runs inside the handler
// because the request context dies as soon as the handler returns.
func drain(conn *websocket.Conn) {
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var frame proto.ChatFrame
		if err := wsjson.Read(context.Background(), conn, &frame); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return
			}
			if !errors.Is(err, context.Canceled) {
				log.Printf("read error: %v", err)
			}
			return
		}

		target := frame.Room
		if frame.To != "" {
			target = frame.To
		}
		fmt.Printf("[%s] %s: %s\n", target, frame.Payload.DisplayName, frame.Payload.Message)
	}
}

func verify(r *http.Request, apiKey, apiSecret string) error {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return errors.New("missing bearer token")
	}

	verifier, err := auth.ParseAPIToken(parts[1])
	if err != nil {
		return fmt.Errorf("parse token: %w", err)
	}
	if verifier.APIKey() != apiKey {
		return fmt.Errorf("unknown api key %q", verifier.APIKey())
	}
	if _, err := verifier.Verify(apiSecret); err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}
