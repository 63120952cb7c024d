package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"

	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("hookprobe: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "http://localhost:8090", "warden base address")
	apiKey := flag.String("key", "", "room server API key")
	apiSecret := flag.String("secret", "", "room server API secret")
	event := flag.String("event", "prejoin", "delivery to fire: prejoin, occupant_joined, occupant_left, session_closed, room_closed")
	room := flag.String("room", "standup@conference.wiremeet.local", "room address")
	occupant := flag.String("occupant", "alice@wiremeet.local/web", "occupant address")
	nick := flag.String("nick", "alice", "occupant nick")
	affiliation := flag.String("affiliation", "", "occupant affiliation, e.g. owner")
	session := flag.String("session", "", "session id (fresh uuid when empty)")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	if *apiKey == "" || *apiSecret == "" {
		return fmt.Errorf("-key and -secret are required")
	}
	if *session == "" {
		*session = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	token, err := auth.NewAccessToken(*apiKey, *apiSecret).
		SetIdentity("hookprobe").
		SetValidFor(time.Minute).
		ToJWT()
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}

	ev := proto.HookEvent{
		ID:      uuid.NewString(),
		Room:    *room,
		Session: *session,
		At:      time.Now().Unix(),
		Occupant: &proto.OccupantInfo{
			ID:          *occupant,
			Nick:        *nick,
			Affiliation: *affiliation,
			Session:     *session,
		},
	}

	path := "/api/v1/hooks/event"
	switch *event {
	case "prejoin":
		ev.Type = proto.HookOccupantPreJoin
		path = "/api/v1/hooks/prejoin"
	case proto.HookOccupantJoined, proto.HookOccupantLeft, proto.HookSessionClosed, proto.HookRoomClosed:
		ev.Type = *event
	default:
		return fmt.Errorf("unknown event %q", *event)
	}

	status, body, err := post(ctx, strings.TrimRight(*addr, "/")+path, token, ev)
	if err != nil {
		return err
	}

	fmt.Printf("%s -> %d\n", ev.Type, status)
	if ev.Type == proto.HookOccupantPreJoin {
		var decision proto.PreJoinDecision
		if err := json.Unmarshal(body, &decision); err != nil {
			return fmt.Errorf("decode decision: %w", err)
		}
		fmt.Printf("admit=%v members_only=%v", decision.Admit, decision.MembersOnly)
		if decision.Reason != "" {
			fmt.Printf(" reason=%s", decision.Reason)
		}
		fmt.Println()
		return nil
	}
	if len(body) > 0 {
		fmt.Printf("body: %s\n", strings.TrimSpace(string(body)))
	}
	return nil
}

func post(ctx context.Context, url, token string, ev proto.HookEvent) (int, []byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}
