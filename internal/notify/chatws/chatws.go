package chatws

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/livekit/protocol/auth"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/wiremeet-warden/internal/notify"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
)

const (
	identity      = "warden"
	tokenValidity = time.Hour
	redialBackoff = 2 * time.Second
)

// Client writes system-chat frames to the room server over a websocket.
// The connection is dialed lazily and redialed after failures; while the
// feed is down, sends fail fast and the caller drops the announcement.
type Client struct {
	url       string
	apiKey    string
	apiSecret string
	log       *zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	nextDial time.Time
}

var _ notify.Transport = (*Client)(nil)

// New creates a chat feed client for the given websocket URL.
func New(url, apiKey, apiSecret string, logger *zerolog.Logger) *Client {
	return &Client{
		url:       url,
		apiKey:    apiKey,
		apiSecret: apiSecret,
		log:       logger,
	}
}

// Send writes one frame, dialing the feed first if necessary.
func (c *Client) Send(ctx context.Context, frame proto.ChatFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := c.ensureConn(ctx)
	if err != nil {
		return err
	}
	if err := wsjson.Write(ctx, conn, frame); err != nil {
		c.dropLocked()
		return fmt.Errorf("write chat frame: %w", err)
	}
	return nil
}

// Close shuts the connection down cleanly.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close(websocket.StatusNormalClosure, "shutting down")
	c.conn = nil
	return err
}

func (c *Client) ensureConn(ctx context.Context) (*websocket.Conn, error) {
	if c.conn != nil {
		return c.conn, nil
	}
	if time.Now().Before(c.nextDial) {
		return nil, fmt.Errorf("chat feed down, next dial at %s", c.nextDial.Format(time.RFC3339))
	}

	token, err := c.dialToken()
	if err != nil {
		return nil, fmt.Errorf("sign chat feed token: %w", err)
	}
	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer " + token}},
	})
	if err != nil {
		c.nextDial = time.Now().Add(redialBackoff)
		return nil, fmt.Errorf("dial chat feed: %w", err)
	}

	// The feed is write-only from our side; CloseRead keeps control frames
	// serviced and tells us when the server goes away.
	readCtx := conn.CloseRead(context.Background())
	go func() {
		<-readCtx.Done()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.log.Warn().Str("url", c.url).Msg("chat feed connection lost")
		}
		c.mu.Unlock()
	}()

	c.log.Info().Str("url", c.url).Msg("chat feed connected")
	c.conn = conn
	return conn, nil
}

func (c *Client) dropLocked() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close(websocket.StatusInternalError, "write failed")
	c.conn = nil
	c.nextDial = time.Now().Add(redialBackoff)
}

func (c *Client) dialToken() (string, error) {
	at := auth.NewAccessToken(c.apiKey, c.apiSecret)
	grant := &auth.VideoGrant{RoomAdmin: true}
	at.SetVideoGrant(grant).
		SetIdentity(identity).
		SetValidFor(tokenValidity)
	return at.ToJWT()
}
