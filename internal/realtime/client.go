package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/iliyamo/chatdesk/internal/model"
)

// Kind distinguishes authenticated agents from anonymous widget visitors.
type Kind int

const (
	KindAgent Kind = iota
	KindVisitor
)

func (k Kind) String() string {
	if k == KindAgent {
		return "agent"
	}
	return "visitor"
}

// senderType is the message sender type of a connection kind.
func (k Kind) senderType() string {
	if k == KindAgent {
		return model.SenderAgent
	}
	return model.SenderVisitor
}

const (
	sendBuffer   = 64
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Principal is who a connection speaks for.
type Principal struct {
	Kind      Kind
	CompanyID string
	UserID    string // agents
	VisitorID string // visitors, may be empty
}

// Client is one websocket connection.  Outbound frames go through send and
// are written by a single writer goroutine; a full buffer means the peer is
// too slow and the connection is dropped.
type Client struct {
	Principal

	conn *websocket.Conn
	send chan []byte
	log  *zap.Logger

	rooms map[string]struct{} // guarded by Hub.mu

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, p Principal, log *zap.Logger) *Client {
	return &Client{
		Principal: p,
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		log:       log,
		rooms:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// enqueue hands a frame to the writer without blocking.
func (c *Client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close(code, reason)
		}
	})
}

// writeLoop drains send and keeps the connection alive with pings.
func (c *Client) writeLoop(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case b := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, b)
			cancel()
			if err != nil {
				c.log.Debug("websocket write failed", zap.Error(err))
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				c.log.Debug("websocket ping failed", zap.Error(err))
				c.close(websocket.StatusPolicyViolation, "ping timeout")
				return
			}
		}
	}
}
