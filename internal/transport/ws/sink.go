package ws

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"courier-dispatch/internal/domain"
)

// DefaultWriteTimeout bounds a single frame write to a subscriber.
const DefaultWriteTimeout = 5 * time.Second

// Sink streams tracking events to one WebSocket client as JSON text frames.
type Sink struct {
	conn         net.Conn
	src          io.Reader
	writeTimeout time.Duration

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Upgrade switches the request to the WebSocket protocol.
func Upgrade(w http.ResponseWriter, r *http.Request, writeTimeout time.Duration) (*Sink, error) {
	conn, rw, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return nil, fmt.Errorf("websocket upgrade: %w", err)
	}
	// the server's read/write timeouts no longer apply to a hijacked stream
	if err := conn.SetDeadline(time.Time{}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("websocket reset deadline: %w", err)
	}
	return newSink(conn, rw, writeTimeout), nil
}

func newSink(conn net.Conn, rw *bufio.ReadWriter, writeTimeout time.Duration) *Sink {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	var src io.Reader = conn
	if rw != nil && rw.Reader != nil {
		src = rw.Reader
	}
	return &Sink{conn: conn, src: src, writeTimeout: writeTimeout}
}

// Deliver writes ev as one text frame.
func (s *Sink) Deliver(ctx context.Context, ev domain.TrackingEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal tracking event: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.write(ws.OpText, data)
}

func (s *Sink) write(op ws.OpCode, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return wsutil.WriteServerMessage(s.conn, op, payload)
}

// ReadLoop consumes client frames, answering pings, until the client goes
// away or the connection is closed.
func (s *Sink) ReadLoop() error {
	rd := wsutil.Reader{Source: s.src, State: ws.StateServerSide, CheckUTF8: true}
	for {
		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if !hdr.OpCode.IsControl() {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}

		payload, err := io.ReadAll(&rd)
		if err != nil {
			return err
		}
		switch hdr.OpCode {
		case ws.OpPing:
			if err := s.write(ws.OpPong, payload); err != nil {
				return err
			}
		case ws.OpClose:
			return io.EOF
		}
	}
}

// Close sends a normal closure frame and closes the connection.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		body := ws.NewCloseFrameBody(ws.StatusNormalClosure, "")
		_ = s.write(ws.OpClose, body)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}
