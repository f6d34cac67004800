package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/timecoin/walletsync/services/netsync"
)

const (
	notificationTypeSyncState = "sync_state"
	clientBufferSize          = 16
	writeWait                 = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type notificationMsg struct {
	Type      string            `json:"type"`
	Timestamp string            `json:"timestamp"`
	IsSynced  bool              `json:"is_synced"`
	State     netsync.SyncState `json:"state"`
}

type clientChannelMap struct {
	mu       sync.Mutex
	channels map[chan []byte]struct{}
}

func newClientChannelMap() *clientChannelMap {
	return &clientChannelMap{
		channels: make(map[chan []byte]struct{}),
	}
}

func (cm *clientChannelMap) add(ch chan []byte) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	cm.channels[ch] = struct{}{}
}

func (cm *clientChannelMap) remove(ch chan []byte) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if _, ok := cm.channels[ch]; ok {
		delete(cm.channels, ch)
		close(ch)
	}
}

func (cm *clientChannelMap) count() int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	return len(cm.channels)
}

// broadcast drops any client whose buffer is full rather than blocking the
// other clients.
func (cm *clientChannelMap) broadcast(data []byte) (dropped int) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for ch := range cm.channels {
		select {
		case ch <- data:
		default:
			delete(cm.channels, ch)
			close(ch)
			dropped++
		}
	}

	return dropped
}

func (cm *clientChannelMap) closeAll() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	for ch := range cm.channels {
		delete(cm.channels, ch)
		close(ch)
	}
}

func newNotification(s netsync.SyncState) ([]byte, error) {
	return json.Marshal(notificationMsg{
		Type:      notificationTypeSyncState,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		IsSynced:  s.IsSynced(),
		State:     s,
	})
}

// RunNotifications forwards every manager state change to the websocket
// clients until ctx is done or the manager closes its subscription.
func (s *Server) RunNotifications(ctx context.Context) {
	updates, unsubscribe := s.manager.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case snapshot, ok := <-updates:
			if !ok {
				s.logger.Infof("[DebugAPI] sync state subscription closed")
				return
			}

			data, err := newNotification(snapshot)
			if err != nil {
				s.logger.Errorf("[DebugAPI] error marshaling notification: %v", err)
				continue
			}

			if dropped := s.clients.broadcast(data); dropped > 0 {
				s.logger.Warnf("[DebugAPI] dropped %d slow websocket clients", dropped)
			}
		}
	}
}

// HandleWebSocket streams sync state notifications to a client, starting
// with the current snapshot.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Errorf("[DebugAPI] websocket upgrade failed: %v", err)
		return nil
	}

	defer func() {
		_ = ws.Close()
	}()

	ch := make(chan []byte, clientBufferSize)

	if data, err := newNotification(s.manager.Snapshot()); err == nil {
		ch <- data
	}

	s.clients.add(ch)
	defer s.clients.remove(ch)

	s.logger.Debugf("[DebugAPI] websocket client connected from %s", c.RealIP())

	readerDone := make(chan struct{})

	go s.handleClientMessages(ws, readerDone)

	for {
		select {
		case <-readerDone:
			s.logger.Debugf("[DebugAPI] websocket client %s disconnected", c.RealIP())
			return nil
		case <-s.done:
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(writeWait))

			return nil
		case data, ok := <-ch:
			if !ok {
				return nil
			}

			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))

			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				s.logger.Debugf("[DebugAPI] websocket write failed: %v", err)
				return nil
			}
		}
	}
}

// handleClientMessages drains incoming frames so control messages are
// processed, and signals when the client goes away.
func (s *Server) handleClientMessages(ws *websocket.Conn, done chan struct{}) {
	defer close(done)

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debugf("[DebugAPI] websocket read error: %v", err)
			}

			return
		}
	}
}
