package server

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"golang.org/x/net/websocket"

	"github.com/louisbranch/statecraft/internal/platform/telemetry/metrics"
	"github.com/louisbranch/statecraft/internal/platform/timeouts"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
)

// peerBuffer bounds frames queued for one client. A client that falls this
// far behind is disconnected.
const peerBuffer = 32

type feedFrame struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type feedPeer struct {
	conn    *websocket.Conn
	encoder *json.Encoder
	send    chan feedFrame
	done    chan struct{}
	once    sync.Once
}

func newFeedPeer(conn *websocket.Conn) *feedPeer {
	return &feedPeer{
		conn:    conn,
		encoder: json.NewEncoder(conn),
		send:    make(chan feedFrame, peerBuffer),
		done:    make(chan struct{}),
	}
}

func (p *feedPeer) enqueue(frame feedFrame) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.send <- frame:
		return true
	default:
		return false
	}
}

func (p *feedPeer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

func (p *feedPeer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(timeouts.WebsocketWrite))
			if err := p.encoder.Encode(frame); err != nil {
				p.close()
				return
			}
		}
	}
}

// feedHub fans session updates out to every connected websocket client.
type feedHub struct {
	session *session.Session
	metrics *metrics.Chronicle

	mu    sync.Mutex
	peers map[*feedPeer]struct{}
}

func newFeedHub(sess *session.Session, m *metrics.Chronicle) *feedHub {
	return &feedHub{session: sess, metrics: m, peers: make(map[*feedPeer]struct{})}
}

func (h *feedHub) join(p *feedPeer) {
	h.mu.Lock()
	h.peers[p] = struct{}{}
	h.mu.Unlock()
	h.metrics.FeedClientConnected(1)
}

func (h *feedHub) leave(p *feedPeer) {
	h.mu.Lock()
	_, ok := h.peers[p]
	delete(h.peers, p)
	h.mu.Unlock()
	if ok {
		h.metrics.FeedClientConnected(-1)
	}
}

// observe is registered as a session observer. It never blocks on a client.
func (h *feedHub) observe(u session.Update) {
	frame, err := h.frameFor(u)
	if err != nil {
		log.Printf("chronicle: encode %s frame: %v", u.Kind, err)
		return
	}
	h.broadcast(frame)
}

func (h *feedHub) broadcast(frame feedFrame) {
	h.mu.Lock()
	peers := make([]*feedPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()

	for _, p := range peers {
		if !p.enqueue(frame) {
			log.Printf("chronicle: dropping slow feed client %s", p.conn.Request().RemoteAddr)
			p.close()
		}
	}
}

// closeAll disconnects every client.
func (h *feedHub) closeAll() {
	h.mu.Lock()
	peers := make([]*feedPeer, 0, len(h.peers))
	for p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.Unlock()
	for _, p := range peers {
		p.close()
	}
}

func (h *feedHub) frameFor(u session.Update) (feedFrame, error) {
	var payload any
	switch u.Kind {
	case session.UpdateNotifications:
		payload = buildNotificationsView(h.session, notification.FilterAll, u.Notifications)
	case session.UpdateToast:
		payload = buildToastsView(h.session)
	case session.UpdateBreaking:
		payload = buildBreakingView(h.session)
	default:
		if u.Timeline != nil {
			payload = *u.Timeline
		} else {
			payload = h.session.Timeline().State()
		}
	}
	return newFrame(string(u.Kind), payload)
}

// initialFrames describes the full state a new client starts from.
func (h *feedHub) initialFrames() ([]feedFrame, error) {
	updates := []session.Update{
		{Kind: session.UpdateTimeline},
		{Kind: session.UpdateNotifications},
		{Kind: session.UpdateToast},
		{Kind: session.UpdateBreaking},
	}
	frames := make([]feedFrame, 0, len(updates))
	for _, u := range updates {
		frame, err := h.frameFor(u)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

// serve runs one websocket connection until the client leaves. Inbound
// frames are read and discarded so closes are noticed.
func (h *feedHub) serve(conn *websocket.Conn) {
	peer := newFeedPeer(conn)
	defer peer.close()

	frames, err := h.initialFrames()
	if err != nil {
		log.Printf("chronicle: build initial feed frames: %v", err)
		return
	}
	for _, frame := range frames {
		peer.enqueue(frame)
	}
	h.join(peer)
	defer h.leave(peer)
	go peer.writeLoop()

	decoder := json.NewDecoder(conn)
	for {
		var discard json.RawMessage
		if err := decoder.Decode(&discard); err != nil {
			return
		}
	}
}

func newFrame(kind string, payload any) (feedFrame, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return feedFrame{}, err
	}
	return feedFrame{Type: kind, Payload: data}, nil
}
