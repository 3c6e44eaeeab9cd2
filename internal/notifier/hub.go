package notifier

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"gift-auction/utils"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RoundResolver maps a round to its auction so round-scoped events can be
// routed to the auction's subscribers.
type RoundResolver interface {
	AuctionIDForRound(roundID string) (string, bool)
}

// Hub is a websocket fan-out implementation of Notifier. Clients subscribe
// to auctions with join/leave messages and receive every engine event for
// those auctions as a JSON envelope.
type Hub struct {
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{} // auctionID -> subscribers
	resolver RoundResolver
}

type client struct {
	send chan []byte
	hub  *Hub
}

type envelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type clientMessage struct {
	Action    string `json:"action"` // join | leave
	AuctionID string `json:"auction_id"`
}

// NewHub creates a new Hub instance
func NewHub(resolver RoundResolver) *Hub {
	return &Hub{
		subs:     make(map[string]map[*client]struct{}),
		resolver: resolver,
	}
}

func (h *Hub) subscribe(auctionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[auctionID] == nil {
		h.subs[auctionID] = make(map[*client]struct{})
	}
	h.subs[auctionID][c] = struct{}{}
}

func (h *Hub) unsubscribe(auctionID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[auctionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, auctionID)
		}
	}
}

func (h *Hub) drop(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for auctionID, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, auctionID)
		}
	}
}

func (h *Hub) broadcast(auctionID string, msg envelope) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.Error("hub: failed to marshal event", map[string]any{"type": msg.Type, "error": err.Error()})
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subs[auctionID] {
		select {
		case c.send <- data:
		default:
			// slow consumer, drop the event rather than block the engine
		}
	}
}

// BidUpdated implements Notifier.
func (h *Hub) BidUpdated(auctionID, roundID string) {
	h.broadcast(auctionID, envelope{Type: "bid:updated", Payload: map[string]any{
		"auction_id": auctionID,
		"round_id":   roundID,
	}})
}

// RoundEnded implements Notifier.
func (h *Hub) RoundEnded(auctionID string, roundNumber int, winners []RoundWinner, nextRound *int) {
	h.broadcast(auctionID, envelope{Type: "round:ended", Payload: map[string]any{
		"auction_id":   auctionID,
		"round_number": roundNumber,
		"winners":      winners,
		"next_round":   nextRound,
	}})
}

// AuctionEnded implements Notifier.
func (h *Hub) AuctionEnded(auctionID string) {
	h.broadcast(auctionID, envelope{Type: "auction:ended", Payload: map[string]any{
		"auction_id": auctionID,
	}})
}

// TimerTick implements Notifier.
func (h *Hub) TimerTick(roundID string, timeRemaining int) {
	auctionID, ok := h.resolver.AuctionIDForRound(roundID)
	if !ok {
		return
	}
	h.broadcast(auctionID, envelope{Type: "round:timer", Payload: map[string]any{
		"round_id":       roundID,
		"time_remaining": timeRemaining,
	}})
}

// ServeWS upgrades the request and pumps events to the client until it
// disconnects.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		utils.Warn("hub: websocket upgrade failed", map[string]any{"error": err.Error()})
		return
	}
	defer conn.Close()

	c := &client{send: make(chan []byte, 256), hub: h}
	defer h.drop(c)

	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case data, ok := <-c.send:
				if !ok {
					return
				}
				if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil || msg.AuctionID == "" {
			continue
		}
		switch msg.Action {
		case "join":
			h.subscribe(msg.AuctionID, c)
		case "leave":
			h.unsubscribe(msg.AuctionID, c)
		}
	}
}
