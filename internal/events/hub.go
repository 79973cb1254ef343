package events

import (
	"encoding/json"
	"errors"
	"sync"

	"tutorslot/internal/logging"
	"tutorslot/internal/metrics"

	"github.com/rs/zerolog"
)

var ErrHubClosed = errors.New("event hub is closed")

// Forwarder mirrors locally published frames to other instances.
type Forwarder interface {
	Forward(partyID string, frame []byte)
}

// Subscription is one receiver registered under a party id.
// Every value read from Events is a complete JSON frame.
type Subscription struct {
	partyID string
	ch      chan []byte
}

func (s *Subscription) PartyID() string { return s.partyID }

func (s *Subscription) Events() <-chan []byte { return s.ch }

// Hub keeps the per-party receiver sets. Publishing never blocks: a receiver whose
// buffer is full misses the frame.
type Hub struct {
	mu      sync.RWMutex
	parties map[string]map[*Subscription]struct{}
	closed  bool
	buffer  int
	forward Forwarder
	logger  *zerolog.Logger
}

func NewHub(buffer int, logger *zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	return &Hub{
		parties: make(map[string]map[*Subscription]struct{}),
		buffer:  buffer,
		logger:  logging.Component(logger, "hub"),
	}
}

// SetForwarder installs or clears the cross-instance forwarder.
func (h *Hub) SetForwarder(f Forwarder) {
	h.mu.Lock()
	h.forward = f
	h.mu.Unlock()
}

func (h *Hub) Subscribe(partyID string) (*Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	sub := &Subscription{partyID: partyID, ch: make(chan []byte, h.buffer)}
	set, ok := h.parties[partyID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.parties[partyID] = set
	}
	set[sub] = struct{}{}
	metrics.HubSubscribers(1)
	return sub, nil
}

// Unsubscribe removes the receiver and closes its channel. Safe to call twice.
func (h *Hub) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.parties[sub.partyID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.parties, sub.partyID)
	}
	close(sub.ch)
	metrics.HubSubscribers(-1)
}

// Publish encodes the event once and delivers it to every local receiver of the party,
// then hands it to the forwarder if one is installed.
func (h *Hub) Publish(partyID string, event Event) {
	frame, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", event.Type).Msg("encode event")
		return
	}
	metrics.IncEvent(event.Type)

	h.Deliver(partyID, frame)

	h.mu.RLock()
	forward := h.forward
	h.mu.RUnlock()
	if forward != nil {
		forward.Forward(partyID, frame)
	}
}

// Deliver hands an already encoded frame to local receivers only and reports how many got it.
func (h *Hub) Deliver(partyID string, frame []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0
	}

	delivered := 0
	for sub := range h.parties[partyID] {
		select {
		case sub.ch <- frame:
			delivered++
		default:
			metrics.IncEventDropped()
			h.logger.Warn().Str("party_id", partyID).Msg("subscriber buffer full, event dropped")
		}
	}
	return delivered
}

// Subscribers returns the number of local receivers for a party.
func (h *Hub) Subscribers(partyID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.parties[partyID])
}

// Close unsubscribes everyone. Later Subscribe calls fail with ErrHubClosed.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for partyID, set := range h.parties {
		for sub := range set {
			close(sub.ch)
			metrics.HubSubscribers(-1)
		}
		delete(h.parties, partyID)
	}
	h.forward = nil
	h.logger.Info().Msg("event hub closed")
}
