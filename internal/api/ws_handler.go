package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tutorslot/internal/events"
	"tutorslot/internal/models"
	"tutorslot/internal/service"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"
)

const (
	actionAddSlot  = "add_slot"
	actionBookSlot = "book_slot"

	msgTooManyRequests = "Too many requests"
)

// wsRequest is a client message on a party channel.
type wsRequest struct {
	Action    string `json:"action"`
	TeacherID string `json:"teacherId"`
	Date      string `json:"date"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	SlotID    int64  `json:"slotId"`
	StudentID string `json:"studentId"`
}

// wsPeer serializes writes from the event pump and from request replies.
type wsPeer struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (p *wsPeer) send(frame []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return websocket.Message.Send(p.conn, string(frame))
}

func (p *wsPeer) sendError(message string) error {
	frame, err := json.Marshal(events.Error(message))
	if err != nil {
		return err
	}
	return p.send(frame)
}

func (s *HTTPServer) handleWS(w http.ResponseWriter, r *http.Request) {
	partyID := strings.TrimSpace(chi.URLParam(r, "partyId"))
	if partyID == "" {
		writeError(w, http.StatusBadRequest, "party id is required")
		return
	}

	websocket.Handler(func(conn *websocket.Conn) {
		s.serveWS(conn, partyID)
	}).ServeHTTP(w, r)
}

func (s *HTTPServer) serveWS(conn *websocket.Conn, partyID string) {
	defer func() {
		_ = conn.Close()
	}()
	// the hijacked connection inherits the server write timeout
	_ = conn.SetDeadline(time.Time{})

	log := s.logger.With().Str("party_id", partyID).Logger()

	sub, err := s.hub.Subscribe(partyID)
	if err != nil {
		log.Warn().Err(err).Msg("websocket subscribe rejected")
		return
	}

	peer := &wsPeer{conn: conn}
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for frame := range sub.Events() {
			if err := peer.send(frame); err != nil {
				log.Debug().Err(err).Msg("websocket write failed")
				break
			}
		}
		// unblocks the reader when the hub shuts down or the peer is gone
		_ = conn.Close()
	}()

	log.Info().Msg("websocket connected")
	ctx := conn.Request().Context()
	for {
		var raw []byte
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			break
		}
		s.handleWSMessage(ctx, peer, partyID, raw)
	}

	s.hub.Unsubscribe(sub)
	<-pumpDone
	log.Info().Msg("websocket disconnected")
}

// handleWSMessage runs one client action. Failures are reported to this connection only
// and never end the session.
func (s *HTTPServer) handleWSMessage(ctx context.Context, peer *wsPeer, partyID string, raw []byte) {
	var req wsRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = peer.sendError(models.MsgInvalidJSON)
		return
	}

	if !s.allowAction(ctx, partyID, req.Action) {
		_ = peer.sendError(msgTooManyRequests)
		return
	}

	switch req.Action {
	case actionAddSlot:
		teacherID := req.TeacherID
		if teacherID == "" {
			teacherID = partyID
		}
		_, err := s.svc.CreateSlot(ctx, service.CreateSlotRequest{
			TeacherID: teacherID,
			Date:      req.Date,
			StartTime: req.StartTime,
			EndTime:   req.EndTime,
		})
		if err != nil {
			s.replyWSError(peer, err)
		}
	case actionBookSlot:
		studentID := req.StudentID
		if studentID == "" {
			studentID = partyID
		}
		_, err := s.svc.Reserve(ctx, service.ReserveRequest{SlotID: req.SlotID, StudentID: studentID})
		if err == nil {
			return
		}
		// conflicts are already delivered on the student's channel
		if errors.Is(err, models.ErrAlreadyBooked) && studentID == partyID {
			return
		}
		s.replyWSError(peer, err)
	default:
		_ = peer.sendError(fmt.Sprintf("Unknown action %q", req.Action))
	}
}

func (s *HTTPServer) replyWSError(peer *wsPeer, err error) {
	if statusFromError(err) == http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("websocket action failed")
	}
	_ = peer.sendError(errorMessage(err))
}

func (s *HTTPServer) allowAction(ctx context.Context, partyID, action string) bool {
	if s.actions == nil || s.cfg.RateLimit.WSActions <= 0 {
		return true
	}
	allowed, err := s.actions.CheckRateLimit(ctx, partyID+":"+action, s.cfg.RateLimit.WSActions, s.cfg.RateLimit.WSWindow)
	if err != nil {
		s.logger.Warn().Err(err).Str("party_id", partyID).Msg("action rate limit check failed")
		return true
	}
	return allowed
}
