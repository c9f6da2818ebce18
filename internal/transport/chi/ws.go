package chi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/kailas-cloud/voxmap/internal/events"
	"github.com/kailas-cloud/voxmap/internal/logger"
)

// Websocket message types.
const (
	wsTypeFragment = "fragment"
	wsTypeSession  = "session"
	wsTypeError    = "error"
)

// clientMessage is sent by the capture client.
type clientMessage struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Final bool   `json:"final"`
}

// serverMessage is a control message pushed to the client. Graph events are
// pushed as events.Event.
type serverMessage struct {
	Type    string           `json:"type"`
	Message string           `json:"message,omitempty"`
	Session *SessionResponse `json:"session,omitempty"`
}

// SessionSocket handles GET /v1/session/ws.
//
// The client streams fragments; the server pushes the graph events of one map
// (the map_id query parameter, else the live session's map, else every map).
func (s *Server) SessionSocket(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Warn("websocket accept error", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	snap := s.session.Current()
	mapID := r.URL.Query().Get("map_id")
	if mapID == "" {
		mapID = snap.Target.MapID
	}

	var feed <-chan events.Event
	if s.subscriber != nil {
		ch, unsubscribe := s.subscriber.Subscribe(mapID)
		defer unsubscribe()
		feed = ch
	}

	log = log.With(logger.MapID(mapID))
	log.Info("websocket connected", zap.String("remote", r.RemoteAddr))

	resp := sessionToResponse(snap)
	if err := wsjson.Write(ctx, conn, serverMessage{Type: wsTypeSession, Session: &resp}); err != nil {
		log.Debug("websocket write error", zap.Error(err))
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-feed:
				if !ok {
					return
				}
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					log.Debug("websocket write error", zap.Error(err))
					return
				}
			}
		}
	}()

	for {
		var msg clientMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			log.Debug("websocket read error", zap.Error(err))
			return
		}

		switch msg.Type {
		case wsTypeFragment:
			req := FragmentRequest{Text: msg.Text, Final: msg.Final}
			if err := validate.Struct(req); err != nil {
				s.writeSocketError(ctx, conn, validationMessage(err))
				continue
			}
			if err := s.pushFragment(ctx, req); err != nil {
				log.Debug("fragment rejected", zap.Error(err))
				s.writeSocketError(ctx, conn, safeDomainMessage(err))
			}
		default:
			s.writeSocketError(ctx, conn, "unknown message type")
		}
	}
}

func (s *Server) writeSocketError(ctx context.Context, conn *websocket.Conn, message string) {
	_ = wsjson.Write(ctx, conn, serverMessage{Type: wsTypeError, Message: message})
}
