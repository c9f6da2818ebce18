package chi

import (
	"context"
	"net/http"
)

// GetSession handles GET /v1/session.
func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionToResponse(s.session.Current()))
}

// PromptForTopic handles POST /v1/session/prompt.
func (s *Server) PromptForTopic(w http.ResponseWriter, r *http.Request) {
	var req PromptRequest
	if r.ContentLength != 0 && !decodeRequest(w, r, &req) {
		return
	}

	snap, err := s.session.PromptForTopic(r.Context(), aiEnabled(req.AIEnabled))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(snap))
}

// StartSession handles POST /v1/session/start.
func (s *Server) StartSession(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	snap, err := s.session.Start(r.Context(), req.MainTopic, aiEnabled(req.AIEnabled))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/maps/"+snap.Target.MapID)
	writeJSON(w, http.StatusCreated, sessionToResponse(snap))
}

// PushFragment handles POST /v1/session/fragments.
func (s *Server) PushFragment(w http.ResponseWriter, r *http.Request) {
	var req FragmentRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	if err := s.pushFragment(r.Context(), req); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) pushFragment(ctx context.Context, req FragmentRequest) error {
	if req.Final {
		return s.session.OnFinalFragment(ctx, req.Text)
	}
	return s.session.OnInterimFragment(ctx, req.Text)
}

// StopSession handles POST /v1/session/stop. It returns after the drain.
func (s *Server) StopSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.session.Stop(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionToResponse(snap))
}
