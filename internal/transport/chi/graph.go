package chi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/events"
)

// GetMap handles GET /v1/maps/{mapID}.
func (s *Server) GetMap(w http.ResponseWriter, r *http.Request) {
	m, err := s.graph.GetMap(r.Context(), chi.URLParam(r, "mapID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapToResponse(m))
}

// ListNodes handles GET /v1/maps/{mapID}/nodes.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.graph.ListNodes(r.Context(), chi.URLParam(r, "mapID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodesToResponse(nodes))
}

// ListEdges handles GET /v1/maps/{mapID}/edges.
func (s *Server) ListEdges(w http.ResponseWriter, r *http.Request) {
	mapID := chi.URLParam(r, "mapID")
	if _, err := s.graph.GetMap(r.Context(), mapID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	edges, err := s.graph.ListEdges(r.Context(), mapID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edgesToResponse(edges))
}

// GetNode handles GET /v1/nodes/{nodeID}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	n, err := s.graph.GetNode(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, events.NewNodePayload(&n, ""))
}

// ListChildren handles GET /v1/nodes/{nodeID}/children.
func (s *Server) ListChildren(w http.ResponseWriter, r *http.Request) {
	nodes, err := s.graph.ListChildren(r.Context(), chi.URLParam(r, "nodeID"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nodesToResponse(nodes))
}

// AddChildren handles POST /v1/nodes/{nodeID}/children.
// The map title is the enrichment context unless the request names one.
func (s *Server) AddChildren(w http.ResponseWriter, r *http.Request) {
	var req ChildrenRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	nodeID := chi.URLParam(r, "nodeID")
	parent, err := s.graph.GetNode(r.Context(), nodeID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	mainTopic := req.MainTopic
	if mainTopic == "" {
		m, err := s.graph.GetMap(r.Context(), parent.MapID())
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		mainTopic = m.Title
	}

	results := s.graph.AddChildren(r.Context(), nodeID, childrenFromRequest(req), mainTopic, "")
	items := make([]BatchResultItem, len(results))
	for i, res := range results {
		items[i] = batchResultToResponse(res)
	}
	writeJSON(w, http.StatusOK, ListResponse[BatchResultItem]{Items: items, Count: len(items)})
}

// GetInsight handles GET /v1/nodes/{nodeID}/insight.
// 200 with the research once ready, 202 while it is still pending.
func (s *Server) GetInsight(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if _, err := s.graph.GetNode(r.Context(), nodeID); err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	pending := InsightResponse{NodeID: nodeID, Status: insight.StatusPending}
	if s.insights == nil {
		writeJSON(w, http.StatusAccepted, pending)
		return
	}
	in, ready, err := s.insights.Get(r.Context(), nodeID)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	if !ready {
		writeJSON(w, http.StatusAccepted, pending)
		return
	}
	writeJSON(w, http.StatusOK, InsightResponse{NodeID: nodeID, Status: insight.StatusReady, Insight: &in})
}
