package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	dombatch "github.com/kailas-cloud/voxmap/internal/domain/batch"
	"github.com/kailas-cloud/voxmap/internal/domain/insight"
	"github.com/kailas-cloud/voxmap/internal/domain/mindmap"
	domsession "github.com/kailas-cloud/voxmap/internal/domain/session"
	"github.com/kailas-cloud/voxmap/internal/events"
	graphuc "github.com/kailas-cloud/voxmap/internal/usecase/graph"
)

// ErrorCode is the machine-readable error code of an API error.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest        ErrorCode = "bad_request"
	CodeValidationFailed  ErrorCode = "validation_failed"
	CodeUnauthorized      ErrorCode = "unauthorized"
	CodeNotFound          ErrorCode = "not_found"
	CodeMapNotFound       ErrorCode = "map_not_found"
	CodeNodeNotFound      ErrorCode = "node_not_found"
	CodeSessionActive     ErrorCode = "session_active"
	CodeNoActiveSession   ErrorCode = "no_active_session"
	CodeInvalidTransition ErrorCode = "invalid_transition"
	CodeRateLimited       ErrorCode = "rate_limited"
	CodeInternalError     ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// --- Requests ---

// PromptRequest opens a session that waits for its main topic.
type PromptRequest struct {
	AIEnabled *bool `json:"ai_enabled"`
}

// StartRequest starts a session on a new map.
type StartRequest struct {
	MainTopic string `json:"main_topic" validate:"required,max=120"`
	AIEnabled *bool  `json:"ai_enabled"`
}

// FragmentRequest carries one speech recognizer fragment.
type FragmentRequest struct {
	Text  string `json:"text" validate:"required,max=2000"`
	Final bool   `json:"final"`
}

// ChildRequest is one child of an expand request.
type ChildRequest struct {
	Label   string `json:"label" validate:"required,max=120"`
	Content string `json:"content" validate:"max=4000"`
}

// ChildrenRequest adds several children to a node.
type ChildrenRequest struct {
	Children  []ChildRequest `json:"children" validate:"required,min=1,max=32,dive"`
	MainTopic string         `json:"main_topic" validate:"max=120"`
}

func aiEnabled(p *bool) bool { return p == nil || *p }

// --- Responses ---

// SessionResponse is the public view of a session.
type SessionResponse struct {
	ID        string   `json:"id,omitempty"`
	State     string   `json:"state"`
	MapID     string   `json:"map_id,omitempty"`
	RootID    string   `json:"root_id,omitempty"`
	MainTopic string   `json:"main_topic,omitempty"`
	Speakers  []string `json:"speakers"`
	AIEnabled bool     `json:"ai_enabled"`
}

// MapResponse is the public view of a map.
type MapResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	RootID    string `json:"root_id"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// EdgeResponse is the public view of an edge.
type EdgeResponse struct {
	ID        string `json:"id"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	CreatedAt int64  `json:"created_at"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// BatchResultItem is the outcome of one child in an expand request.
type BatchResultItem struct {
	Label  string `json:"label"`
	Status string `json:"status"`
	NodeID string `json:"node_id,omitempty"`
	Error  string `json:"error,omitempty"`
}

// InsightResponse is a node's insight. Research fields are empty while pending.
type InsightResponse struct {
	NodeID string         `json:"node_id"`
	Status insight.Status `json:"status"`
	*insight.Insight
}

func sessionToResponse(s domsession.Snapshot) SessionResponse {
	speakers := s.Speakers
	if speakers == nil {
		speakers = []string{}
	}
	return SessionResponse{
		ID:        s.ID,
		State:     strings.ToLower(s.State.String()),
		MapID:     s.Target.MapID,
		RootID:    s.Target.RootID,
		MainTopic: s.Target.MainTopic,
		Speakers:  speakers,
		AIEnabled: s.AIEnabled,
	}
}

func mapToResponse(m mindmap.Map) MapResponse {
	return MapResponse{
		ID:        m.ID,
		Title:     m.Title,
		RootID:    m.RootID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func nodesToResponse(nodes []mindmap.Node) ListResponse[events.NodePayload] {
	items := make([]events.NodePayload, len(nodes))
	for i := range nodes {
		items[i] = events.NewNodePayload(&nodes[i], "")
	}
	return ListResponse[events.NodePayload]{Items: items, Count: len(items)}
}

func edgesToResponse(edges []mindmap.Edge) ListResponse[EdgeResponse] {
	items := make([]EdgeResponse, len(edges))
	for i, e := range edges {
		items[i] = EdgeResponse{ID: e.ID, Source: e.Source, Target: e.Target, CreatedAt: e.CreatedAt}
	}
	return ListResponse[EdgeResponse]{Items: items, Count: len(items)}
}

func childrenFromRequest(req ChildrenRequest) []graphuc.Child {
	out := make([]graphuc.Child, len(req.Children))
	for i, c := range req.Children {
		out[i] = graphuc.Child{Label: c.Label, Content: c.Content}
	}
	return out
}

func batchResultToResponse(r dombatch.Result) BatchResultItem {
	item := BatchResultItem{
		Label:  r.Label(),
		Status: string(r.Status()),
		NodeID: r.NodeID(),
	}
	if r.Err() != nil {
		item.Error = safeDomainMessage(r.Err())
	}
	return item
}

// --- Decoding ---

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Use JSON tag names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeRequest decodes a JSON body into dst and validates it.
// On failure the error response is already written.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		switch fe.Tag() {
		case "required":
			msgs[i] = field + " is required"
		case "max":
			msgs[i] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		case "min":
			msgs[i] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		default:
			msgs[i] = fmt.Sprintf("%s failed %s", field, fe.Tag())
		}
	}
	return strings.Join(msgs, "; ")
}
