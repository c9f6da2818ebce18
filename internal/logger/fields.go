package logger

import (
	"context"

	"go.uber.org/zap"
)

// Log keys shared by every line about a session, map or node, so one
// capture can be followed across the pipeline.
const (
	KeySessionID = "session_id"
	KeyMapID     = "map_id"
	KeyNodeID    = "node_id"
)

// SessionID is the session_id field.
func SessionID(id string) zap.Field { return zap.String(KeySessionID, id) }

// MapID is the map_id field.
func MapID(id string) zap.Field { return zap.String(KeyMapID, id) }

// NodeID is the node_id field.
func NodeID(id string) zap.Field { return zap.String(KeyNodeID, id) }

// WithFields returns a context whose logger carries fields.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return ContextWithLogger(ctx, FromContext(ctx).With(fields...))
}
