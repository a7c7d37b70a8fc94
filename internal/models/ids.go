package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TempIDPrefix marks client-assigned identifiers for entities not yet
// acknowledged by the remote system. Any value starting with this prefix is
// a temporary identifier and must never be sent as a foreign key.
const TempIDPrefix = "offline_"

// NewTempID builds a temporary identifier for a freshly captured entity:
// kind, capture timestamp and a random component, so ids remain globally
// unique even when the device clock jumps.
func NewTempID(kind Kind, now time.Time) string {
	return fmt.Sprintf("%s%s_%d_%s", TempIDPrefix, kind, now.UnixMilli(), uuid.NewString())
}

// IsTempID reports whether v is a temporary identifier. Permanent ids
// assigned by the remote system are numeric and never match.
func IsTempID(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, TempIDPrefix)
}

// CollectorContext identifies the collector installation. It is stamped
// into every remote payload and participates in idempotency keys.
type CollectorContext struct {
	PanelID     string
	CollectorID string
	UserID      string
}

// AuthorID is the authorship attribute for remote writes: the user id when
// present, otherwise the collector id. Used as created_by, and re-asserted
// on the strengthened retry after a permission error.
func (c CollectorContext) AuthorID() string {
	if c.UserID != "" {
		return c.UserID
	}
	return c.CollectorID
}

// IdempotencyKey derives the deterministic key for one logical operation
// from the collector identity, the subject entity id, the operation kind
// and the capture timestamp. It is computed once at capture time and reused
// verbatim on every retry; replaying the same record any number of times
// must produce at most one remote effect.
//
// Payments keep the historical bare format, collections keep the "-collect-"
// marker; both predate the other kinds and are already persisted server-side.
func IdempotencyKey(c CollectorContext, kind Kind, subjectID string, capturedAt time.Time) string {
	ts := capturedAt.UnixMilli()
	switch kind {
	case KindPayment:
		return fmt.Sprintf("%s-%s-%d", c.CollectorID, subjectID, ts)
	case KindCollection:
		return fmt.Sprintf("%s-%s-collect-%d", c.CollectorID, subjectID, ts)
	default:
		return fmt.Sprintf("%s-%s-%s-%d", c.CollectorID, subjectID, kind, ts)
	}
}
