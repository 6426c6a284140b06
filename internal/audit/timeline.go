package audit

import (
	"math"
	"strings"
	"time"

	"github.com/supplyhub/supplyhub/internal/shared"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Filters narrows the audit timeline. Zero values match everything.
type Filters struct {
	From     time.Time
	To       time.Time
	Actor    string
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

func (f Filters) normalized() Filters {
	f.Actor = strings.TrimSpace(f.Actor)
	f.Entity = strings.TrimSpace(f.Entity)
	f.EntityID = strings.TrimSpace(f.EntityID)
	f.Action = strings.TrimSpace(f.Action)
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PageSize <= 0 {
		f.PageSize = defaultPageSize
	}
	if f.PageSize > maxPageSize {
		f.PageSize = maxPageSize
	}
	// the window reads one extra row to detect a next page
	f.Page = min(f.Page, math.MaxInt/(f.PageSize+1))
	return f
}

// Match reports whether log satisfies every set filter. The To bound is exclusive.
func (f Filters) Match(log shared.AuditLog) bool {
	switch {
	case !f.From.IsZero() && log.At.Before(f.From):
		return false
	case !f.To.IsZero() && !log.At.Before(f.To):
		return false
	case f.Actor != "" && log.ActorID != f.Actor:
		return false
	case f.Entity != "" && log.Entity != f.Entity:
		return false
	case f.EntityID != "" && log.EntityID != f.EntityID:
		return false
	case f.Action != "" && log.Action != f.Action:
		return false
	}
	return true
}

// Entry is one row of the timeline.
type Entry struct {
	At       time.Time      `json:"at"`
	ActorID  string         `json:"actorId"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entityId"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// FromLog converts a stored audit record.
func FromLog(log shared.AuditLog) Entry {
	return Entry{At: log.At, ActorID: log.ActorID, Action: log.Action, Entity: log.Entity, EntityID: log.EntityID, Meta: log.Meta}
}

// Paging describes the page window without a total count.
type Paging struct {
	Page     int  `json:"page"`
	PageSize int  `json:"pageSize"`
	HasNext  bool `json:"hasNext"`
	PrevPage int  `json:"prevPage,omitempty"`
	NextPage int  `json:"nextPage,omitempty"`
}

// Result wraps a page of entries.
type Result struct {
	Entries []Entry `json:"entries"`
	Paging  Paging  `json:"paging"`
}
