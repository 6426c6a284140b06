package audit

import (
	"bytes"
	"context"
	"encoding/csv"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/supplyhub/supplyhub/internal/shared"
)

type stubRepo struct {
	entries    []Entry
	lastOffset int
	lastLimit  int
	lastFilter Filters
}

func (s *stubRepo) Window(_ context.Context, f Filters, offset, limit int) ([]Entry, error) {
	s.lastFilter, s.lastOffset, s.lastLimit = f, offset, limit
	end := min(offset+limit, len(s.entries))
	if offset > end {
		return nil, nil
	}
	return s.entries[offset:end], nil
}

func (s *stubRepo) All(_ context.Context, f Filters) ([]Entry, error) {
	s.lastFilter = f
	return s.entries, nil
}

var admin = shared.Actor{ID: "u-admin", Role: shared.RoleAdmin}

func entries(n int) []Entry {
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	out := make([]Entry, n)
	for i := range out {
		out[i] = Entry{At: base.Add(-time.Duration(i) * time.Hour), ActorID: "u-1", Action: "order.status", Entity: "order", EntityID: "o-1"}
	}
	return out
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubRepo{entries: entries(5)}
	svc := NewService(repo)

	first, err := svc.Timeline(context.Background(), admin, Filters{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, first.Entries, 2)
	require.True(t, first.Paging.HasNext)
	require.Equal(t, 2, first.Paging.NextPage)
	require.Zero(t, first.Paging.PrevPage)
	require.Equal(t, 3, repo.lastLimit)
	require.Zero(t, repo.lastOffset)

	last, err := svc.Timeline(context.Background(), admin, Filters{Page: 3, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	require.False(t, last.Paging.HasNext)
	require.Equal(t, 2, last.Paging.PrevPage)
	require.Equal(t, 4, repo.lastOffset)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubRepo{}
	res, err := NewService(repo).Timeline(context.Background(), admin, Filters{PageSize: 5000, Actor: "  u-1 "})
	require.NoError(t, err)
	require.Equal(t, maxPageSize, res.Paging.PageSize)
	require.Equal(t, "u-1", repo.lastFilter.Actor)
	require.NotNil(t, res.Entries)
}

func TestTimelineHugePageStaysInRange(t *testing.T) {
	repo := &stubRepo{entries: entries(3)}
	res, err := NewService(repo).Timeline(context.Background(), admin, Filters{Page: math.MaxInt, PageSize: 20})
	require.NoError(t, err)
	require.Empty(t, res.Entries)
	require.False(t, res.Paging.HasNext)
	require.Positive(t, repo.lastOffset)
	require.Positive(t, repo.lastOffset+repo.lastLimit)
}

func TestTimelineRestrictedToAdmins(t *testing.T) {
	svc := NewService(&stubRepo{})
	_, err := svc.Timeline(context.Background(), shared.Actor{ID: "w", Role: shared.RoleWarehouse}, Filters{})
	require.ErrorIs(t, err, shared.ErrUnauthorized)

	_, err = svc.Export(context.Background(), shared.Actor{}, Filters{})
	require.ErrorIs(t, err, shared.ErrUnauthenticated)
}

func TestTimelineRejectsInvertedRange(t *testing.T) {
	now := time.Now()
	_, err := NewService(&stubRepo{}).Timeline(context.Background(), admin, Filters{From: now, To: now.Add(-time.Hour)})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestFiltersMatch(t *testing.T) {
	at := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	log := shared.AuditLog{ActorID: "u-1", Action: "inventory.adjust", Entity: "inventory_item", EntityID: "i-1", At: at}

	require.True(t, Filters{}.Match(log))
	require.True(t, Filters{Entity: "inventory_item", EntityID: "i-1"}.Match(log))
	require.False(t, Filters{Action: "order.create"}.Match(log))
	require.False(t, Filters{To: at}.Match(log))
	require.True(t, Filters{From: at, To: at.Add(time.Second)}.Match(log))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	rows := []Entry{{
		At:       time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
		ActorID:  "u-1",
		Action:   "order.cancel",
		Entity:   "order",
		EntityID: "o-1",
		Meta:     map[string]any{"reason": "duplicate, sorry"},
	}}
	require.NoError(t, WriteCSV(&buf, rows))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, csvHeader, records[0])
	require.Equal(t, "2025-03-10T10:00:00Z", records[1][0])
	require.JSONEq(t, `{"reason":"duplicate, sorry"}`, records[1][5])
}
