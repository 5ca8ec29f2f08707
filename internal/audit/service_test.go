package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	rows       []TimelineRow
	lastLimit  int
	lastOffset int
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, filters TimelineFilters, limit, offset int) ([]TimelineRow, error) {
	s.lastLimit = limit
	s.lastOffset = offset
	if len(s.rows) > limit {
		return s.rows[:limit], nil
	}
	return s.rows, nil
}

func mkRow(id int64, module, action string) TimelineRow {
	return TimelineRow{ID: id, TargetID: "1", Module: module, Action: action, ChangedBy: 7, At: time.Now()}
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{rows: []TimelineRow{
		mkRow(3, "ORDER", "CREATE"),
		mkRow(2, "ORDER", "UPDATE"),
		mkRow(1, "RETURN", "CREATE"),
	}}
	svc := NewService(repo)

	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastLimit)
	require.Equal(t, 0, repo.lastOffset)

	result, err = svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 2, repo.lastOffset)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestTimelineClampsPageSize(t *testing.T) {
	repo := &stubTimelineRepo{}
	svc := NewService(repo)

	_, err := svc.Timeline(context.Background(), TimelineFilters{PageSize: 500})
	require.NoError(t, err)
	require.Equal(t, 51, repo.lastLimit)
}

func TestRecorderRejectsIncompleteEntry(t *testing.T) {
	w := NewTxWriter(nil)
	err := w.Record(context.Background(), Entry{Module: "ORDER"})
	require.Error(t, err)
}
