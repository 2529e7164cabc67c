package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{expr: "0 3 * * *"},
		{expr: "*/15 * * * 1-5"},
		{expr: "0 0 1,15 * *"},
		{expr: "0 3 * *", wantErr: true},
		{expr: "60 * * * *", wantErr: true},
		{expr: "0 5-2 * * *", wantErr: true},
		{expr: "*/0 * * * *", wantErr: true},
		{expr: "x * * * *", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := ParseSchedule(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduleNext(t *testing.T) {
	base := time.Date(2026, 3, 14, 10, 7, 30, 0, time.UTC) // Saturday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 3, 15, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 3, 14, 10, 15, 0, 0, time.UTC)},
		{"0 9 * * 1", time.Date(2026, 3, 16, 9, 0, 0, 0, time.UTC)},
		{"30 2 1 * *", time.Date(2026, 4, 1, 2, 30, 0, 0, time.UTC)},
		{"8 10 * * *", time.Date(2026, 3, 14, 10, 8, 0, 0, time.UTC)},
		{"7 10 * * *", time.Date(2026, 3, 15, 10, 7, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := ParseSchedule(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Next(base))
		})
	}
}

func TestScheduleNeverFires(t *testing.T) {
	s, err := ParseSchedule("0 0 31 2 *")
	require.NoError(t, err)
	assert.True(t, s.Next(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)).IsZero())
}

type stubArchiver struct {
	before   []time.Time
	snapErr  error
	setCalls int
}

func (s *stubArchiver) ArchiveSnapshots(_ context.Context, before time.Time) (int64, error) {
	s.before = append(s.before, before)
	return 3, s.snapErr
}

func (s *stubArchiver) ArchiveOrderSets(_ context.Context, before time.Time) (int64, error) {
	s.setCalls++
	s.before = append(s.before, before)
	return 2, nil
}

func TestRetentionJobRun(t *testing.T) {
	arch := &stubArchiver{}
	job := NewRetentionJob(arch, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 6, 30, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	res, err := job.Run(context.Background())
	require.NoError(t, err)
	want := time.Date(2026, 5, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, RunResult{Cutoff: want, Snapshots: 3, OrderSets: 2}, res)
	assert.Equal(t, []time.Time{want, want}, arch.before)
}

func TestRetentionJobStopsOnSnapshotFailure(t *testing.T) {
	arch := &stubArchiver{snapErr: errors.New("bucket gone")}
	job := NewRetentionJob(arch, 30, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive snapshots")
	assert.Zero(t, arch.setCalls)
}

func TestRunScheduleStopsOnCancel(t *testing.T) {
	job := NewRetentionJob(&stubArchiver{}, 1, slog.New(slog.NewTextHandler(io.Discard, nil)))
	s, err := ParseSchedule("0 3 * * *")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, job.RunSchedule(ctx, s))
}
