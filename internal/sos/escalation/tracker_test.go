package escalation

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/dispatch"
	"disha/internal/platform/kafka/consumer"
	"disha/internal/sos"
	sosmodels "disha/internal/sos/models"
	id "disha/pkg/domain"
)

type fakeEscalator struct {
	escalated []id.CaseID
}

func (f *fakeEscalator) Escalate(_ context.Context, caseID id.CaseID) (sosmodels.Case, error) {
	f.escalated = append(f.escalated, caseID)
	return sosmodels.Case{ID: caseID, Escalated: true}, nil
}

func message(t *testing.T, event sos.Event) *consumer.Message {
	t.Helper()
	payload, err := event.Encode()
	require.NoError(t, err)
	return &consumer.Message{Topic: sos.TopicCases, Value: payload}
}

func TestTrackerEscalatesBreachedCriticalCases(t *testing.T) {
	ctx := context.Background()
	escalator := &fakeEscalator{}
	schedule := NewMemorySchedule()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker := New(escalator, schedule, dispatch.NewMemoryDeduper(), slog.New(slog.DiscardHandler),
		WithWindow(time.Hour),
		WithClock(func() time.Time { return now }))

	breached := id.NewCaseID()
	fresh := id.NewCaseID()
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(breached, 1),
		CaseID:        breached.String(),
		Priority:      "critical",
		Status:        "open",
		Timestamp:     now.Add(-2 * time.Hour),
	})))
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(fresh, 1),
		CaseID:        fresh.String(),
		Priority:      "critical",
		Status:        "open",
		Timestamp:     now.Add(-10 * time.Minute),
	})))

	require.NoError(t, tracker.Sweep(ctx))
	assert.Equal(t, []id.CaseID{breached}, escalator.escalated)

	// Escalated case left the watch set; the fresh one is still watched.
	require.NoError(t, tracker.Sweep(ctx))
	assert.Len(t, escalator.escalated, 1)
}

func TestTrackerIgnoresNonCriticalAndForgetsResolved(t *testing.T) {
	ctx := context.Background()
	escalator := &fakeEscalator{}
	schedule := NewMemorySchedule()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker := New(escalator, schedule, dispatch.NewMemoryDeduper(), slog.New(slog.DiscardHandler),
		WithWindow(time.Hour),
		WithClock(func() time.Time { return now }))

	lowCase := id.NewCaseID()
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(lowCase, 1),
		CaseID:        lowCase.String(),
		Priority:      "low",
		Status:        "open",
		Timestamp:     now.Add(-3 * time.Hour),
	})))

	resolved := id.NewCaseID()
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(resolved, 1),
		CaseID:        resolved.String(),
		Priority:      "critical",
		Status:        "open",
		Timestamp:     now.Add(-3 * time.Hour),
	})))
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(resolved, 2),
		CaseID:        resolved.String(),
		Priority:      "critical",
		Status:        "resolved",
		Timestamp:     now,
	})))

	require.NoError(t, tracker.Sweep(ctx))
	assert.Empty(t, escalator.escalated)
}

func TestTrackerDedupesRedeliveries(t *testing.T) {
	ctx := context.Background()
	escalator := &fakeEscalator{}
	schedule := NewMemorySchedule()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tracker := New(escalator, schedule, dispatch.NewMemoryDeduper(), slog.New(slog.DiscardHandler),
		WithWindow(time.Hour),
		WithClock(func() time.Time { return now }))

	caseID := id.NewCaseID()
	open := message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(caseID, 1),
		CaseID:        caseID.String(),
		Priority:      "critical",
		Status:        "open",
		Timestamp:     now.Add(-2 * time.Hour),
	})
	require.NoError(t, tracker.Handle(ctx, open))

	// Resolve, then redeliver the stale open event: dedupe must drop it so
	// the resolved case is not re-tracked.
	require.NoError(t, tracker.Handle(ctx, message(t, sos.Event{
		CorrelationID: sosmodels.CorrelationID(caseID, 2),
		CaseID:        caseID.String(),
		Priority:      "critical",
		Status:        "resolved",
		Timestamp:     now,
	})))
	require.NoError(t, tracker.Handle(ctx, open))

	require.NoError(t, tracker.Sweep(ctx))
	assert.Empty(t, escalator.escalated)
}
