package usecase

import (
	"context"
	"time"

	"github.com/allisson/qbdrelay/internal/metrics"
	"github.com/allisson/qbdrelay/internal/staging/domain"
)

// stagingUseCaseWithMetrics decorates StagingUseCase with metrics instrumentation.
type stagingUseCaseWithMetrics struct {
	next    StagingUseCase
	metrics metrics.BusinessMetrics
}

// NewStagingUseCaseWithMetrics wraps a StagingUseCase with metrics recording.
func NewStagingUseCaseWithMetrics(useCase StagingUseCase, m metrics.BusinessMetrics) StagingUseCase {
	return &stagingUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

func (s *stagingUseCaseWithMetrics) record(ctx context.Context, operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(ctx, "staging", operation, status)
	s.metrics.RecordDuration(ctx, "staging", operation, time.Since(start), status)
}

func (s *stagingUseCaseWithMetrics) Save(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error {
	start := time.Now()
	err := s.next.Save(ctx, ns, objectType, payloads)
	s.record(ctx, "record_save", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) SaveForPolling(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error {
	start := time.Now()
	err := s.next.SaveForPolling(ctx, ns, objectType, payloads)
	s.record(ctx, "record_save_for_polling", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) ProcessWaitingRecords(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) ([]DispatchItem, error) {
	start := time.Now()
	items, err := s.next.ProcessWaitingRecords(ctx, ns, objectType)
	s.record(ctx, "waiting_records_process", start, err)
	return items, err
}

func (s *stagingUseCaseWithMetrics) PromoteTwoPhasePending(ctx context.Context, ns domain.Namespace) error {
	start := time.Now()
	err := s.next.PromoteTwoPhasePending(ctx, ns)
	s.record(ctx, "two_phase_promote", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) ListPendingForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error) {
	start := time.Now()
	items, err := s.next.ListPendingForDispatch(ctx, ns)
	s.record(ctx, "pending_dispatch", start, err)
	return items, err
}

func (s *stagingUseCaseWithMetrics) ListReadyForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error) {
	start := time.Now()
	items, err := s.next.ListReadyForDispatch(ctx, ns)
	s.record(ctx, "ready_dispatch", start, err)
	return items, err
}

func (s *stagingUseCaseWithMetrics) UpdateWithDestinationIDs(ctx context.Context, ns domain.Namespace, updates []DestinationIDUpdate) error {
	start := time.Now()
	err := s.next.UpdateWithDestinationIDs(ctx, ns, updates)
	s.record(ctx, "destination_ids_update", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) Finalize(ctx context.Context, ns domain.Namespace, outcomes Outcomes) error {
	start := time.Now()
	err := s.next.Finalize(ctx, ns, outcomes)
	s.record(ctx, "record_finalize", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) CollectNotifications(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) (domain.NotificationGroups, error) {
	start := time.Now()
	groups, err := s.next.CollectNotifications(ctx, ns, objectType)
	s.record(ctx, "notifications_collect", start, err)
	return groups, err
}

func (s *stagingUseCaseWithMetrics) RejectWithNotification(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payload map[string]any, reason string) error {
	start := time.Now()
	err := s.next.RejectWithNotification(ctx, ns, objectType, payload, reason)
	s.record(ctx, "record_reject", start, err)
	return err
}

func (s *stagingUseCaseWithMetrics) FailFromSession(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, sessionID, message string) error {
	start := time.Now()
	err := s.next.FailFromSession(ctx, ns, objectType, sessionID, message)
	s.record(ctx, "session_fail", start, err)
	return err
}
