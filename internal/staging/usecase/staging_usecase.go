package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	apperrors "github.com/allisson/qbdrelay/internal/errors"
	"github.com/allisson/qbdrelay/internal/session"
	"github.com/allisson/qbdrelay/internal/staging/codec"
	"github.com/allisson/qbdrelay/internal/staging/domain"
	"github.com/allisson/qbdrelay/internal/staging/repository"
)

// Engine implements StagingUseCase over the object store. The store is shared
// external state: no in-process lock protects it, correctness relies on the
// adapter's collision-safe writes and on monotonic, one-directional
// relocations.
type Engine struct {
	store    repository.ObjectStore
	sessions *session.Store
	logger   *slog.Logger
}

// NewEngine creates a staging engine.
func NewEngine(store repository.ObjectStore, sessions *session.Store, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// Save stages a batch of payloads. Each payload is handled independently:
// validation failures surface as failed notifications without occupying a
// pending slot, and a store failure on one record does not abort its
// siblings. Two-phase types stage their dependent records in pending and park
// the primary record in two_phase_pending until the next promotion sweep.
func (e *Engine) Save(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error {
	if !objectType.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown object type %q", objectType))
	}

	var errs []error
	for _, payload := range payloads {
		if err := e.saveOne(ctx, ns, objectType, payload); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) saveOne(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payload map[string]any) error {
	payload = applyFlow(ns, objectType, payload)
	record := domain.Record{ObjectType: objectType, Payload: payload}

	if reason := validateRecord(record); reason != "" {
		if err := e.RejectWithNotification(ctx, ns, objectType, payload, reason); err != nil {
			return err
		}
		e.log().Warn("record rejected at staging",
			slog.String("object_type", string(objectType)),
			slog.String("natural_key", record.NaturalKey()),
			slog.String("reason", reason),
		)
		return nil
	}

	if objectType.RequiresTwoPhase() {
		for _, dependent := range expandDependents(objectType, payload) {
			if err := e.writeRecord(ctx, ns, domain.StagePending, dependent); err != nil {
				return err
			}
		}
		return e.writeRecord(ctx, ns, domain.StageTwoPhasePending, record)
	}

	if objectType == domain.ObjectTypeInventory {
		// The destination does not propagate inventory changes to item
		// availability, so a companion product update rides along.
		companion := companionProduct(record)
		if err := e.writeRecord(ctx, ns, domain.StagePending, companion); err != nil {
			return err
		}
	}

	return e.writeRecord(ctx, ns, domain.StagePending, record)
}

// SaveForPolling stages a query payload for an inbound pipeline. The key is
// the submission time because poll payloads have no natural identity.
func (e *Engine) SaveForPolling(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error {
	if !objectType.Valid() {
		return apperrors.Wrap(apperrors.ErrInvalidInput, fmt.Sprintf("unknown object type %q", objectType))
	}

	data, err := codec.Encode(payloads)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%s_%d%s", ns.StagePrefix(domain.StagePending), objectType.Plural(), time.Now().Unix(), domain.FileExt)
	_, err = e.store.Write(ctx, key, data)
	return err
}

// ProcessWaitingRecords drains inbound poll payloads. Inbound pipelines have
// no ready stage; consumed files go straight to processed.
func (e *Engine) ProcessWaitingRecords(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) ([]DispatchItem, error) {
	prefix := ns.StagePrefix(domain.StagePending) + objectType.Plural() + "_"
	keys, err := e.store.List(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var items []DispatchItem
	for _, key := range keys {
		data, err := e.store.Read(ctx, key)
		if err != nil {
			e.logSkippedKey("read", key, err)
			continue
		}
		if _, err := e.store.Move(ctx, key, ns.StagePrefix(domain.StageProcessed)+fileName(key)); err != nil {
			e.logSkippedKey("move", key, err)
			continue
		}
		payloads, err := codec.Decode(data)
		if err != nil {
			e.logSkippedKey("decode", key, err)
			continue
		}
		for _, payload := range payloads {
			items = append(items, DispatchItem{ObjectType: objectType, Payload: payload})
		}
	}
	return items, nil
}

// PromoteTwoPhasePending relocates every two-phase-pending record into the
// pending stage unchanged. Records that vanished since listing are skipped;
// the next sweep settles them.
func (e *Engine) PromoteTwoPhasePending(ctx context.Context, ns domain.Namespace) error {
	keys, err := e.store.List(ctx, ns.StagePrefix(domain.StageTwoPhasePending))
	if err != nil {
		return err
	}

	for _, key := range keys {
		if _, err := e.store.Move(ctx, key, ns.StagePrefix(domain.StagePending)+fileName(key)); err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				continue
			}
			return err
		}
	}
	return nil
}

// ListPendingForDispatch relocates pending records to ready and returns their
// decoded payloads. Relocation happens before the caller builds requests so a
// crash mid-round parks records in ready instead of dispatching them twice.
func (e *Engine) ListPendingForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error) {
	keys, err := e.store.List(ctx, ns.StagePrefix(domain.StagePending))
	if err != nil {
		return nil, err
	}

	var items []DispatchItem
	for _, key := range keys {
		parsed, ok := domain.ParseRecordKey(key)
		if !ok {
			e.log().Warn("skipping unparseable pending key", slog.String("key", key))
			continue
		}

		data, err := e.store.Read(ctx, key)
		if err != nil {
			e.logSkippedKey("read", key, err)
			continue
		}
		if _, err := e.store.Move(ctx, key, ns.StagePrefix(domain.StageReady)+fileName(key)); err != nil {
			e.logSkippedKey("move", key, err)
			continue
		}
		payloads, err := codec.Decode(data)
		if err != nil {
			e.logSkippedKey("decode", key, err)
			continue
		}
		for _, payload := range payloads {
			items = append(items, DispatchItem{ObjectType: parsed.ObjectType, Payload: payload})
		}
	}
	return items, nil
}

// ListReadyForDispatch returns the decoded ready-stage records, carrying any
// destination ids encoded in their keys. Notification records never qualify.
func (e *Engine) ListReadyForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error) {
	keys, err := e.store.List(ctx, ns.StagePrefix(domain.StageReady))
	if err != nil {
		return nil, err
	}

	var items []DispatchItem
	for _, key := range keys {
		parsed, ok := domain.ParseRecordKey(key)
		if !ok || parsed.Notification {
			continue
		}

		data, err := e.store.Read(ctx, key)
		if err != nil {
			e.logSkippedKey("read", key, err)
			continue
		}
		payloads, err := codec.Decode(data)
		if err != nil {
			e.logSkippedKey("decode", key, err)
			continue
		}
		for _, payload := range payloads {
			items = append(items, DispatchItem{
				ObjectType:   parsed.ObjectType,
				Payload:      payload,
				ListID:       parsed.ListID,
				EditSequence: parsed.EditSequence,
			})
		}
	}
	return items, nil
}

// UpdateWithDestinationIDs relocates ready-stage records to keys carrying the
// destination-issued identifiers, merging any extra payload data. A record
// absent from the ready stage was already moved or retried; it is reported
// and skipped.
func (e *Engine) UpdateWithDestinationIDs(ctx context.Context, ns domain.Namespace, updates []DestinationIDUpdate) error {
	for _, update := range updates {
		prefix := ns.RecordPrefix(domain.StageReady, update.ObjectType, update.NaturalKey)
		keys, err := e.store.List(ctx, prefix)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			e.log().Warn("no ready record to update",
				slog.String("object_type", string(update.ObjectType)),
				slog.String("natural_key", update.NaturalKey),
			)
			continue
		}

		key := keys[0]
		newKey := prefix + update.ListID + "_" + update.EditSequence + domain.FileExt

		if len(update.Extra) == 0 {
			if _, err := e.store.Move(ctx, key, newKey); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
				return err
			}
			continue
		}

		// Extra data has to land inside the payload, so the record is
		// rewritten instead of moved.
		data, err := e.store.Read(ctx, key)
		if err != nil {
			e.logSkippedKey("read", key, err)
			continue
		}
		payloads, err := codec.Decode(data)
		if err != nil {
			e.logSkippedKey("decode", key, err)
			continue
		}
		for _, payload := range payloads {
			for k, v := range update.Extra {
				payload[k] = v
			}
		}
		merged, err := codec.Encode(payloads)
		if err != nil {
			return err
		}
		if _, err := e.store.Write(ctx, newKey, merged); err != nil {
			return err
		}
		if err := e.store.Delete(ctx, key); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return err
		}
	}
	return nil
}

// Finalize relocates ready-stage records to processed or failed. Processed
// records are additionally duplicated as notifications under the ready stage
// for later pickup. Missing records are logged and the batch continues.
func (e *Engine) Finalize(ctx context.Context, ns domain.Namespace, outcomes Outcomes) error {
	groups := []struct {
		stage  domain.Stage
		status domain.NotificationStatus
		refs   []RecordRef
	}{
		{domain.StageProcessed, domain.NotificationProcessed, outcomes.Processed},
		{domain.StageFailed, domain.NotificationFailed, outcomes.Failed},
	}

	for _, group := range groups {
		for _, ref := range group.refs {
			if err := e.finalizeOne(ctx, ns, group.stage, group.status, ref); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) finalizeOne(ctx context.Context, ns domain.Namespace, stage domain.Stage, status domain.NotificationStatus, ref RecordRef) error {
	// The search prefix includes the destination ids when known; a
	// storage-assigned collision suffix may still follow, so matching is
	// always by prefix rather than exact key.
	prefix := ns.RecordPrefix(domain.StageReady, ref.ObjectType, ref.NaturalKey)
	if ref.HasDestinationID() {
		prefix += ref.ListID + "_"
	}

	keys, err := e.store.List(ctx, prefix)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		e.log().Warn("no ready record to finalize",
			slog.String("object_type", string(ref.ObjectType)),
			slog.String("natural_key", ref.NaturalKey),
			slog.String("status", string(status)),
		)
		return nil
	}

	for _, key := range keys {
		moved, err := e.store.Move(ctx, key, ns.StagePrefix(stage)+fileName(key))
		if err != nil {
			if apperrors.Is(err, apperrors.ErrNotFound) {
				e.logSkippedKey("move", key, err)
				continue
			}
			return err
		}

		if status == domain.NotificationProcessed {
			notificationKey := ns.NotificationKey(status, ref.ObjectType, ref.NaturalKey)
			if _, err := e.store.Copy(ctx, moved, notificationKey); err != nil {
				return err
			}
		}
	}
	return nil
}

// CollectNotifications drains notifications for objectType, grouped by status
// and message. Payment notifications match an order filter because payments
// derive from orders. Each notification is consumed exactly once: it moves to
// the processed stage as part of the read.
func (e *Engine) CollectNotifications(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) (domain.NotificationGroups, error) {
	groups := domain.NewNotificationGroups()

	keys, err := e.store.List(ctx, ns.NotificationPrefix())
	if err != nil {
		return groups, err
	}

	for _, key := range keys {
		parsed, ok := domain.ParseRecordKey(key)
		if !ok || !parsed.Notification {
			continue
		}
		if parsed.ObjectType != objectType && !(objectType == domain.ObjectTypeOrder && parsed.ObjectType == domain.ObjectTypePayment) {
			continue
		}

		data, err := e.store.Read(ctx, key)
		if err != nil {
			e.logSkippedKey("read", key, err)
			continue
		}
		payload, err := codec.DecodeOne(data)
		if err != nil {
			e.logSkippedKey("decode", key, err)
			continue
		}

		message := domain.DefaultSuccessMessage
		if m, ok := payload["message"].(string); ok && m != "" {
			message = m
		}
		groups.Add(parsed.Status, message, parsed.NaturalKey)

		if _, err := e.store.Move(ctx, key, ns.StagePrefix(domain.StageProcessed)+fileName(key)); err != nil && !apperrors.Is(err, apperrors.ErrNotFound) {
			return groups, err
		}
	}
	return groups, nil
}

// RejectWithNotification writes a failed notification directly so validation
// failures surface through the same reconciliation channel as
// destination-reported failures, without ever occupying a pending slot.
func (e *Engine) RejectWithNotification(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payload map[string]any, reason string) error {
	record := domain.Record{ObjectType: objectType, Payload: payload}

	content := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		content[k] = v
	}
	content["message"] = reason

	data, err := codec.EncodeOne(content)
	if err != nil {
		return err
	}
	_, err = e.store.Write(ctx, ns.NotificationKey(domain.NotificationFailed, objectType, record.NaturalKey()), data)
	return err
}

// FailFromSession recovers the snapshot behind sessionID, surfaces the error
// as a failed notification and finalizes the matching ready-stage record as
// failed. Used when an asynchronous reply reports an error for a request that
// only carries its session id.
func (e *Engine) FailFromSession(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, sessionID, message string) error {
	snapshot, err := e.sessions.Load(ctx, ns, sessionID)
	if err != nil {
		return err
	}

	if err := e.RejectWithNotification(ctx, ns, objectType, snapshot, message); err != nil {
		return err
	}

	ref := RecordRef{ObjectType: objectType, NaturalKey: domain.Record{ObjectType: objectType, Payload: snapshot}.NaturalKey()}
	return e.Finalize(ctx, ns, Outcomes{Failed: []RecordRef{ref}})
}

func (e *Engine) writeRecord(ctx context.Context, ns domain.Namespace, stage domain.Stage, record domain.Record) error {
	data, err := codec.EncodeOne(record.Payload)
	if err != nil {
		return err
	}
	key, err := e.store.Write(ctx, ns.RecordKey(stage, record), data)
	if err != nil {
		return err
	}
	e.log().Debug("record staged",
		slog.String("stage", string(stage)),
		slog.String("key", key),
	)
	return nil
}

func (e *Engine) log() *slog.Logger {
	if e.logger != nil {
		return e.logger
	}
	return slog.Default()
}

func (e *Engine) logSkippedKey(operation, key string, err error) {
	e.log().Warn("skipping record",
		slog.String("operation", operation),
		slog.String("key", key),
		slog.Any("error", err),
	)
}

// validateRecord returns a rejection reason, or "" when the record is valid.
func validateRecord(record domain.Record) string {
	key := record.NaturalKey()
	if key == "" {
		return "record has no identity field"
	}

	switch record.ObjectType {
	case domain.ObjectTypeOrder, domain.ObjectTypeReturn:
		// The destination's native reference field rejects longer values.
		if len(key) > domain.MaxDestinationRefLength {
			return fmt.Sprintf("id %q exceeds the destination reference limit of %d characters", key, domain.MaxDestinationRefLength)
		}
	}
	return ""
}

// applyFlow applies namespace-level pre-transformations. Cancellation flows
// force the order status so the destination sees the cancel regardless of
// what the origin sent.
func applyFlow(ns domain.Namespace, objectType domain.ObjectType, payload map[string]any) map[string]any {
	if ns.Flow != domain.FlowCancelOrder || objectType != domain.ObjectTypeOrder {
		return payload
	}
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["status"] = "cancelled"
	return out
}

func fileName(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
