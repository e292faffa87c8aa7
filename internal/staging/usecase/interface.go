// Package usecase implements the staging engine business logic: durable
// record staging, stage transitions, precedence-based dispatch selection and
// notification reconciliation.
package usecase

import (
	"context"

	"github.com/allisson/qbdrelay/internal/staging/domain"
)

// DispatchItem is one decoded record handed to the external request builder.
type DispatchItem struct {
	ObjectType   domain.ObjectType
	Payload      map[string]any
	ListID       string
	EditSequence string
}

// DestinationIDUpdate reattaches destination-issued identifiers to a
// ready-stage record. Extra, when present, is merged into the stored payload.
type DestinationIDUpdate struct {
	ObjectType   domain.ObjectType
	NaturalKey   string
	ListID       string
	EditSequence string
	Extra        map[string]any
}

// RecordRef identifies one ready-stage record in a finalize batch.
type RecordRef struct {
	ObjectType   domain.ObjectType
	NaturalKey   string
	ListID       string
	EditSequence string
}

// HasDestinationID mirrors domain.Record's predicate for refs.
func (r RecordRef) HasDestinationID() bool {
	return r.ListID != ""
}

// Outcomes groups record refs by terminal status as reported by the
// destination.
type Outcomes struct {
	Processed []RecordRef
	Failed    []RecordRef
}

// StagingUseCase defines the staging engine operations. Every batch operation
// processes items independently: one failing or missing record never aborts
// its siblings.
type StagingUseCase interface {
	// Save validates, transforms and stages a batch of payloads in the
	// pending stage, expanding two-phase types into their dependent records.
	Save(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error

	// SaveForPolling stages a query payload for an inbound pipeline, keyed by
	// submission time instead of a natural key.
	SaveForPolling(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payloads []map[string]any) error

	// ProcessWaitingRecords drains inbound poll payloads straight to the
	// processed stage and returns their contents.
	ProcessWaitingRecords(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) ([]DispatchItem, error)

	// PromoteTwoPhasePending relocates every two-phase-pending record to
	// pending. Idempotent: records already promoted are skipped.
	PromoteTwoPhasePending(ctx context.Context, ns domain.Namespace) error

	// ListPendingForDispatch relocates pending records to ready and returns
	// their decoded payloads for the external request builder.
	ListPendingForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error)

	// ListReadyForDispatch returns the decoded ready-stage records together
	// with any destination ids already attached. Notifications are excluded.
	ListReadyForDispatch(ctx context.Context, ns domain.Namespace) ([]DispatchItem, error)

	// UpdateWithDestinationIDs relocates ready-stage records to keys carrying
	// the destination-issued identifiers. Missing records are skipped.
	UpdateWithDestinationIDs(ctx context.Context, ns domain.Namespace, updates []DestinationIDUpdate) error

	// Finalize relocates ready-stage records to their terminal stage and, for
	// processed records, duplicates them as notifications for later pickup.
	Finalize(ctx context.Context, ns domain.Namespace, outcomes Outcomes) error

	// CollectNotifications drains the notifications matching objectType (for
	// orders, payment notifications match too) grouped by status and message.
	// This is a destructive read.
	CollectNotifications(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType) (domain.NotificationGroups, error)

	// RejectWithNotification writes a failed notification directly, bypassing
	// the pending and ready stages.
	RejectWithNotification(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, payload map[string]any, reason string) error

	// FailFromSession recovers the record snapshot behind sessionID, writes a
	// failed notification carrying the error message and finalizes the
	// ready-stage record as failed.
	FailFromSession(ctx context.Context, ns domain.Namespace, objectType domain.ObjectType, sessionID, message string) error
}

// SelectForDispatch filters simultaneously-ready records down to the highest
// populated precedence tier. Tier 1 types (customers, products, adjustments,
// inventories, payments) carry no references and must drain before tier 2
// (orders, returns). Each dispatch round re-evaluates the ready set, so lower
// tiers are served as soon as higher tiers drain.
func SelectForDispatch(items []DispatchItem) []DispatchItem {
	for _, tier := range []int{1, 2} {
		var selected []DispatchItem
		for _, item := range items {
			if item.ObjectType.DispatchTier() == tier {
				selected = append(selected, item)
			}
		}
		if len(selected) > 0 {
			return selected
		}
	}
	return items
}
