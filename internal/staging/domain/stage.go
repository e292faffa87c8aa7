package domain

import (
	"regexp"
	"strings"
)

// Stage represents the record's position in the staging lifecycle. A record
// moves monotonically pending -> (two_phase_pending -> pending) -> ready ->
// processed or failed; it never moves backward.
type Stage string

const (
	StagePending         Stage = "pending"
	StageTwoPhasePending Stage = "two_phase_pending"
	StageReady           Stage = "ready"
	StageProcessed       Stage = "processed"
	StageFailed          Stage = "failed"
)

// Valid reports whether the stage belongs to the closed enumeration.
func (s Stage) Valid() bool {
	switch s {
	case StagePending, StageTwoPhasePending, StageReady, StageProcessed, StageFailed:
		return true
	}
	return false
}

// DefaultOrigin is the origin tag used when a namespace does not specify one.
const DefaultOrigin = "primary"

// FlowCancelOrder marks a namespace whose order payloads represent
// cancellations; the engine forces the order status before staging.
const FlowCancelOrder = "cancel_order"

// FileExt is the extension of every encoded record file in the store.
const FileExt = ".json"

// Namespace scopes all storage keys. Origin distinguishes inbound and
// outbound pipelines sharing one connection.
type Namespace struct {
	ConnectionID string
	Origin       string

	// Flow optionally tags the pipeline variant (e.g. FlowCancelOrder).
	Flow string
}

// NewNamespace builds a namespace, applying the default origin when none is
// given. ConnectionID is required and validated by the caller.
func NewNamespace(connectionID, origin string) Namespace {
	if origin == "" {
		origin = DefaultOrigin
	}
	return Namespace{ConnectionID: connectionID, Origin: origin}
}

// StagePrefix returns the folder-like key prefix holding records in the given
// stage: "{connection_id}/{origin}_{stage}/".
func (n Namespace) StagePrefix(stage Stage) string {
	return n.ConnectionID + "/" + n.Origin + "_" + string(stage) + "/"
}

// SessionPrefix returns the key prefix holding session correlation records.
func (n Namespace) SessionPrefix() string {
	return n.ConnectionID + "/" + n.Origin + "_sessions/"
}

// RecordPrefix returns the prefix matching every copy of one logical record
// in a stage, regardless of destination ids or collision suffixes:
// "{stage_prefix}{type_plural}_{natural_key}_".
func (n Namespace) RecordPrefix(stage Stage, t ObjectType, naturalKey string) string {
	return n.StagePrefix(stage) + t.Plural() + "_" + naturalKey + "_"
}

// RecordKey returns the full storage key for a record in a stage. Trailing
// destination id tokens are omitted while the record has none:
// "{prefix}{type_plural}_{natural_key}_{list_id}_{edit_sequence}.json".
func (n Namespace) RecordKey(stage Stage, r Record) string {
	key := n.RecordPrefix(stage, r.ObjectType, r.NaturalKey())
	if r.HasDestinationID() {
		key += r.ListID + "_" + r.EditSequence
	}
	return key + FileExt
}

// ParsedKey is the decoded form of a record storage key.
type ParsedKey struct {
	ObjectType   ObjectType
	NaturalKey   string
	ListID       string
	EditSequence string

	// Notification is set when the key carries the notification_{status}_
	// prefix; Status then holds the encoded outcome.
	Notification bool
	Status       NotificationStatus
}

// collisionSuffix matches the disambiguating token the store appends when a
// same-named write collides, e.g. "orders_123_(1).json".
var collisionSuffix = regexp.MustCompile(`^\(\d+\)$`)

// ParseRecordKey decodes a storage key (or bare file name) back into its
// components. Natural keys must not contain underscores; the key format
// reserves them as separators.
func ParseRecordKey(key string) (ParsedKey, bool) {
	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.TrimSuffix(name, FileExt)

	var parsed ParsedKey
	parts := strings.Split(name, "_")
	if parts[0] == "notification" {
		if len(parts) < 3 {
			return ParsedKey{}, false
		}
		parsed.Notification = true
		parsed.Status = NotificationStatus(parts[1])
		if !parsed.Status.Valid() {
			return ParsedKey{}, false
		}
		parts = parts[2:]
	}
	if len(parts) < 2 {
		return ParsedKey{}, false
	}

	t, ok := ParseObjectTypePlural(parts[0])
	if !ok {
		return ParsedKey{}, false
	}
	parsed.ObjectType = t
	parsed.NaturalKey = parts[1]

	rest := parts[2:]
	// Drop trailing empty token ("orders_123_.json") and collision suffixes.
	for len(rest) > 0 && (rest[len(rest)-1] == "" || collisionSuffix.MatchString(rest[len(rest)-1])) {
		rest = rest[:len(rest)-1]
	}
	if len(rest) > 0 {
		parsed.ListID = rest[0]
	}
	if len(rest) > 1 {
		parsed.EditSequence = rest[1]
	}
	return parsed, true
}
