package domain

// DefaultSuccessMessage is used when the destination reports a processed
// record without an explicit message.
const DefaultSuccessMessage = "Object successfully sent to the accounting destination"

// NotificationStatus is the terminal outcome encoded in a notification key.
type NotificationStatus string

const (
	NotificationProcessed NotificationStatus = "processed"
	NotificationFailed    NotificationStatus = "failed"
)

// Valid reports whether the status belongs to the closed enumeration.
func (s NotificationStatus) Valid() bool {
	return s == NotificationProcessed || s == NotificationFailed
}

// Notification is a write-once outcome record surfaced back to the origin.
type Notification struct {
	Status     NotificationStatus
	ObjectType ObjectType
	ObjectRef  string
	Message    string
}

// NotificationKey returns the storage key of a notification record. It lives
// under the ready stage until the reconciler consumes it:
// "{stage_prefix}notification_{status}_{type_plural}_{object_ref}_.json".
func (n Namespace) NotificationKey(status NotificationStatus, t ObjectType, objectRef string) string {
	return n.StagePrefix(StageReady) + "notification_" + string(status) + "_" + t.Plural() + "_" + objectRef + "_" + FileExt
}

// NotificationPrefix returns the prefix matching every unconsumed
// notification in the namespace.
func (n Namespace) NotificationPrefix() string {
	return n.StagePrefix(StageReady) + "notification_"
}

// NotificationGroups is the reconciled view handed back to the origin:
// object refs grouped first by status, then by message text.
type NotificationGroups struct {
	Processed map[string][]string `json:"processed"`
	Failed    map[string][]string `json:"failed"`
}

// NewNotificationGroups returns an empty grouping with both buckets present,
// so callers always see the processed and failed keys.
func NewNotificationGroups() NotificationGroups {
	return NotificationGroups{
		Processed: make(map[string][]string),
		Failed:    make(map[string][]string),
	}
}

// Add appends an object ref under the given status and message.
func (g NotificationGroups) Add(status NotificationStatus, message, objectRef string) {
	switch status {
	case NotificationProcessed:
		g.Processed[message] = append(g.Processed[message], objectRef)
	case NotificationFailed:
		g.Failed[message] = append(g.Failed[message], objectRef)
	}
}

// Empty reports whether no refs were accumulated.
func (g NotificationGroups) Empty() bool {
	return len(g.Processed) == 0 && len(g.Failed) == 0
}
