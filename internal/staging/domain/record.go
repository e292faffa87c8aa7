// Package domain defines the core staging domain entities and types.
package domain

// ObjectType identifies the kind of business record moving through the relay.
type ObjectType string

const (
	ObjectTypeOrder      ObjectType = "order"
	ObjectTypeCustomer   ObjectType = "customer"
	ObjectTypeProduct    ObjectType = "product"
	ObjectTypeShipment   ObjectType = "shipment"
	ObjectTypePayment    ObjectType = "payment"
	ObjectTypeAdjustment ObjectType = "adjustment"
	ObjectTypeReturn     ObjectType = "return"
	ObjectTypeInventory  ObjectType = "inventory"
)

// MaxDestinationRefLength is the hard limit of the destination's native
// reference field. Order and return keys longer than this are rejected at
// staging time because the destination would refuse them anyway.
const MaxDestinationRefLength = 11

// objectTypePlurals maps each type to the plural token used in storage keys.
// The storage key format is interop-sensitive, so these values must not change.
var objectTypePlurals = map[ObjectType]string{
	ObjectTypeOrder:      "orders",
	ObjectTypeCustomer:   "customers",
	ObjectTypeProduct:    "products",
	ObjectTypeShipment:   "shipments",
	ObjectTypePayment:    "payments",
	ObjectTypeAdjustment: "adjustments",
	ObjectTypeReturn:     "returns",
	ObjectTypeInventory:  "inventories",
}

var pluralObjectTypes = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(objectTypePlurals))
	for t, p := range objectTypePlurals {
		m[p] = t
	}
	return m
}()

// ParseObjectType resolves a singular object type name (e.g. "order").
// Returns false when the name is not part of the closed enumeration.
func ParseObjectType(name string) (ObjectType, bool) {
	t := ObjectType(name)
	_, ok := objectTypePlurals[t]
	return t, ok
}

// ParseObjectTypePlural resolves a plural storage key token (e.g. "orders").
func ParseObjectTypePlural(plural string) (ObjectType, bool) {
	t, ok := pluralObjectTypes[plural]
	return t, ok
}

// Plural returns the plural token used in storage keys.
func (t ObjectType) Plural() string {
	return objectTypePlurals[t]
}

// Valid reports whether the type belongs to the closed enumeration.
func (t ObjectType) Valid() bool {
	_, ok := objectTypePlurals[t]
	return ok
}

// RequiresTwoPhase reports whether records of this type expand into dependent
// records (customer, products, payments) that must be staged ahead of the
// primary record.
func (t ObjectType) RequiresTwoPhase() bool {
	return t == ObjectTypeOrder || t == ObjectTypeShipment
}

// DispatchTier returns the precedence tier for dispatch selection. Tier 1
// types carry no references to other records and must drain before tier 2.
func (t ObjectType) DispatchTier() int {
	switch t {
	case ObjectTypeCustomer, ObjectTypeProduct, ObjectTypeAdjustment, ObjectTypeInventory, ObjectTypePayment:
		return 1
	case ObjectTypeOrder, ObjectTypeReturn:
		return 2
	default:
		return 0
	}
}

// naturalKeyFields maps each type to the payload field carrying its identity.
// Types absent from the map key on the generic "id" field.
var naturalKeyFields = map[ObjectType]string{
	ObjectTypeCustomer:  "email",
	ObjectTypeShipment:  "order_id",
	ObjectTypeInventory: "product_id",
}

// Record is one business entity instance in flight through the staging store.
type Record struct {
	ObjectType ObjectType
	Payload    map[string]any

	// ListID and EditSequence are assigned by the destination once it accepts
	// the record. Both are empty while the record is pending.
	ListID       string
	EditSequence string
}

// NaturalKey derives the identity of the record from its payload using the
// per-type field table. Inventory records fall back to the generic id when no
// product reference is present.
func (r Record) NaturalKey() string {
	field, ok := naturalKeyFields[r.ObjectType]
	if ok {
		if v := stringField(r.Payload, field); v != "" {
			return v
		}
		if r.ObjectType != ObjectTypeInventory {
			return ""
		}
	}
	return stringField(r.Payload, "id")
}

// HasDestinationID reports whether the destination has assigned identifiers to
// this record. A non-empty ListID is the single predicate used everywhere.
func (r Record) HasDestinationID() bool {
	return r.ListID != ""
}

func stringField(payload map[string]any, field string) string {
	if payload == nil {
		return ""
	}
	v, ok := payload[field]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
