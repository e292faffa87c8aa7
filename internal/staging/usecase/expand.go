package usecase

import (
	"github.com/allisson/qbdrelay/internal/staging/domain"
)

// expandDependents synthesizes the records a composite record depends on.
// The destination enforces referential ordering (a customer must exist before
// an order referencing it), so dependents are staged in pending while the
// primary record waits in two_phase_pending for the next promotion sweep.
func expandDependents(objectType domain.ObjectType, payload map[string]any) []domain.Record {
	switch objectType {
	case domain.ObjectTypeOrder:
		var dependents []domain.Record
		if customer := buildCustomer(payload); customer != nil {
			dependents = append(dependents, domain.Record{ObjectType: domain.ObjectTypeCustomer, Payload: customer})
		}
		dependents = append(dependents, buildProducts(payload)...)
		dependents = append(dependents, buildPayments(payload)...)
		return dependents

	case domain.ObjectTypeShipment:
		var dependents []domain.Record
		if customer := buildCustomer(payload); customer != nil {
			dependents = append(dependents, domain.Record{ObjectType: domain.ObjectTypeCustomer, Payload: customer})
		}
		dependents = append(dependents, buildProducts(payload)...)
		if order := buildOrderFromShipment(payload); order != nil {
			dependents = append(dependents, domain.Record{ObjectType: domain.ObjectTypeOrder, Payload: order})
		}
		if payment := buildPaymentFromShipment(payload); payment != nil {
			dependents = append(dependents, domain.Record{ObjectType: domain.ObjectTypePayment, Payload: payment})
		}
		return dependents
	}
	return nil
}

// companionProduct synthesizes the product update staged alongside an
// inventory record, flipping the availability flag the destination does not
// derive on its own.
func companionProduct(record domain.Record) domain.Record {
	return domain.Record{
		ObjectType: domain.ObjectTypeProduct,
		Payload: map[string]any{
			"id":        record.NaturalKey(),
			"is_active": true,
		},
	}
}

// buildCustomer derives the customer a composite record references. The
// customer display name comes from the billing address; its identity is the
// email address.
func buildCustomer(payload map[string]any) map[string]any {
	email, _ := payload["email"].(string)
	if email == "" {
		return nil
	}

	customer := map[string]any{
		"id":    email,
		"email": email,
	}
	if billing, ok := payload["billing_address"].(map[string]any); ok {
		customer["firstname"] = billing["firstname"]
		customer["lastname"] = billing["lastname"]
		customer["billing_address"] = billing
	}
	if shipping, ok := payload["shipping_address"].(map[string]any); ok {
		customer["shipping_address"] = shipping
	}
	return customer
}

// buildProducts derives one product per line item.
func buildProducts(payload map[string]any) []domain.Record {
	items, ok := payload["line_items"].([]any)
	if !ok {
		return nil
	}

	var products []domain.Record
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		productID, _ := item["product_id"].(string)
		if productID == "" {
			continue
		}
		products = append(products, domain.Record{
			ObjectType: domain.ObjectTypeProduct,
			Payload: map[string]any{
				"id":          productID,
				"description": item["description"],
				"price":       item["price"],
			},
		})
	}
	return products
}

// buildPayments derives payment records from the order's payments array.
// Payments without an id inherit the order's so they key consistently.
func buildPayments(payload map[string]any) []domain.Record {
	entries, ok := payload["payments"].([]any)
	if !ok {
		return nil
	}
	orderID, _ := payload["id"].(string)

	var payments []domain.Record
	for _, raw := range entries {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		payment := make(map[string]any, len(entry)+2)
		for k, v := range entry {
			payment[k] = v
		}
		if _, ok := payment["id"]; !ok {
			payment["id"] = orderID
		}
		payment["order_id"] = orderID
		payments = append(payments, domain.Record{ObjectType: domain.ObjectTypePayment, Payload: payment})
	}
	return payments
}

// buildOrderFromShipment derives the order placeholder a shipment settles.
// Discounts ride along as an adjustment so the totals reconcile.
func buildOrderFromShipment(payload map[string]any) map[string]any {
	orderID, _ := payload["order_id"].(string)
	if orderID == "" {
		return nil
	}

	order := map[string]any{
		"id":    orderID,
		"email": payload["email"],
	}
	for _, field := range []string{"placed_on", "billing_address", "shipping_address", "line_items"} {
		if v, ok := payload[field]; ok {
			order[field] = v
		}
	}
	if totals, ok := payload["totals"].(map[string]any); ok {
		order["totals"] = totals
		if discount, ok := totals["discount"]; ok {
			order["adjustments"] = []any{
				map[string]any{"name": "discount", "value": discount},
			}
		}
	}
	return order
}

// buildPaymentFromShipment derives the payment placeholder settling the
// shipment's order.
func buildPaymentFromShipment(payload map[string]any) map[string]any {
	orderID, _ := payload["order_id"].(string)
	if orderID == "" {
		return nil
	}

	payment := map[string]any{
		"id":       orderID,
		"order_id": orderID,
	}
	if totals, ok := payload["totals"].(map[string]any); ok {
		if amount, ok := totals["payment"]; ok {
			payment["amount"] = amount
		} else if amount, ok := totals["order"]; ok {
			payment["amount"] = amount
		}
	}
	return payment
}
