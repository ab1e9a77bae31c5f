package events

// Event types published to panel subscribers.
const (
	TopicTaxRateCreated  = "tax_rate_created"
	TopicTaxRateUpdated  = "tax_rate_updated"
	TopicTaxRateDeleted  = "tax_rate_deleted"
	TopicTaxRuleCreated  = "tax_rule_created"
	TopicTaxRuleUpdated  = "tax_rule_updated"
	TopicDiscountCreated = "discount_created"
	TopicOrderCreated    = "order_created"
	TopicOrderUpdated    = "order_updated"
	TopicInvoiceCreated  = "invoice_created"
	TopicInvoiceUpdated  = "invoice_updated"
)

// Rooms subscribers can listen on.
const (
	RoomAdmin = "admin-panel"
	RoomUser  = "user-panel"
)

// DefaultRooms returns every room an event is fanned out to.
func DefaultRooms() []string {
	return []string{RoomAdmin, RoomUser}
}

// ValidRoom reports whether room is one of the known rooms.
func ValidRoom(room string) bool {
	for _, r := range DefaultRooms() {
		if r == room {
			return true
		}
	}
	return false
}
