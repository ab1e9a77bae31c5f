package order

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
)

// Status is the fulfilment state of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// rank orders the forward states. Cancelled sits outside the sequence.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusPaid:
		return 1
	case StatusShipped:
		return 2
	case StatusDelivered:
		return 3
	case StatusCancelled:
		return -1
	}
	return -2
}

// CanTransition reports whether an order in s may move to target. Orders move
// forward only, and may be cancelled until they ship.
func (s Status) CanTransition(target Status) bool {
	if target == StatusCancelled {
		return s == StatusPending || s == StatusPaid
	}
	return s.rank() >= 0 && target.rank() > s.rank()
}

// Order is the immutable pricing snapshot of a checkout plus its status.
type Order struct {
	ID              uuid.UUID          `json:"id"`
	Number          string             `json:"orderNumber"`
	CustomerName    string             `json:"customerName"`
	CustomerEmail   string             `json:"customerEmail"`
	ShippingAddress json.RawMessage    `json:"shippingAddress"`
	Items           []pricing.LineItem `json:"items"`
	Region          string             `json:"region,omitempty"`
	ProductType     string             `json:"productType,omitempty"`
	TaxMode         pricing.TaxMode    `json:"taxMode"`
	DiscountCode    string             `json:"discountCode,omitempty"`
	Subtotal        pricing.Money      `json:"subtotal"`
	DiscountAmount  pricing.Money      `json:"discount"`
	Shipping        pricing.Money      `json:"shipping"`
	Tax             pricing.Money      `json:"tax"`
	Total           pricing.Money      `json:"total"`
	Pricing         pricing.Result     `json:"pricing"`
	Status          Status             `json:"status"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoiceUnpaid    InvoiceStatus = "unpaid"
	InvoiceSent      InvoiceStatus = "sent"
	InvoicePaid      InvoiceStatus = "paid"
	InvoiceOverdue   InvoiceStatus = "overdue"
	InvoiceCancelled InvoiceStatus = "cancelled"
)

// CanTransition reports whether an invoice in s may move to target. Paid and
// cancelled invoices are final.
func (s InvoiceStatus) CanTransition(target InvoiceStatus) bool {
	switch s {
	case InvoiceUnpaid:
		return target == InvoiceSent || target == InvoicePaid || target == InvoiceOverdue || target == InvoiceCancelled
	case InvoiceSent:
		return target == InvoicePaid || target == InvoiceOverdue || target == InvoiceCancelled
	case InvoiceOverdue:
		return target == InvoicePaid || target == InvoiceCancelled
	}
	return false
}

// Invoice is generated alongside every order.
type Invoice struct {
	ID          uuid.UUID     `json:"id"`
	Number      string        `json:"invoiceNumber"`
	OrderID     uuid.UUID     `json:"orderId"`
	OrderNumber string        `json:"orderNumber"`
	Amount      pricing.Money `json:"amount"`
	Status      InvoiceStatus `json:"status"`
	DueDate     time.Time     `json:"dueDate"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// Receipt is returned to the storefront after a successful commit.
type Receipt struct {
	Order   Order   `json:"order"`
	Invoice Invoice `json:"invoice"`
}
