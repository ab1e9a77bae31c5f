package loyalty

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/nefol-pricing/internal/pricing"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// TypeCredit is the asynq task type crediting an order to its customer.
const TypeCredit = "loyalty:credit"

// DefaultDivisor awards one point per ₹10 of order total.
const DefaultDivisor = 10

// CreditPayload is the task body of TypeCredit.
type CreditPayload struct {
	TenantID      string `json:"tenantId"`
	OrderNumber   string `json:"orderNumber"`
	CustomerEmail string `json:"customerEmail"`
	CustomerName  string `json:"customerName,omitempty"`
	Points        int64  `json:"points"`
}

// Points returns floor(total / divisor) with total in major units.
func Points(total pricing.Money, divisor int) int64 {
	if divisor <= 0 {
		divisor = DefaultDivisor
	}
	if total <= 0 {
		return 0
	}
	return int64(total) / (int64(divisor) * 100)
}

// NewCreditTask encodes p as a TypeCredit task.
func NewCreditTask(p CreditPayload) (*asynq.Task, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCredit, body), nil
}

// TaskClient is the subset of *asynq.Client used to enqueue work.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer schedules loyalty credits for committed orders.
type Enqueuer struct {
	Client    TaskClient
	Divisor   int
	Queue     string
	MaxRetry  int
	Retention time.Duration
}

// CreditOrder enqueues the credit of an order for the tenant in ctx. The task
// id is derived from the order number so a repeated call is a no-op.
func (e Enqueuer) CreditOrder(ctx context.Context, orderNumber, email, name string, total pricing.Money) error {
	if e.Client == nil {
		return errors.New("loyalty: task client not configured")
	}
	tenantID, err := tenant.MustFrom(ctx)
	if err != nil {
		return err
	}
	task, err := NewCreditTask(CreditPayload{
		TenantID:      tenantID,
		OrderNumber:   orderNumber,
		CustomerEmail: email,
		CustomerName:  name,
		Points:        Points(total, e.Divisor),
	})
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(TypeCredit + ":" + tenantID + ":" + orderNumber)}
	if e.Queue != "" {
		opts = append(opts, asynq.Queue(e.Queue))
	}
	if e.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(e.MaxRetry))
	}
	if e.Retention > 0 {
		opts = append(opts, asynq.Retention(e.Retention))
	}
	if _, err := e.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("loyalty: enqueue %s: %w", orderNumber, err)
	}
	return nil
}
