package loyalty

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

// Worker processes TypeCredit tasks.
type Worker struct {
	Store  Store
	Logger zerolog.Logger
}

// Register mounts the worker's handlers on mux.
func (w *Worker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCredit, w.ProcessCredit)
}

// ProcessCredit applies one credit. Malformed payloads are not retried.
func (w *Worker) ProcessCredit(ctx context.Context, t *asynq.Task) error {
	var p CreditPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		obs.ObserveLoyaltyCredit("invalid")
		return fmt.Errorf("loyalty: decode payload: %v: %w", err, asynq.SkipRetry)
	}
	if !tenant.Valid(p.TenantID) || p.OrderNumber == "" || p.CustomerEmail == "" {
		obs.ObserveLoyaltyCredit("invalid")
		return fmt.Errorf("loyalty: incomplete payload for order %q: %w", p.OrderNumber, asynq.SkipRetry)
	}
	ctx = tenant.WithTenant(ctx, p.TenantID)
	log := w.Logger.With().Str("tenant", p.TenantID).Str("order_number", p.OrderNumber).Logger()

	credited, err := w.Store.Credit(ctx, p)
	if err != nil {
		obs.ObserveLoyaltyCredit("error")
		log.Error().Err(err).Msg("loyalty credit failed")
		return err
	}
	if !credited {
		obs.ObserveLoyaltyCredit("duplicate")
		log.Info().Msg("loyalty credit already applied")
		return nil
	}
	obs.ObserveLoyaltyCredit("credited")
	log.Info().Int64("points", p.Points).Msg("loyalty credited")
	return nil
}
