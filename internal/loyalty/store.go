package loyalty

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/nefol-pricing/internal/db"
)

// Store applies credits to the customer ledger.
type Store interface {
	// Credit records the credit and reports false when the order was already credited.
	Credit(ctx context.Context, p CreditPayload) (bool, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	db *pgxpool.Pool
}

// NewPGStore constructs a Postgres-backed ledger.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

func (s *PGStore) Credit(ctx context.Context, p CreditPayload) (bool, error) {
	credited := false
	err := db.WithTx(ctx, s.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO loyalty_ledger (tenant_id, order_number, customer_email, points)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (tenant_id, order_number) DO NOTHING
		`, p.TenantID, p.OrderNumber, p.CustomerEmail, p.Points)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO users (tenant_id, email, name, total_orders, loyalty_points)
			VALUES ($1, $2, $3, 1, $4)
			ON CONFLICT (tenant_id, email) DO UPDATE
			SET total_orders = users.total_orders + 1,
			    loyalty_points = users.loyalty_points + EXCLUDED.loyalty_points,
			    name = CASE WHEN users.name = '' THEN EXCLUDED.name ELSE users.name END
		`, p.TenantID, p.CustomerEmail, p.CustomerName, p.Points); err != nil {
			return err
		}
		credited = true
		return nil
	})
	return credited, err
}
