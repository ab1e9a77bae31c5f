package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nefol-pricing/internal/obs"
	"github.com/noah-isme/nefol-pricing/internal/tenant"
)

type seedRate struct {
	Name   string
	Kind   string
	Rate   string
	Region string
}

type seedRule struct {
	Name       string
	Conditions []string
	Rates      []string
	Priority   int
}

type seedDiscount struct {
	Name       string
	Code       string
	Kind       string
	Value      string
	MinAmount  int64
	UsageLimit *int
}

var rates = []seedRate{
	{"GST 18%", "percentage", "18", "IN"},
	{"GST 5%", "percentage", "5", "IN"},
	{"CGST 9%", "percentage", "9", "IN"},
	{"SGST 9%", "percentage", "9", "IN"},
	{"Handling Cess", "fixed", "10", "IN"},
}

var rules = []seedRule{
	{"Intra-state cosmetics", []string{"Country: IN", "Product Type: cosmetics"}, []string{"CGST 9%", "SGST 9%"}, 1},
	{"Essentials", []string{"Country: IN", "Product Type: essentials"}, []string{"GST 5%"}, 2},
	{"India default", []string{"Country: IN"}, []string{"GST 18%"}, 10},
}

func intPtr(v int) *int { return &v }

var discounts = []seedDiscount{
	{"Welcome 10%", "WELCOME10", "percentage", "10", 0, nil},
	{"Flat 100 off", "FLAT100", "fixed", "100", 49900, intPtr(500)},
	{"Free shipping", "FREESHIP", "free_shipping", "0", 29900, nil},
}

func main() {
	_ = godotenv.Load()
	logger := obs.NewLogger("console", "info")

	tenantFlag := flag.String("tenant", envOr("TENANT_DEFAULT", "default"), "tenant to seed")
	flag.Parse()

	tenantID := tenant.Normalize(*tenantFlag)
	if !tenant.Valid(tenantID) {
		logger.Fatal().Str("tenant", *tenantFlag).Msg("invalid tenant")
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	log := logger.With().Str("tenant", tenantID).Logger()
	rateIDs, err := seedRates(db, tenantID, log)
	if err != nil {
		log.Fatal().Err(err).Msg("seed tax rates")
	}
	if err := seedRules(db, tenantID, rateIDs, log); err != nil {
		log.Fatal().Err(err).Msg("seed tax rules")
	}
	if err := seedDiscounts(db, tenantID, log); err != nil {
		log.Fatal().Err(err).Msg("seed discounts")
	}
	log.Info().Msg("seeding completed")
}

func seedRates(db *sql.DB, tenantID string, log zerolog.Logger) (map[string]int64, error) {
	ids := make(map[string]int64, len(rates))
	for _, r := range rates {
		var id int64
		err := db.QueryRow(`SELECT id FROM tax_rates WHERE tenant_id = $1 AND name = $2`, tenantID, r.Name).Scan(&id)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = db.QueryRow(`
				INSERT INTO tax_rates (tenant_id, name, kind, rate, region)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id`, tenantID, r.Name, r.Kind, r.Rate, r.Region).Scan(&id)
			if err != nil {
				return nil, err
			}
			log.Info().Str("rate", r.Name).Int64("id", id).Msg("tax rate created")
		case err != nil:
			return nil, err
		}
		ids[r.Name] = id
	}
	return ids, nil
}

func seedRules(db *sql.DB, tenantID string, rateIDs map[string]int64, log zerolog.Logger) error {
	for _, r := range rules {
		var exists bool
		if err := db.QueryRow(`SELECT EXISTS (SELECT 1 FROM tax_rules WHERE tenant_id = $1 AND name = $2)`, tenantID, r.Name).Scan(&exists); err != nil {
			return err
		}
		if exists {
			continue
		}
		ids := make([]int64, 0, len(r.Rates))
		for _, name := range r.Rates {
			ids = append(ids, rateIDs[name])
		}
		if _, err := db.Exec(`
			INSERT INTO tax_rules (tenant_id, name, conditions, tax_rate_ids, priority)
			VALUES ($1, $2, $3, $4, $5)`,
			tenantID, r.Name, pq.Array(r.Conditions), pq.Array(ids), r.Priority); err != nil {
			return err
		}
		log.Info().Str("rule", r.Name).Msg("tax rule created")
	}
	return nil
}

func seedDiscounts(db *sql.DB, tenantID string, log zerolog.Logger) error {
	for _, d := range discounts {
		res, err := db.Exec(`
			INSERT INTO discounts (tenant_id, name, code, kind, value, min_amount, usage_limit)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (tenant_id, code) DO NOTHING`,
			tenantID, d.Name, d.Code, d.Kind, d.Value, d.MinAmount, d.UsageLimit)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n > 0 {
			log.Info().Str("code", d.Code).Msg("discount created")
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
