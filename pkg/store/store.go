package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/schollz/progressbar/v3"

	"crm-insight-engine/pkg/models"
)

const connectTimeout = 12 * time.Second

// Config points a run at a Postgres database. Schema names are restricted
// to identifier characters because they are interpolated into DDL.
type Config struct {
	URL    string
	Schema string
	Tag    string
}

var validSchema = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Seed initializes the schema and stores the snapshot only when no runs
// exist yet. Returns the empty string when seeding was skipped.
func Seed(snapshot models.Snapshot, cfg Config) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, ctx, cancel, err := open(cfg.URL)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer db.Close()

	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	var count int
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s.analysis_runs`, schema)).Scan(&count); err != nil {
		return "", err
	}
	if count > 0 {
		return "", nil
	}

	return storeTx(ctx, db, snapshot, schema, cfg.Tag)
}

// Store persists one snapshot as a new analysis run.
func Store(snapshot models.Snapshot, cfg Config) (string, error) {
	schema, err := sanitizeSchema(cfg.Schema)
	if err != nil {
		return "", err
	}

	db, ctx, cancel, err := open(cfg.URL)
	if err != nil {
		return "", err
	}
	defer cancel()
	defer db.Close()

	if err := ensureSchema(ctx, db, schema); err != nil {
		return "", err
	}

	return storeTx(ctx, db, snapshot, schema, cfg.Tag)
}

func open(url string) (*sql.DB, context.Context, context.CancelFunc, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	if err := db.PingContext(ctx); err != nil {
		cancel()
		db.Close()
		return nil, nil, nil, err
	}
	return db, ctx, cancel, nil
}

func sanitizeSchema(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errors.New("db schema is required")
	}
	if !validSchema.MatchString(value) {
		return "", fmt.Errorf("invalid schema name: %s", value)
	}
	return value, nil
}

func storeTx(ctx context.Context, db *sql.DB, snapshot models.Snapshot, schema string, tag string) (string, error) {
	runID := uuid.New()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	summary := snapshot.Insights.Summary
	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s.analysis_runs (
			id, generated_at, has_data, total_customers, total_revenue,
			average_engagement, churn_rate_percent, upsell_opportunities, run_tag
		) VALUES (
			$1,$2,$3,$4,$5,
			$6,$7,$8,$9
		)`, schema),
		runID,
		snapshot.GeneratedAt,
		snapshot.HasData,
		summary.TotalCustomers,
		summary.TotalRevenue,
		summary.AverageEngagement,
		summary.ChurnRatePercent,
		summary.UpsellOpportunities,
		nullString(tag),
	)
	if err != nil {
		return "", err
	}

	insertSegmentSQL := fmt.Sprintf(`
		INSERT INTO %s.analysis_segments (
			id, run_id, name, customer_count, total_revenue, avg_revenue, avg_engagement
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, schema)
	for _, entry := range snapshot.Segments {
		_, err = tx.ExecContext(ctx, insertSegmentSQL,
			uuid.New(),
			runID,
			entry.Name,
			entry.Count,
			entry.TotalRevenue,
			entry.AvgRevenue,
			entry.AvgEngagement,
		)
		if err != nil {
			return "", err
		}
	}

	insertTrendSQL := fmt.Sprintf(`
		INSERT INTO %s.analysis_monthly_trends (
			id, run_id, period, customer_count, revenue_sum, engagement_average, churn_count
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7
		)`, schema)
	for _, entry := range snapshot.MonthlyTrends {
		_, err = tx.ExecContext(ctx, insertTrendSQL,
			uuid.New(),
			runID,
			entry.Period,
			entry.CustomerCount,
			entry.RevenueSum,
			entry.EngagementAverage,
			entry.ChurnCount,
		)
		if err != nil {
			return "", err
		}
	}

	insertForecastSQL := fmt.Sprintf(`
		INSERT INTO %s.analysis_forecast_points (
			id, run_id, period, actual_revenue, forecast_revenue, confidence
		) VALUES (
			$1,$2,$3,$4,$5,$6
		)`, schema)
	for _, point := range snapshot.Forecast {
		_, err = tx.ExecContext(ctx, insertForecastSQL,
			uuid.New(),
			runID,
			point.Period,
			nullFloat(point.ActualRevenue),
			point.ForecastRevenue,
			point.Confidence,
		)
		if err != nil {
			return "", err
		}
	}

	insertCustomerSQL := fmt.Sprintf(`
		INSERT INTO %s.analysis_customers (
			id, run_id, customer_id, company_name, industry, segment,
			total_spent, engagement_score, churn_probability, upsell_score, risk_level
		) VALUES (
			$1,$2,$3,$4,$5,$6,
			$7,$8,$9,$10,$11
		)`, schema)
	bar := progressbar.Default(int64(len(snapshot.Customers)))
	for _, customer := range snapshot.Customers {
		_, err = tx.ExecContext(ctx, insertCustomerSQL,
			uuid.New(),
			runID,
			customer.ID,
			nullString(customer.CompanyName),
			nullString(customer.Industry),
			customer.Segment,
			customer.TotalSpent,
			customer.EngagementScore,
			customer.ChurnProbability,
			customer.UpsellScore,
			customer.RiskLevel,
		)
		if err != nil {
			return "", err
		}
		_ = bar.Add(1)
	}

	if err = tx.Commit(); err != nil {
		return "", err
	}
	return runID.String(), nil
}

func ensureSchema(ctx context.Context, db *sql.DB, schema string) error {
	if _, err := db.ExecContext(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s`, schema)); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_runs (
			id uuid PRIMARY KEY,
			generated_at timestamptz NOT NULL,
			has_data boolean NOT NULL,
			total_customers integer NOT NULL,
			total_revenue numeric(14,2) NOT NULL,
			average_engagement numeric(6,2) NOT NULL,
			churn_rate_percent numeric(6,2) NOT NULL,
			upsell_opportunities integer NOT NULL,
			run_tag text,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_segments (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			name text NOT NULL,
			customer_count integer NOT NULL,
			total_revenue numeric(14,2) NOT NULL,
			avg_revenue numeric(14,2) NOT NULL,
			avg_engagement numeric(6,2) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_monthly_trends (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			period text NOT NULL,
			customer_count integer NOT NULL,
			revenue_sum numeric(14,2) NOT NULL,
			engagement_average numeric(6,2) NOT NULL,
			churn_count integer NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_forecast_points (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			period text NOT NULL,
			actual_revenue numeric(14,2),
			forecast_revenue numeric(14,2) NOT NULL,
			confidence numeric(4,2) NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.analysis_customers (
			id uuid PRIMARY KEY,
			run_id uuid NOT NULL REFERENCES %s.analysis_runs(id) ON DELETE CASCADE,
			customer_id text NOT NULL,
			company_name text,
			industry text,
			segment text NOT NULL,
			total_spent numeric(14,2) NOT NULL,
			engagement_score integer NOT NULL,
			churn_probability numeric(4,3) NOT NULL,
			upsell_score numeric(4,3) NOT NULL,
			risk_level text NOT NULL,
			created_at timestamptz NOT NULL DEFAULT now()
		)`, schema, schema))
	if err != nil {
		return err
	}

	for _, table := range []string{"analysis_segments", "analysis_monthly_trends", "analysis_forecast_points", "analysis_customers"} {
		_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_%s_run_idx ON %s.%s (run_id)`, schema, table, schema, table))
		if err != nil {
			return err
		}
	}
	_, err = db.ExecContext(ctx, fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_analysis_customers_segment_idx ON %s.analysis_customers (segment)`, schema, schema))
	return err
}

func nullString(value string) sql.NullString {
	if strings.TrimSpace(value) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: value, Valid: true}
}

func nullFloat(value *float64) sql.NullFloat64 {
	if value == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *value, Valid: true}
}
