package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/infrastructure/resilience"
)

// RateRepository reads tariff tables from postgres. Lookups match the code and its 8/6/4 digit ancestors.
type RateRepository struct {
	db       *sql.DB
	executor *resilience.Executor
}

func NewRateRepository(db *sql.DB, executor *resilience.Executor) *RateRepository {
	return &RateRepository{db: db, executor: executor}
}

func (r *RateRepository) EnsureSchema(ctx context.Context) error {
	return EnsureSchema(ctx, r.db)
}

func run[T any](ctx context.Context, r *RateRepository, operation string, fn func(context.Context) (T, error)) (T, error) {
	var (
		out T
		err error
	)
	if r.executor != nil {
		out, err = resilience.Call(ctx, r.executor, "postgres."+operation, fn, classifyPostgresError)
	} else {
		out, err = fn(ctx)
	}
	if err != nil {
		return out, wrapTemporaryIfNeeded("postgres "+operation, err)
	}
	return out, nil
}

func lineageArg(code domain.ClassificationCode) string {
	lineage := code.Lineage()
	parts := make([]string, len(lineage))
	for i, c := range lineage {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}

const generalRateQuery = `
SELECT hs_code, ad_valorem_percent, specific_rate, unit, rate_text, effective_from, expires_at
FROM general_rates
WHERE hs_code = ANY(string_to_array($1, ','))
  AND effective_from <= $2
  AND (expires_at IS NULL OR expires_at >= $2)
ORDER BY length(hs_code) DESC, effective_from DESC
`

func (r *RateRepository) FetchGeneralRate(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.GeneralRate, error) {
	asOf = domain.DateOnly(asOf)
	rates, err := run(ctx, r, "fetch_general_rate", func(ctx context.Context) ([]domain.GeneralRate, error) {
		rows, err := r.db.QueryContext(ctx, generalRateQuery, lineageArg(code), asOf)
		if err != nil {
			return nil, fmt.Errorf("query general rates: %w", err)
		}
		defer rows.Close()

		var out []domain.GeneralRate
		for rows.Next() {
			var (
				rate      domain.GeneralRate
				hsCode    string
				adValorem decimal.NullDecimal
				specific  decimal.NullDecimal
				expiresAt sql.NullTime
			)
			if err := rows.Scan(&hsCode, &adValorem, &specific, &rate.Unit, &rate.RateText, &rate.EffectiveFrom, &expiresAt); err != nil {
				return nil, fmt.Errorf("scan general rate: %w", err)
			}
			rate.Code = domain.ClassificationCode(hsCode)
			rate.AdValorem = decimalPtr(adValorem)
			rate.SpecificRate = decimalPtr(specific)
			rate.ExpiresAt = timePtr(expiresAt)
			out = append(out, rate)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate general rates: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	for _, rate := range rates {
		if domain.IsEffective(rate, asOf) {
			return &rate, nil
		}
	}
	return nil, nil
}

const ftaRateQuery = `
SELECT hs_code, country, agreement, preferential_percent, staging_category, effective_from, elimination_date
FROM fta_rates
WHERE hs_code = ANY(string_to_array($1, ','))
  AND country = $2
  AND effective_from <= $3
  AND (elimination_date IS NULL OR elimination_date >= $3)
ORDER BY agreement, length(hs_code) DESC
`

func (r *RateRepository) FetchFTARates(ctx context.Context, code domain.ClassificationCode, country domain.CountryCode, asOf time.Time) ([]domain.FTARate, error) {
	asOf = domain.DateOnly(asOf)
	rates, err := run(ctx, r, "fetch_fta_rates", func(ctx context.Context) ([]domain.FTARate, error) {
		rows, err := r.db.QueryContext(ctx, ftaRateQuery, lineageArg(code), country.String(), asOf)
		if err != nil {
			return nil, fmt.Errorf("query fta rates: %w", err)
		}
		defer rows.Close()

		var out []domain.FTARate
		for rows.Next() {
			var (
				rate        domain.FTARate
				hsCode      string
				countryCode string
				elimination sql.NullTime
			)
			if err := rows.Scan(&hsCode, &countryCode, &rate.Agreement, &rate.PreferentialRate, &rate.StagingCategory, &rate.EffectiveFrom, &elimination); err != nil {
				return nil, fmt.Errorf("scan fta rate: %w", err)
			}
			rate.Code = domain.ClassificationCode(hsCode)
			rate.Country = domain.CountryCode(countryCode)
			rate.EliminationDate = timePtr(elimination)
			out = append(out, rate)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate fta rates: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	effective := rates[:0]
	for _, rate := range rates {
		if domain.IsEffective(rate, asOf) {
			effective = append(effective, rate)
		}
	}
	return domain.MostSpecificFTA(effective), nil
}

const antiDumpingQuery = `
SELECT case_id, hs_code, country, exporter, duty_type, ad_valorem_percent, specific_amount, unit, effective_from, expires_at, active
FROM anti_dumping_duties
WHERE hs_code = ANY(string_to_array($1, ','))
  AND active
  AND effective_from <= $2
  AND (expires_at IS NULL OR expires_at >= $2)
ORDER BY case_id, length(hs_code) DESC
`

func (r *RateRepository) FetchAntiDumpingDuties(ctx context.Context, q domain.AntiDumpingQuery) ([]domain.AntiDumpingDuty, error) {
	asOf := domain.DateOnly(q.AsOf)
	duties, err := run(ctx, r, "fetch_anti_dumping", func(ctx context.Context) ([]domain.AntiDumpingDuty, error) {
		rows, err := r.db.QueryContext(ctx, antiDumpingQuery, lineageArg(q.Code), asOf)
		if err != nil {
			return nil, fmt.Errorf("query anti-dumping duties: %w", err)
		}
		defer rows.Close()

		var out []domain.AntiDumpingDuty
		for rows.Next() {
			var (
				d         domain.AntiDumpingDuty
				hsCode    string
				country   string
				dutyType  string
				adValorem decimal.NullDecimal
				specific  decimal.NullDecimal
				expiresAt sql.NullTime
			)
			if err := rows.Scan(&d.CaseID, &hsCode, &country, &d.Exporter, &dutyType, &adValorem, &specific, &d.Unit, &d.EffectiveFrom, &expiresAt, &d.Active); err != nil {
				return nil, fmt.Errorf("scan anti-dumping duty: %w", err)
			}
			d.Code = domain.ClassificationCode(hsCode)
			d.Country = domain.CountryCode(country)
			d.DutyType = domain.AntiDumpingType(dutyType)
			d.AdValorem = decimalPtr(adValorem)
			d.SpecificAmount = decimalPtr(specific)
			d.ExpiresAt = timePtr(expiresAt)
			out = append(out, d)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate anti-dumping duties: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	matching := duties[:0]
	for _, d := range duties {
		if domain.IsEffective(d, asOf) && d.AppliesTo(q.Country, q.Exporter) {
			matching = append(matching, d)
		}
	}
	return domain.DistinctAntiDumping(matching), nil
}

const concessionQuery = `
SELECT concession_number, hs_code, description, effective_from, expires_at, is_current
FROM concession_exemptions
WHERE hs_code = ANY(string_to_array($1, ','))
  AND is_current
  AND effective_from <= $2
  AND (expires_at IS NULL OR expires_at >= $2)
ORDER BY length(hs_code) DESC, effective_from DESC
`

func (r *RateRepository) FetchConcessionExemption(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.ConcessionExemption, error) {
	asOf = domain.DateOnly(asOf)
	exemptions, err := run(ctx, r, "fetch_concession", func(ctx context.Context) ([]domain.ConcessionExemption, error) {
		rows, err := r.db.QueryContext(ctx, concessionQuery, lineageArg(code), asOf)
		if err != nil {
			return nil, fmt.Errorf("query concessions: %w", err)
		}
		defer rows.Close()

		var out []domain.ConcessionExemption
		for rows.Next() {
			var (
				e         domain.ConcessionExemption
				hsCode    string
				expiresAt sql.NullTime
			)
			if err := rows.Scan(&e.ConcessionNumber, &hsCode, &e.Description, &e.EffectiveFrom, &expiresAt, &e.Current); err != nil {
				return nil, fmt.Errorf("scan concession: %w", err)
			}
			e.Code = domain.ClassificationCode(hsCode)
			e.ExpiresAt = timePtr(expiresAt)
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate concessions: %w", err)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	for _, e := range exemptions {
		if domain.IsEffective(e, asOf) {
			return &e, nil
		}
	}
	return nil, nil
}

func decimalPtr(v decimal.NullDecimal) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d := v.Decimal
	return &d
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := domain.DateOnly(v.Time)
	return &t
}
