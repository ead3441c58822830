package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// ImportRates upserts a rate snapshot in one transaction.
func (r *RateRepository) ImportRates(ctx context.Context, set domain.RateSet) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin import tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, g := range set.GeneralRates {
		_, err := tx.ExecContext(ctx, `
INSERT INTO general_rates (hs_code, ad_valorem_percent, specific_rate, unit, rate_text, effective_from, expires_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (hs_code, effective_from) DO UPDATE
SET ad_valorem_percent = EXCLUDED.ad_valorem_percent, specific_rate = EXCLUDED.specific_rate,
    unit = EXCLUDED.unit, rate_text = EXCLUDED.rate_text, expires_at = EXCLUDED.expires_at
`, g.Code.String(), nullDecimal(g.AdValorem), nullDecimal(g.SpecificRate), g.Unit, g.RateText, g.EffectiveFrom, nullTime(g.ExpiresAt))
		if err != nil {
			return fmt.Errorf("upsert general rate %s: %w", g.Code, err)
		}
	}

	for _, f := range set.FTARates {
		_, err := tx.ExecContext(ctx, `
INSERT INTO fta_rates (hs_code, country, agreement, preferential_percent, staging_category, effective_from, elimination_date)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (hs_code, country, agreement, effective_from) DO UPDATE
SET preferential_percent = EXCLUDED.preferential_percent, staging_category = EXCLUDED.staging_category,
    elimination_date = EXCLUDED.elimination_date
`, f.Code.String(), f.Country.String(), f.Agreement, f.PreferentialRate.String(), f.StagingCategory, f.EffectiveFrom, nullTime(f.EliminationDate))
		if err != nil {
			return fmt.Errorf("upsert fta rate %s/%s: %w", f.Code, f.Agreement, err)
		}
	}

	for _, d := range set.AntiDumping {
		_, err := tx.ExecContext(ctx, `
INSERT INTO anti_dumping_duties (case_id, hs_code, country, exporter, duty_type, ad_valorem_percent, specific_amount, unit, effective_from, expires_at, active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (case_id, hs_code) DO UPDATE
SET country = EXCLUDED.country, exporter = EXCLUDED.exporter, duty_type = EXCLUDED.duty_type,
    ad_valorem_percent = EXCLUDED.ad_valorem_percent, specific_amount = EXCLUDED.specific_amount,
    unit = EXCLUDED.unit, effective_from = EXCLUDED.effective_from, expires_at = EXCLUDED.expires_at, active = EXCLUDED.active
`, d.CaseID, d.Code.String(), d.Country.String(), d.Exporter, string(d.DutyType), nullDecimal(d.AdValorem), nullDecimal(d.SpecificAmount),
			d.Unit, d.EffectiveFrom, nullTime(d.ExpiresAt), d.Active)
		if err != nil {
			return fmt.Errorf("upsert anti-dumping case %s: %w", d.CaseID, err)
		}
	}

	for _, c := range set.Concessions {
		_, err := tx.ExecContext(ctx, `
INSERT INTO concession_exemptions (concession_number, hs_code, description, effective_from, expires_at, is_current)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (concession_number, hs_code) DO UPDATE
SET description = EXCLUDED.description, effective_from = EXCLUDED.effective_from,
    expires_at = EXCLUDED.expires_at, is_current = EXCLUDED.is_current
`, c.ConcessionNumber, c.Code.String(), c.Description, c.EffectiveFrom, nullTime(c.ExpiresAt), c.Current)
		if err != nil {
			return fmt.Errorf("upsert concession %s: %w", c.ConcessionNumber, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit import tx: %w", err)
	}
	return nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
