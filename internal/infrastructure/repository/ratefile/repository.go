package ratefile

import (
	"context"
	"sort"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// Repository serves rates from an in-memory snapshot. It is immutable after construction.
type Repository struct {
	general     map[domain.ClassificationCode][]domain.GeneralRate
	fta         map[domain.ClassificationCode][]domain.FTARate
	antiDumping map[domain.ClassificationCode][]domain.AntiDumpingDuty
	concessions map[domain.ClassificationCode][]domain.ConcessionExemption
	size        int
}

func New(set domain.RateSet) *Repository {
	r := &Repository{
		general:     make(map[domain.ClassificationCode][]domain.GeneralRate),
		fta:         make(map[domain.ClassificationCode][]domain.FTARate),
		antiDumping: make(map[domain.ClassificationCode][]domain.AntiDumpingDuty),
		concessions: make(map[domain.ClassificationCode][]domain.ConcessionExemption),
	}
	for _, g := range set.GeneralRates {
		r.general[g.Code] = append(r.general[g.Code], g)
	}
	for _, f := range set.FTARates {
		r.fta[f.Code] = append(r.fta[f.Code], f)
	}
	for _, d := range set.AntiDumping {
		r.antiDumping[d.Code] = append(r.antiDumping[d.Code], d)
	}
	for _, c := range set.Concessions {
		r.concessions[c.Code] = append(r.concessions[c.Code], c)
	}
	for _, rows := range r.general {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].EffectiveFrom.After(rows[j].EffectiveFrom) })
	}
	for _, rows := range r.concessions {
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].EffectiveFrom.After(rows[j].EffectiveFrom) })
	}
	r.size = len(set.GeneralRates) + len(set.FTARates) + len(set.AntiDumping) + len(set.Concessions)
	return r
}

func Open(path string) (*Repository, error) {
	set, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(set), nil
}

// Len reports the number of rate records held.
func (r *Repository) Len() int { return r.size }

func (r *Repository) FetchGeneralRate(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.GeneralRate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, c := range code.Lineage() {
		for _, rate := range r.general[c] {
			if domain.IsEffective(rate, asOf) {
				return &rate, nil
			}
		}
	}
	return nil, nil
}

func (r *Repository) FetchFTARates(ctx context.Context, code domain.ClassificationCode, country domain.CountryCode, asOf time.Time) ([]domain.FTARate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.FTARate
	for _, c := range code.Lineage() {
		for _, rate := range r.fta[c] {
			if rate.Country == country && domain.IsEffective(rate, asOf) {
				out = append(out, rate)
			}
		}
	}
	return domain.MostSpecificFTA(out), nil
}

func (r *Repository) FetchAntiDumpingDuties(ctx context.Context, q domain.AntiDumpingQuery) ([]domain.AntiDumpingDuty, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []domain.AntiDumpingDuty
	for _, c := range q.Code.Lineage() {
		for _, d := range r.antiDumping[c] {
			if domain.IsEffective(d, q.AsOf) && d.AppliesTo(q.Country, q.Exporter) {
				out = append(out, d)
			}
		}
	}
	return domain.DistinctAntiDumping(out), nil
}

func (r *Repository) FetchConcessionExemption(ctx context.Context, code domain.ClassificationCode, asOf time.Time) (*domain.ConcessionExemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, c := range code.Lineage() {
		for _, e := range r.concessions[c] {
			if domain.IsEffective(e, asOf) {
				return &e, nil
			}
		}
	}
	return nil, nil
}
