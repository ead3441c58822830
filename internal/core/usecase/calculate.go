package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/duty"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
)

const defaultBatchConcurrency = 8

type CalculateOptions struct {
	Settings         domain.CalculationSettings
	BatchConcurrency int
	Clock            func() time.Time
	Observer         ports.CalculationObserver
	Logger           *slog.Logger
}

// CalculateDutyUseCase resolves every duty regime for a shipment and selects the cheapest lawful one.
// It holds no per-request state and is safe for concurrent use.
type CalculateDutyUseCase struct {
	repo       ports.RateRepository
	settings   domain.CalculationSettings
	batchLimit int
	now        func() time.Time
	observer   ports.CalculationObserver
	logger     *slog.Logger
}

func NewCalculateDutyUseCase(repo ports.RateRepository, opts CalculateOptions) *CalculateDutyUseCase {
	settings := opts.Settings
	if settings == (domain.CalculationSettings{}) {
		settings = domain.DefaultCalculationSettings()
	}
	if opts.BatchConcurrency <= 0 {
		opts.BatchConcurrency = defaultBatchConcurrency
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &CalculateDutyUseCase{
		repo:       repo,
		settings:   settings.Normalize(),
		batchLimit: opts.BatchConcurrency,
		now:        opts.Clock,
		observer:   opts.Observer,
		logger:     opts.Logger,
	}
}

func (uc *CalculateDutyUseCase) Calculate(ctx context.Context, req domain.CalculationRequest) (*domain.CalculationResult, error) {
	start := time.Now()
	result, err := uc.calculate(ctx, req)
	if uc.observer != nil {
		uc.observer.ObserveCalculation(result, time.Since(start), err)
	}
	return result, err
}

func (uc *CalculateDutyUseCase) calculate(ctx context.Context, req domain.CalculationRequest) (*domain.CalculationResult, error) {
	input, err := req.ValidateFor(uc.now(), uc.settings)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, domain.WrapError(domain.ErrCalculationUnavailable, "calculate", err)
	}

	data, err := uc.gather(ctx, input)
	if err != nil {
		uc.logger.Warn("rate_lookup_failed",
			"hs_code", input.Code.String(),
			"country", input.Country.String(),
			"as_of", input.AsOf.Format(time.DateOnly),
			"error", err,
		)
		return nil, domain.WrapError(domain.ErrCalculationUnavailable, "gather rates", err)
	}

	sel := selectBest(input, data, uc.settings)
	return assembleResult(input, sel, uc.settings), nil
}

type rateData struct {
	general     *domain.GeneralRate
	fta         []domain.FTARate
	antiDumping []domain.AntiDumpingDuty
	exemption   *domain.ConcessionExemption
}

func (d rateData) empty() bool {
	return d.general == nil && len(d.fta) == 0 && len(d.antiDumping) == 0 && d.exemption == nil
}

// gather fans the four independent lookups out and joins before any computation.
func (uc *CalculateDutyUseCase) gather(ctx context.Context, in domain.ValidatedRequest) (rateData, error) {
	var data rateData
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rate, err := uc.repo.FetchGeneralRate(gctx, in.Code, in.AsOf)
		if err != nil {
			return fmt.Errorf("fetch general rate: %w", err)
		}
		data.general = rate
		return nil
	})
	g.Go(func() error {
		rates, err := uc.repo.FetchFTARates(gctx, in.Code, in.Country, in.AsOf)
		if err != nil {
			return fmt.Errorf("fetch fta rates: %w", err)
		}
		data.fta = rates
		return nil
	})
	g.Go(func() error {
		duties, err := uc.repo.FetchAntiDumpingDuties(gctx, domain.AntiDumpingQuery{
			Code:     in.Code,
			Country:  in.Country,
			Exporter: in.Exporter,
			AsOf:     in.AsOf,
		})
		if err != nil {
			return fmt.Errorf("fetch anti-dumping duties: %w", err)
		}
		data.antiDumping = duties
		return nil
	})
	g.Go(func() error {
		exemption, err := uc.repo.FetchConcessionExemption(gctx, in.Code, in.AsOf)
		if err != nil {
			return fmt.Errorf("fetch concession exemption: %w", err)
		}
		data.exemption = exemption
		return nil
	})

	if err := g.Wait(); err != nil {
		return rateData{}, err
	}
	return data, nil
}

const (
	rankExemption = iota
	rankFTA
	rankGeneral
)

type candidate struct {
	regime        domain.Regime
	reference     string
	component     int
	base          decimal.Decimal
	total         decimal.Decimal
	rank          int
	effectiveFrom time.Time
}

// beats applies the lowest-total rule, breaking ties by exemption, earliest FTA, then general.
func (c candidate) beats(other candidate) bool {
	if cmp := c.total.Cmp(other.total); cmp != 0 {
		return cmp < 0
	}
	if c.rank != other.rank {
		return c.rank < other.rank
	}
	if !c.effectiveFrom.Equal(other.effectiveFrom) {
		return c.effectiveFrom.Before(other.effectiveFrom)
	}
	return c.reference < other.reference
}

type selection struct {
	components       []domain.DutyComponent
	steps            []string
	warnings         []string
	candidates       []candidate
	best             candidate
	antiDumpingTotal decimal.Decimal
	generalTotal     decimal.Decimal
	savings          decimal.Decimal
	ftaRates         []domain.FTARate
	exemption        *domain.ConcessionExemption
	noData           bool
}

func selectBest(in domain.ValidatedRequest, data rateData, settings domain.CalculationSettings) selection {
	minor := settings.MinorUnits
	sel := selection{
		components:       make([]domain.DutyComponent, 0, 2+len(data.fta)+len(data.antiDumping)),
		antiDumpingTotal: decimal.Zero,
		noData:           data.empty(),
	}

	add := func(c duty.Computation) int {
		sel.components = append(sel.components, c.Component)
		sel.steps = append(sel.steps, c.Steps...)
		return len(sel.components) - 1
	}

	// Compute
	generalIdx := -1
	if data.general != nil {
		generalIdx = add(duty.Compute(*data.general, in.CustomsValue, in.Quantity, settings))
	} else {
		sel.warnings = append(sel.warnings, fmt.Sprintf("no base rate found for %s; general duty treated as zero", in.Code.Dotted()))
	}

	ftaRates := domain.MostSpecificFTA(data.fta)
	ftaIdx := make([]int, len(ftaRates))
	for i, rate := range ftaRates {
		ftaIdx[i] = add(duty.Compute(rate, in.CustomsValue, in.Quantity, settings))
	}
	sel.ftaRates = ftaRates

	antiDumping := domain.DistinctAntiDumping(data.antiDumping)
	var adParts []string
	for _, adCase := range antiDumping {
		idx := add(duty.Compute(adCase, in.CustomsValue, in.Quantity, settings))
		comp := &sel.components[idx]
		if !comp.Computed {
			sel.warnings = append(sel.warnings, fmt.Sprintf("anti-dumping case %s not applied: %s", adCase.CaseID, comp.Note))
			continue
		}
		// Remedial duties are cumulative with whichever base regime wins.
		comp.Applicable = true
		sel.antiDumpingTotal = sel.antiDumpingTotal.Add(comp.Amount)
		adParts = append(adParts, duty.FormatMoney(comp.Amount, minor))
	}
	if len(adParts) > 1 {
		sel.steps = append(sel.steps, fmt.Sprintf("Anti-dumping total: %s = %s",
			strings.Join(adParts, " + "), duty.FormatMoney(sel.antiDumpingTotal, minor)))
	}

	exemptionIdx := -1
	if data.exemption != nil {
		exemptionIdx = add(duty.Compute(*data.exemption, in.CustomsValue, in.Quantity, settings))
		sel.exemption = data.exemption
	}

	// SelectBest
	withAD := func(c candidate) candidate {
		c.total = c.base.Add(sel.antiDumpingTotal)
		return c
	}

	generalCandidate := withAD(candidate{regime: domain.RegimeGeneral, component: generalIdx, base: decimal.Zero, rank: rankGeneral})
	// A missing base rate only sets the savings baseline; it never competes as a zero-duty regime.
	generalUsable := generalIdx >= 0
	if generalIdx >= 0 {
		comp := sel.components[generalIdx]
		generalCandidate.reference = comp.Reference
		generalCandidate.effectiveFrom = comp.EffectiveFrom
		if comp.Computed {
			generalCandidate = withAD(candidate{
				regime:        domain.RegimeGeneral,
				reference:     comp.Reference,
				component:     generalIdx,
				base:          comp.Amount,
				rank:          rankGeneral,
				effectiveFrom: comp.EffectiveFrom,
			})
		} else {
			generalUsable = false
			sel.warnings = append(sel.warnings, "general duty could not be computed: "+comp.Note)
		}
	}
	sel.generalTotal = generalCandidate.total
	if generalUsable {
		sel.candidates = append(sel.candidates, generalCandidate)
	}

	for i, rate := range ftaRates {
		comp := sel.components[ftaIdx[i]]
		if !comp.Computed {
			sel.warnings = append(sel.warnings, fmt.Sprintf("FTA rate under %s could not be computed: %s", rate.Agreement, comp.Note))
			continue
		}
		sel.candidates = append(sel.candidates, withAD(candidate{
			regime:        domain.RegimeFTA,
			reference:     rate.Agreement,
			component:     ftaIdx[i],
			base:          comp.Amount,
			rank:          rankFTA,
			effectiveFrom: rate.EffectiveFrom,
		}))
	}

	if exemptionIdx >= 0 {
		sel.candidates = append(sel.candidates, withAD(candidate{
			regime:        domain.RegimeExemption,
			reference:     data.exemption.ConcessionNumber,
			component:     exemptionIdx,
			base:          decimal.Zero,
			rank:          rankExemption,
			effectiveFrom: data.exemption.EffectiveFrom,
		}))
	}

	if len(sel.candidates) == 0 {
		// Only an uncomputable general rate exists; fall back to a zero base so a result is still produced.
		fallback := generalCandidate
		fallback.component = -1
		sel.candidates = append(sel.candidates, fallback)
	}

	best := sel.candidates[0]
	for _, c := range sel.candidates[1:] {
		if c.beats(best) {
			best = c
		}
	}
	if best.component >= 0 {
		sel.components[best.component].Applicable = true
	}
	sel.best = best

	for _, c := range sel.candidates {
		sel.steps = append(sel.steps, fmt.Sprintf("Candidate %s: %s + %s anti-dumping = %s",
			candidateLabel(c), duty.FormatMoney(c.base, minor), duty.FormatMoney(sel.antiDumpingTotal, minor), duty.FormatMoney(c.total, minor)))
	}
	sel.steps = append(sel.steps, fmt.Sprintf("Best regime: %s with total duty %s", candidateLabel(best), duty.FormatMoney(best.total, minor)))

	sel.savings = sel.generalTotal.Sub(best.total)
	if sel.savings.IsNegative() {
		sel.savings = decimal.Zero
	}
	sel.steps = append(sel.steps, fmt.Sprintf("Potential savings: %s - %s = %s",
		duty.FormatMoney(sel.generalTotal, minor), duty.FormatMoney(best.total, minor), duty.FormatMoney(sel.savings, minor)))

	return sel
}

func candidateLabel(c candidate) string {
	switch c.regime {
	case domain.RegimeFTA:
		return "FTA (" + c.reference + ")"
	case domain.RegimeExemption:
		return "concession (" + c.reference + ")"
	default:
		return "general"
	}
}
