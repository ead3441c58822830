package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

type rateRepoFake struct {
	general     *domain.GeneralRate
	fta         []domain.FTARate
	antiDumping []domain.AntiDumpingDuty
	exemption   *domain.ConcessionExemption
	err         error
	delay       time.Duration

	mu       sync.Mutex
	calls    int
	lastAD   domain.AntiDumpingQuery
	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (f *rateRepoFake) enter() func() {
	n := f.inFlight.Add(1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *rateRepoFake) FetchGeneralRate(context.Context, domain.ClassificationCode, time.Time) (*domain.GeneralRate, error) {
	defer f.enter()()
	if f.err != nil {
		return nil, f.err
	}
	return f.general, nil
}

func (f *rateRepoFake) FetchFTARates(context.Context, domain.ClassificationCode, domain.CountryCode, time.Time) ([]domain.FTARate, error) {
	defer f.enter()()
	return f.fta, nil
}

func (f *rateRepoFake) FetchAntiDumpingDuties(_ context.Context, q domain.AntiDumpingQuery) ([]domain.AntiDumpingDuty, error) {
	defer f.enter()()
	f.mu.Lock()
	f.lastAD = q
	f.mu.Unlock()
	return f.antiDumping, nil
}

func (f *rateRepoFake) FetchConcessionExemption(context.Context, domain.ClassificationCode, time.Time) (*domain.ConcessionExemption, error) {
	defer f.enter()()
	return f.exemption, nil
}

type observerFake struct {
	mu           sync.Mutex
	calculations int
	failures     int
	batches      int
	batchFailed  int
}

func (o *observerFake) ObserveCalculation(_ *domain.CalculationResult, _ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calculations++
	if err != nil {
		o.failures++
	}
}

func (o *observerFake) ObserveBatch(_ int, failed int, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.batches++
	o.batchFailed += failed
}

var testToday = time.Date(2026, 3, 1, 15, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}

func newTestUseCase(repo *rateRepoFake) *CalculateDutyUseCase {
	return NewCalculateDutyUseCase(repo, CalculateOptions{
		Clock: func() time.Time { return testToday },
	})
}

func generalFivePercent() *domain.GeneralRate {
	return &domain.GeneralRate{
		Code:          "84713000",
		AdValorem:     decPtr("5"),
		EffectiveFrom: day(2020, 1, 1),
	}
}

func baseRequest() domain.CalculationRequest {
	return domain.CalculationRequest{
		Code:         "8471.30.00",
		Country:      "US",
		CustomsValue: dec("1000"),
	}
}

func requireMoney(t *testing.T, name string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(dec(want)) {
		t.Fatalf("%s = %s, want %s", name, got.StringFixed(2), want)
	}
}

func containsLine(lines []string, fragment string) bool {
	for _, l := range lines {
		if strings.Contains(l, fragment) {
			return true
		}
	}
	return false
}

func TestCalculateGeneralOnly(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{general: generalFivePercent()})

	res, err := uc.Calculate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "50")
	requireMoney(t, "duty_inclusive_value", res.DutyInclusiveValue, "1050")
	requireMoney(t, "total_gst", res.TotalGST, "105")
	requireMoney(t, "total_amount", res.TotalAmount, "1155")
	requireMoney(t, "potential_savings", res.PotentialSavings, "0")
	if res.BestRegime != domain.RegimeGeneral {
		t.Fatalf("expected general regime, got %s", res.BestRegime)
	}
	if !res.AsOf.Equal(day(2026, 3, 1)) {
		t.Fatalf("expected as-of defaulted to today, got %s", res.AsOf)
	}
	if res.ValuationBasis != domain.ValuationCIF {
		t.Fatalf("expected CIF default, got %s", res.ValuationBasis)
	}
	if len(res.Components) != 1 || !res.Components[0].Applicable {
		t.Fatalf("expected one applicable general component, got %+v", res.Components)
	}
	if !containsLine(res.Steps, "Total amount: 1050.00 + 105.00 = 1155.00") {
		t.Fatalf("missing total step, got %v", res.Steps)
	}
	if len(res.Warnings) != 0 || len(res.Notes) != 0 {
		t.Fatalf("expected no warnings or notes, got %v %v", res.Warnings, res.Notes)
	}
}

func TestCalculatePrefersFTAAndReportsSavings(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: generalFivePercent(),
		fta: []domain.FTARate{{
			Code:             "84713000",
			Country:          "CN",
			Agreement:        "ChAFTA",
			PreferentialRate: dec("0"),
			EffectiveFrom:    day(2015, 12, 20),
		}},
	})
	req := baseRequest()
	req.Country = "CN"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.BestRegime != domain.RegimeFTA || res.BestReference != "ChAFTA" {
		t.Fatalf("expected ChAFTA, got %s %s", res.BestRegime, res.BestReference)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "0")
	requireMoney(t, "general_total", res.GeneralTotal, "50")
	requireMoney(t, "potential_savings", res.PotentialSavings, "50")
	requireMoney(t, "total_gst", res.TotalGST, "100")
	requireMoney(t, "total_amount", res.TotalAmount, "1100")
	if res.Components[0].Applicable {
		t.Fatalf("general component must not be applicable when FTA wins")
	}
}

func TestCalculateConcessionWinsTieAndAddsNote(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: generalFivePercent(),
		fta: []domain.FTARate{{
			Code: "84713000", Country: "CN", Agreement: "ChAFTA",
			PreferentialRate: dec("0"), EffectiveFrom: day(2015, 12, 20),
		}},
		exemption: &domain.ConcessionExemption{
			ConcessionNumber: "TC 2412345",
			Code:             "84713000",
			EffectiveFrom:    day(2024, 1, 1),
			ExpiresAt:        dayPtr(2026, 4, 1),
			Current:          true,
		},
	})
	req := baseRequest()
	req.Country = "CN"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.BestRegime != domain.RegimeExemption || res.BestReference != "TC 2412345" {
		t.Fatalf("expected concession to win tie, got %s %s", res.BestRegime, res.BestReference)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "0")
	if len(res.Notes) != 1 || !strings.Contains(res.Notes[0], "TC 2412345") || !strings.Contains(res.Notes[0], "in 31 days") {
		t.Fatalf("expected concession note with expiry proximity, got %v", res.Notes)
	}
}

func TestCalculateAntiDumpingIsCumulative(t *testing.T) {
	repo := &rateRepoFake{
		general: generalFivePercent(),
		antiDumping: []domain.AntiDumpingDuty{{
			CaseID:        "ADN 2025/041",
			Code:          "847130",
			Country:       "CN",
			DutyType:      domain.AntiDumpingAdValorem,
			AdValorem:     decPtr("20"),
			EffectiveFrom: day(2025, 1, 1),
			Active:        true,
		}},
	}
	uc := newTestUseCase(repo)
	req := baseRequest()
	req.Country = "CN"
	req.Exporter = "Acme Steel"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "250")
	requireMoney(t, "total_gst", res.TotalGST, "125")
	requireMoney(t, "total_amount", res.TotalAmount, "1375")
	if res.BestRegime != domain.RegimeGeneral {
		t.Fatalf("expected general base regime, got %s", res.BestRegime)
	}
	if len(res.Notes) != 1 || !strings.Contains(res.Notes[0], "ADN 2025/041") {
		t.Fatalf("expected anti-dumping note, got %v", res.Notes)
	}
	if repo.lastAD.Exporter != "Acme Steel" || repo.lastAD.Country != "CN" {
		t.Fatalf("expected exporter and origin passed to lookup, got %+v", repo.lastAD)
	}
}

func TestCalculateSpecificGeneralWithoutQuantityFallsBackToOtherRegimes(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: &domain.GeneralRate{
			Code: "22042100", SpecificRate: decPtr("3.50"), Unit: "litre", EffectiveFrom: day(2020, 1, 1),
		},
		fta: []domain.FTARate{{
			Code: "22042100", Country: "NZ", Agreement: "ANZCERTA",
			PreferentialRate: dec("2"), EffectiveFrom: day(2010, 1, 1),
		}},
	})
	req := baseRequest()
	req.Code = "2204.21.00"
	req.Country = "NZ"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.BestRegime != domain.RegimeFTA {
		t.Fatalf("expected FTA, got %s", res.BestRegime)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "20")
	requireMoney(t, "potential_savings", res.PotentialSavings, "0")
	if res.Components[0].Computed || res.Components[0].Applicable {
		t.Fatalf("specific general rate without quantity must not be computed, got %+v", res.Components[0])
	}
	if !containsLine(res.Warnings, "general duty could not be computed") {
		t.Fatalf("expected warning, got %v", res.Warnings)
	}
}

func TestCalculateOnlyUncomputableGeneralStillReturns(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: &domain.GeneralRate{
			Code: "22042100", SpecificRate: decPtr("3.50"), Unit: "litre", EffectiveFrom: day(2020, 1, 1),
		},
	})
	req := baseRequest()
	req.Code = "22042100"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "0")
	requireMoney(t, "total_amount", res.TotalAmount, "1100")
	if len(res.Warnings) == 0 {
		t.Fatalf("expected warning for uncomputable rate")
	}
}

func TestCalculateNoRateDataWarns(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{})

	res, err := uc.Calculate(context.Background(), baseRequest())
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "total_duty", res.TotalDuty, "0")
	requireMoney(t, "total_gst", res.TotalGST, "100")
	if len(res.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", res.Warnings)
	}
	if !strings.Contains(res.Warnings[0], "no base rate found") || !strings.Contains(res.Warnings[1], "under any regime") {
		t.Fatalf("unexpected warning order: %v", res.Warnings)
	}
}

func TestCalculateEarliestFTAWinsTie(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: generalFivePercent(),
		fta: []domain.FTARate{
			{Code: "84713000", Country: "JP", Agreement: "JAEPA", PreferentialRate: dec("0"), EffectiveFrom: day(2015, 1, 15)},
			{Code: "84713000", Country: "JP", Agreement: "CPTPP", PreferentialRate: dec("0"), EffectiveFrom: day(2018, 12, 30)},
		},
	})
	req := baseRequest()
	req.Country = "JP"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if res.BestReference != "JAEPA" {
		t.Fatalf("expected earliest agreement JAEPA, got %s", res.BestReference)
	}
}

func TestCalculateWarnsNearFTAElimination(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: generalFivePercent(),
		fta: []domain.FTARate{{
			Code: "84713000", Country: "KR", Agreement: "KAFTA", PreferentialRate: dec("1"),
			EffectiveFrom: day(2014, 12, 12), EliminationDate: dayPtr(2026, 4, 15),
		}},
	})
	req := baseRequest()
	req.Country = "KR"

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if !containsLine(res.Warnings, "KAFTA reaches its elimination date 2026-04-15 in 45 days") {
		t.Fatalf("expected elimination warning, got %v", res.Warnings)
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{
		general: generalFivePercent(),
		fta: []domain.FTARate{{
			Code: "84713000", Country: "CN", Agreement: "ChAFTA", PreferentialRate: dec("0"), EffectiveFrom: day(2015, 12, 20),
		}},
	})
	req := baseRequest()
	req.Country = "CN"
	req.AsOf = dayPtr(2026, 1, 10)

	first, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	second, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results:\n%+v\n%+v", first, second)
	}
}

func TestCalculateValidationErrorSkipsLookups(t *testing.T) {
	repo := &rateRepoFake{general: generalFivePercent()}
	uc := newTestUseCase(repo)
	req := baseRequest()
	req.Code = "84"
	req.CustomsValue = dec("0")

	_, err := uc.Calculate(context.Background(), req)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || len(verr.Fields) != 2 {
		t.Fatalf("expected two field errors, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("expected no lookups, got %d", repo.calls)
	}
}

func TestCalculateLookupFailureIsUnavailable(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{err: errors.New("connection refused")})

	_, err := uc.Calculate(context.Background(), baseRequest())
	if !domain.IsKind(err, domain.ErrCalculationUnavailable) {
		t.Fatalf("expected calculation unavailable, got %v", err)
	}
}

func TestCalculateCancelledContext(t *testing.T) {
	repo := &rateRepoFake{general: generalFivePercent()}
	uc := newTestUseCase(repo)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := uc.Calculate(ctx, baseRequest())
	if !domain.IsKind(err, domain.ErrCalculationUnavailable) {
		t.Fatalf("expected calculation unavailable, got %v", err)
	}
	if repo.calls != 0 {
		t.Fatalf("expected no lookups after cancellation, got %d", repo.calls)
	}
}

func TestCalculateBatchKeepsOrderAndIsolatesFailures(t *testing.T) {
	obs := &observerFake{}
	uc := NewCalculateDutyUseCase(&rateRepoFake{general: generalFivePercent()}, CalculateOptions{
		Clock:    func() time.Time { return testToday },
		Observer: obs,
	})
	bad := baseRequest()
	bad.Country = "ZZZZ"
	reqs := []domain.CalculationRequest{baseRequest(), bad, baseRequest()}
	reqs[2].CustomsValue = dec("2000")

	out := uc.CalculateBatch(context.Background(), reqs)
	if len(out) != 3 {
		t.Fatalf("expected 3 results, got %d", len(out))
	}
	for i, item := range out {
		if item.Index != i {
			t.Fatalf("result %d has index %d", i, item.Index)
		}
	}
	if out[1].Err == nil || out[1].Result != nil {
		t.Fatalf("expected second item to fail alone, got %+v", out[1])
	}
	requireMoney(t, "first total_duty", out[0].Result.TotalDuty, "50")
	requireMoney(t, "third total_duty", out[2].Result.TotalDuty, "100")
	if obs.calculations != 3 || obs.failures != 1 || obs.batches != 1 || obs.batchFailed != 1 {
		t.Fatalf("unexpected observer counts: %+v", obs)
	}
}

func TestCalculateBatchRespectsConcurrencyLimit(t *testing.T) {
	repo := &rateRepoFake{general: generalFivePercent(), delay: 5 * time.Millisecond}
	uc := NewCalculateDutyUseCase(repo, CalculateOptions{
		Clock:            func() time.Time { return testToday },
		BatchConcurrency: 2,
	})
	reqs := make([]domain.CalculationRequest, 6)
	for i := range reqs {
		reqs[i] = baseRequest()
	}

	out := uc.CalculateBatch(context.Background(), reqs)
	for _, item := range out {
		if item.Err != nil {
			t.Fatalf("unexpected error: %v", item.Err)
		}
	}
	// Each calculation fans out four lookups.
	if got := repo.maxSeen.Load(); got > 8 {
		t.Fatalf("expected at most 8 concurrent lookups, got %d", got)
	}
}

func TestCalculateRegimeCombinations(t *testing.T) {
	chafta := func(rate string) domain.FTARate {
		return domain.FTARate{
			Code: "84713000", Country: "CN", Agreement: "ChAFTA",
			PreferentialRate: dec(rate), EffectiveFrom: day(2015, 12, 20),
		}
	}
	adCase := func(id, percent string) domain.AntiDumpingDuty {
		return domain.AntiDumpingDuty{
			CaseID: id, Code: "847130", Country: "CN",
			DutyType: domain.AntiDumpingAdValorem, AdValorem: decPtr(percent),
			EffectiveFrom: day(2025, 1, 1), Active: true,
		}
	}
	openConcession := &domain.ConcessionExemption{
		ConcessionNumber: "TC 2412345", Code: "84713000", EffectiveFrom: day(2024, 1, 1), Current: true,
	}

	tests := []struct {
		name          string
		repo          *rateRepoFake
		wantRegime    domain.Regime
		wantReference string
		wantDuty      string
		wantGeneral   string
		wantSavings   string
		wantNotes     int
		wantStep      string
		wantWarning   string
	}{
		{
			name:          "missing general rate lets FTA win",
			repo:          &rateRepoFake{fta: []domain.FTARate{chafta("5")}},
			wantRegime:    domain.RegimeFTA,
			wantReference: "ChAFTA",
			wantDuty:      "50",
			wantGeneral:   "0",
			wantSavings:   "0",
			wantStep:      "Best regime: FTA (ChAFTA) with total duty 50.00",
			wantWarning:   "no base rate found for 8471.30.00",
		},
		{
			name:          "missing general rate with anti-dumping keeps FTA base",
			repo:          &rateRepoFake{fta: []domain.FTARate{chafta("5")}, antiDumping: []domain.AntiDumpingDuty{adCase("ADN 2025/041", "20")}},
			wantRegime:    domain.RegimeFTA,
			wantReference: "ChAFTA",
			wantDuty:      "250",
			wantGeneral:   "200",
			wantSavings:   "0",
			wantNotes:     1,
			wantWarning:   "no base rate found",
		},
		{
			name: "concession with anti-dumping saves only the base duty",
			repo: &rateRepoFake{
				general:     generalFivePercent(),
				antiDumping: []domain.AntiDumpingDuty{adCase("ADN 2025/041", "20"), adCase("ADN 2025/077", "3")},
				exemption:   openConcession,
			},
			wantRegime:    domain.RegimeExemption,
			wantReference: "TC 2412345",
			wantDuty:      "230",
			wantGeneral:   "280",
			wantSavings:   "50",
			wantNotes:     3,
			wantStep:      "Total duty: 0.00 + 230.00 anti-dumping = 230.00",
		},
		{
			name: "anti-dumping cases stack on the general rate",
			repo: &rateRepoFake{
				general:     generalFivePercent(),
				antiDumping: []domain.AntiDumpingDuty{adCase("ADN 2025/077", "3"), adCase("ADN 2025/041", "20")},
			},
			wantRegime:    domain.RegimeGeneral,
			wantReference: "84713000",
			wantDuty:      "280",
			wantGeneral:   "280",
			wantSavings:   "0",
			wantNotes:     2,
			wantStep:      "Anti-dumping total: 200.00 + 30.00 = 230.00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := baseRequest()
			req.Country = "CN"
			res, err := newTestUseCase(tt.repo).Calculate(context.Background(), req)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if res.BestRegime != tt.wantRegime || res.BestReference != tt.wantReference {
				t.Fatalf("best = %s %q, want %s %q", res.BestRegime, res.BestReference, tt.wantRegime, tt.wantReference)
			}
			requireMoney(t, "total_duty", res.TotalDuty, tt.wantDuty)
			requireMoney(t, "general_total", res.GeneralTotal, tt.wantGeneral)
			requireMoney(t, "potential_savings", res.PotentialSavings, tt.wantSavings)
			if len(res.Notes) != tt.wantNotes {
				t.Fatalf("expected %d notes, got %v", tt.wantNotes, res.Notes)
			}
			if tt.wantStep != "" && !containsLine(res.Steps, tt.wantStep) {
				t.Fatalf("missing step %q, got %v", tt.wantStep, res.Steps)
			}
			if tt.wantWarning != "" && !containsLine(res.Warnings, tt.wantWarning) {
				t.Fatalf("missing warning %q, got %v", tt.wantWarning, res.Warnings)
			}
			applied := 0
			for _, c := range res.Components {
				if c.Applicable && c.Regime == tt.wantRegime {
					applied++
				}
			}
			if applied != 1 {
				t.Fatalf("expected exactly one applicable %s component, got %+v", tt.wantRegime, res.Components)
			}
		})
	}
}

func TestCalculateRoundsCustomsValueBeforeDerivingTotals(t *testing.T) {
	uc := newTestUseCase(&rateRepoFake{general: generalFivePercent()})
	req := baseRequest()
	req.CustomsValue = dec("1000.005")

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "customs_value", res.CustomsValue, "1000.01")
	requireMoney(t, "total_duty", res.TotalDuty, "50")
	requireMoney(t, "duty_inclusive_value", res.DutyInclusiveValue, "1050.01")
	if !res.DutyInclusiveValue.Equal(res.CustomsValue.Add(res.TotalDuty)) {
		t.Fatalf("duty-inclusive value %s must equal customs value %s plus duty %s",
			res.DutyInclusiveValue, res.CustomsValue, res.TotalDuty)
	}
	if !containsLine(res.Steps, "Duty-inclusive value: 1000.01 + 50.00 = 1050.01") {
		t.Fatalf("missing duty-inclusive step, got %v", res.Steps)
	}
}

func TestCalculateSupportsWholeUnitCurrency(t *testing.T) {
	uc := NewCalculateDutyUseCase(&rateRepoFake{general: generalFivePercent()}, CalculateOptions{
		Clock: func() time.Time { return testToday },
		Settings: domain.CalculationSettings{
			GSTRatePercent:           dec("10"),
			MinorUnits:               0,
			EliminationWarningDays:   90,
			ConcessionExpiryWarnDays: 90,
		},
	})
	req := baseRequest()
	req.CustomsValue = dec("1000.4")

	res, err := uc.Calculate(context.Background(), req)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	requireMoney(t, "customs_value", res.CustomsValue, "1000")
	requireMoney(t, "total_amount", res.TotalAmount, "1155")
	if !containsLine(res.Steps, "Total amount: 1050 + 105 = 1155") {
		t.Fatalf("expected whole-unit formatting, got %v", res.Steps)
	}
}
