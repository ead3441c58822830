package domain

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Regime string

const (
	RegimeGeneral     Regime = "general"
	RegimeFTA         Regime = "fta"
	RegimeAntiDumping Regime = "anti_dumping"
	RegimeExemption   Regime = "exemption"
	RegimeNone        Regime = "none"
)

type DutyBasis string

const (
	BasisAdValorem DutyBasis = "AdValorem"
	BasisSpecific  DutyBasis = "Specific"
	BasisCompound  DutyBasis = "Compound"
	BasisExempt    DutyBasis = "Exempt"
)

// Window is the effective period of a rate record. A nil To means open-ended.
type Window struct {
	From time.Time  `json:"effective_from"`
	To   *time.Time `json:"expires_at,omitempty"`
}

// Contains compares at day granularity in UTC; both bounds are inclusive.
func (w Window) Contains(asOf time.Time) bool {
	day := DateOnly(asOf)
	if !w.From.IsZero() && day.Before(DateOnly(w.From)) {
		return false
	}
	if w.To != nil && day.After(DateOnly(*w.To)) {
		return false
	}
	return true
}

// DaysUntilEnd reports whole days from asOf to the end of the window.
func (w Window) DaysUntilEnd(asOf time.Time) (int, bool) {
	if w.To == nil {
		return 0, false
	}
	return int(DateOnly(*w.To).Sub(DateOnly(asOf)).Hours() / 24), true
}

func DateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// RateRecord is the closed set of duty rate variants.
type RateRecord interface {
	Regime() Regime
	EffectiveWindow() Window
	Reference() string
	rateRecord()
}

// IsEffective is the single validity predicate applied by every rate repository.
func IsEffective(record RateRecord, asOf time.Time) bool {
	if record == nil {
		return false
	}
	switch r := record.(type) {
	case *GeneralRate:
		if r == nil {
			return false
		}
	case *FTARate:
		if r == nil {
			return false
		}
	case AntiDumpingDuty:
		if !r.Active {
			return false
		}
	case *AntiDumpingDuty:
		if r == nil || !r.Active {
			return false
		}
	case ConcessionExemption:
		if !r.Current {
			return false
		}
	case *ConcessionExemption:
		if r == nil || !r.Current {
			return false
		}
	}
	return record.EffectiveWindow().Contains(asOf)
}

type GeneralRate struct {
	Code          ClassificationCode `json:"code"`
	AdValorem     *decimal.Decimal   `json:"ad_valorem_percent,omitempty"`
	SpecificRate  *decimal.Decimal   `json:"specific_rate,omitempty"`
	Unit          string             `json:"unit,omitempty"`
	RateText      string             `json:"rate_text,omitempty"`
	EffectiveFrom time.Time          `json:"effective_from"`
	ExpiresAt     *time.Time         `json:"expires_at,omitempty"`
}

func (r GeneralRate) Regime() Regime { return RegimeGeneral }
func (r GeneralRate) EffectiveWindow() Window {
	return Window{From: r.EffectiveFrom, To: r.ExpiresAt}
}
func (r GeneralRate) Reference() string { return string(r.Code) }
func (GeneralRate) rateRecord()         {}

func (r GeneralRate) Basis() DutyBasis {
	switch {
	case r.AdValorem != nil && r.SpecificRate != nil:
		return BasisCompound
	case r.SpecificRate != nil:
		return BasisSpecific
	default:
		return BasisAdValorem
	}
}

type FTARate struct {
	Code             ClassificationCode `json:"code"`
	Country          CountryCode        `json:"country"`
	Agreement        string             `json:"agreement"`
	PreferentialRate decimal.Decimal    `json:"preferential_percent"`
	StagingCategory  string             `json:"staging_category,omitempty"`
	EffectiveFrom    time.Time          `json:"effective_from"`
	EliminationDate  *time.Time         `json:"elimination_date,omitempty"`
}

func (r FTARate) Regime() Regime { return RegimeFTA }
func (r FTARate) EffectiveWindow() Window {
	return Window{From: r.EffectiveFrom, To: r.EliminationDate}
}
func (r FTARate) Reference() string { return r.Agreement }
func (FTARate) rateRecord()         {}

type AntiDumpingType string

const (
	AntiDumpingAdValorem AntiDumpingType = "ad_valorem"
	AntiDumpingSpecific  AntiDumpingType = "specific"
	AntiDumpingBoth      AntiDumpingType = "both"
)

type AntiDumpingDuty struct {
	CaseID         string             `json:"case_id"`
	Code           ClassificationCode `json:"code"`
	Country        CountryCode        `json:"country,omitempty"`
	Exporter       string             `json:"exporter,omitempty"`
	DutyType       AntiDumpingType    `json:"duty_type"`
	AdValorem      *decimal.Decimal   `json:"ad_valorem_percent,omitempty"`
	SpecificAmount *decimal.Decimal   `json:"specific_amount,omitempty"`
	Unit           string             `json:"unit,omitempty"`
	EffectiveFrom  time.Time          `json:"effective_from"`
	ExpiresAt      *time.Time         `json:"expires_at,omitempty"`
	Active         bool               `json:"active"`
}

func (r AntiDumpingDuty) Regime() Regime { return RegimeAntiDumping }
func (r AntiDumpingDuty) EffectiveWindow() Window {
	return Window{From: r.EffectiveFrom, To: r.ExpiresAt}
}
func (r AntiDumpingDuty) Reference() string { return r.CaseID }
func (AntiDumpingDuty) rateRecord()         {}

// AppliesTo reports whether the case covers the shipment origin and exporter.
// Exporter-specific cases only apply when the declared exporter matches.
func (r AntiDumpingDuty) AppliesTo(country CountryCode, exporter string) bool {
	if r.Country != "" && country != "" && r.Country != country {
		return false
	}
	caseExporter := strings.TrimSpace(r.Exporter)
	if caseExporter == "" {
		return true
	}
	return strings.EqualFold(caseExporter, strings.TrimSpace(exporter))
}

type ConcessionExemption struct {
	ConcessionNumber string             `json:"concession_number"`
	Code             ClassificationCode `json:"code"`
	Description      string             `json:"description,omitempty"`
	EffectiveFrom    time.Time          `json:"effective_from"`
	ExpiresAt        *time.Time         `json:"expires_at,omitempty"`
	Current          bool               `json:"current"`
}

func (r ConcessionExemption) Regime() Regime { return RegimeExemption }
func (r ConcessionExemption) EffectiveWindow() Window {
	return Window{From: r.EffectiveFrom, To: r.ExpiresAt}
}
func (r ConcessionExemption) Reference() string { return r.ConcessionNumber }
func (ConcessionExemption) rateRecord()         {}

type AntiDumpingQuery struct {
	Code     ClassificationCode
	Country  CountryCode
	Exporter string
	AsOf     time.Time
}

// RateSet is a bulk snapshot of rate tables, used for seeding and file-backed repositories.
type RateSet struct {
	GeneralRates []GeneralRate
	FTARates     []FTARate
	AntiDumping  []AntiDumpingDuty
	Concessions  []ConcessionExemption
}

// MostSpecificFTA keeps, per agreement, the rows matched at the deepest code level.
func MostSpecificFTA(rates []FTARate) []FTARate {
	best := make(map[string]int)
	for _, r := range rates {
		if n := r.Code.Specificity(); n > best[r.Agreement] {
			best[r.Agreement] = n
		}
	}
	out := make([]FTARate, 0, len(rates))
	for _, r := range rates {
		if r.Code.Specificity() == best[r.Agreement] {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].EffectiveFrom.Equal(out[j].EffectiveFrom) {
			return out[i].EffectiveFrom.Before(out[j].EffectiveFrom)
		}
		return out[i].Agreement < out[j].Agreement
	})
	return out
}

// DistinctAntiDumping drops repeated case ids, keeping the most specific code match.
func DistinctAntiDumping(duties []AntiDumpingDuty) []AntiDumpingDuty {
	index := make(map[string]int, len(duties))
	out := make([]AntiDumpingDuty, 0, len(duties))
	for _, d := range duties {
		if i, ok := index[d.CaseID]; ok {
			if d.Code.Specificity() > out[i].Code.Specificity() {
				out[i] = d
			}
			continue
		}
		index[d.CaseID] = len(out)
		out = append(out, d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out
}
