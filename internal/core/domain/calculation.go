package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DutyComponent is one regime's computed contribution. It is derived per request and never persisted.
type DutyComponent struct {
	Regime        Regime           `json:"regime"`
	Rate          *decimal.Decimal `json:"rate,omitempty"`
	Amount        decimal.Decimal  `json:"amount"`
	Basis         DutyBasis        `json:"basis"`
	Description   string           `json:"description"`
	Reference     string           `json:"reference,omitempty"`
	Computed      bool             `json:"computed"`
	Applicable    bool             `json:"applicable"`
	Note          string           `json:"note,omitempty"`
	EffectiveFrom time.Time        `json:"effective_from"`
	ExpiresAt     *time.Time       `json:"expires_at,omitempty"`
}

type TaxComponent struct {
	Rate            decimal.Decimal `json:"rate"`
	Base            decimal.Decimal `json:"base"`
	Amount          decimal.Decimal `json:"amount"`
	ExemptPercent   decimal.Decimal `json:"exempt_percent"`
	ExemptReference string          `json:"exempt_reference,omitempty"`
	Description     string          `json:"description"`
}

// GSTExemption is decided by an upstream collaborator; Percent 100 is a full exemption.
type GSTExemption struct {
	Reference string
	Percent   decimal.Decimal
}

type CalculationRequest struct {
	Code           string
	Country        string
	CustomsValue   decimal.Decimal
	Quantity       *decimal.Decimal
	AsOf           *time.Time
	Exporter       string
	ValuationBasis string
	GSTExemption   *GSTExemption
}

// ValidatedRequest is a CalculationRequest after format validation and defaulting.
type ValidatedRequest struct {
	Code           ClassificationCode
	Country        CountryCode
	CustomsValue   decimal.Decimal
	Quantity       *decimal.Decimal
	AsOf           time.Time
	Exporter       string
	ValuationBasis ValuationBasis
	GSTExemption   *GSTExemption
}

// Validate checks every field and reports all failures at once.
func (r CalculationRequest) Validate(today time.Time) (ValidatedRequest, error) {
	verr := &ValidationError{}
	out := ValidatedRequest{
		CustomsValue: r.CustomsValue,
		Quantity:     r.Quantity,
		Exporter:     r.Exporter,
		GSTExemption: r.GSTExemption,
	}

	code, err := ParseClassificationCode(r.Code)
	if err != nil {
		verr.Fields = append(verr.Fields, fieldsOf(err)...)
	}
	out.Code = code

	country, err := ParseCountryCode(r.Country)
	if err != nil {
		verr.Fields = append(verr.Fields, fieldsOf(err)...)
	}
	out.Country = country

	if !r.CustomsValue.IsPositive() {
		verr.Add("customs_value", "must be greater than zero")
	}
	if r.Quantity != nil && r.Quantity.IsNegative() {
		verr.Add("quantity", "must not be negative")
	}

	basis, err := ParseValuationBasis(r.ValuationBasis)
	if err != nil {
		verr.Fields = append(verr.Fields, fieldsOf(err)...)
	}
	out.ValuationBasis = basis

	if ex := r.GSTExemption; ex != nil {
		if ex.Percent.IsNegative() || ex.Percent.GreaterThan(decimal.NewFromInt(100)) {
			verr.Add("gst_exemption.percent", "must be between 0 and 100")
		}
	}

	if r.AsOf != nil {
		out.AsOf = DateOnly(*r.AsOf)
	} else {
		out.AsOf = DateOnly(today)
	}

	if err := verr.OrNil(); err != nil {
		return ValidatedRequest{}, err
	}
	return out, nil
}

// ValidateFor validates and rounds the customs value to the currency's minor units, so the echoed value is the
// one every later amount is derived from.
func (r CalculationRequest) ValidateFor(today time.Time, settings CalculationSettings) (ValidatedRequest, error) {
	out, err := r.Validate(today)
	if err != nil {
		return ValidatedRequest{}, err
	}
	out.CustomsValue = out.CustomsValue.Round(settings.MinorUnits)
	if !out.CustomsValue.IsPositive() {
		return ValidatedRequest{}, newFieldError("customs_value", "must be at least one minor currency unit")
	}
	return out, nil
}

func fieldsOf(err error) []FieldError {
	if v, ok := err.(*ValidationError); ok {
		return v.Fields
	}
	return []FieldError{{Field: "request", Message: err.Error()}}
}

// CalculationResult is assembled once per request and must not be mutated afterwards.
type CalculationResult struct {
	Code               ClassificationCode `json:"hs_code"`
	Country            CountryCode        `json:"country"`
	CustomsValue       decimal.Decimal    `json:"customs_value"`
	Quantity           *decimal.Decimal   `json:"quantity,omitempty"`
	Exporter           string             `json:"exporter,omitempty"`
	AsOf               time.Time          `json:"as_of"`
	ValuationBasis     ValuationBasis     `json:"value_basis"`
	Components         []DutyComponent    `json:"components"`
	Tax                TaxComponent       `json:"tax"`
	TotalDuty          decimal.Decimal    `json:"total_duty"`
	DutyInclusiveValue decimal.Decimal    `json:"duty_inclusive_value"`
	TotalGST           decimal.Decimal    `json:"total_gst"`
	TotalAmount        decimal.Decimal    `json:"total_amount"`
	BestRegime         Regime             `json:"best_regime"`
	BestReference      string             `json:"best_reference,omitempty"`
	GeneralTotal       decimal.Decimal    `json:"general_total"`
	PotentialSavings   decimal.Decimal    `json:"potential_savings"`
	Steps              []string           `json:"steps"`
	Notes              []string           `json:"notes"`
	Warnings           []string           `json:"warnings"`
}

// BatchItemResult is one batch entry; exactly one of Result and Err is set.
type BatchItemResult struct {
	Index  int
	Result *CalculationResult
	Err    error
}

type CalculationSettings struct {
	GSTRatePercent           decimal.Decimal
	MinorUnits               int32
	EliminationWarningDays   int
	ConcessionExpiryWarnDays int
}

func DefaultCalculationSettings() CalculationSettings {
	return CalculationSettings{
		GSTRatePercent:           decimal.NewFromInt(10),
		MinorUnits:               2,
		EliminationWarningDays:   90,
		ConcessionExpiryWarnDays: 90,
	}
}

func (s CalculationSettings) Normalize() CalculationSettings {
	out := s
	def := DefaultCalculationSettings()
	if out.GSTRatePercent.IsNegative() {
		out.GSTRatePercent = def.GSTRatePercent
	}
	if out.MinorUnits < 0 {
		out.MinorUnits = def.MinorUnits
	}
	if out.EliminationWarningDays <= 0 {
		out.EliminationWarningDays = def.EliminationWarningDays
	}
	if out.ConcessionExpiryWarnDays <= 0 {
		out.ConcessionExpiryWarnDays = def.ConcessionExpiryWarnDays
	}
	return out
}
