package dto

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// CalculateRequest accepts amounts as JSON numbers or strings.
type CalculateRequest struct {
	HSCode       string           `json:"hs_code"`
	Country      string           `json:"country"`
	CustomsValue decimal.Decimal  `json:"customs_value"`
	Quantity     *decimal.Decimal `json:"quantity,omitempty"`
	AsOf         string           `json:"as_of,omitempty"`
	Exporter     string           `json:"exporter,omitempty"`
	ValueBasis   string           `json:"value_basis,omitempty"`
	GSTExemption *GSTExemption    `json:"gst_exemption,omitempty"`
}

type GSTExemption struct {
	Reference string          `json:"reference"`
	Percent   decimal.Decimal `json:"percent"`
}

type BatchRequest struct {
	Items []CalculateRequest `json:"items"`
}

// ToDomain converts wire fields; only the as-of date format is checked here.
func (r CalculateRequest) ToDomain() (domain.CalculationRequest, error) {
	out := domain.CalculationRequest{
		Code:           r.HSCode,
		Country:        r.Country,
		CustomsValue:   r.CustomsValue,
		Quantity:       r.Quantity,
		Exporter:       strings.TrimSpace(r.Exporter),
		ValuationBasis: r.ValueBasis,
	}
	if raw := strings.TrimSpace(r.AsOf); raw != "" {
		asOf, err := time.Parse(time.DateOnly, raw)
		if err != nil {
			verr := &domain.ValidationError{}
			verr.Add("as_of", "must be a date in YYYY-MM-DD format")
			return domain.CalculationRequest{}, verr
		}
		out.AsOf = &asOf
	}
	if r.GSTExemption != nil {
		out.GSTExemption = &domain.GSTExemption{
			Reference: strings.TrimSpace(r.GSTExemption.Reference),
			Percent:   r.GSTExemption.Percent,
		}
	}
	return out, nil
}
