package dto

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/duty"
)

type Component struct {
	Regime        string  `json:"regime"`
	RatePercent   *string `json:"rate_percent,omitempty"`
	Amount        string  `json:"amount"`
	Basis         string  `json:"basis"`
	Description   string  `json:"description"`
	Reference     string  `json:"reference,omitempty"`
	Computed      bool    `json:"computed"`
	Applicable    bool    `json:"applicable"`
	Note          string  `json:"note,omitempty"`
	EffectiveFrom string  `json:"effective_from,omitempty"`
	ExpiresAt     string  `json:"expires_at,omitempty"`
}

type Tax struct {
	RatePercent     string `json:"rate_percent"`
	Base            string `json:"base"`
	Amount          string `json:"amount"`
	ExemptPercent   string `json:"exempt_percent"`
	ExemptReference string `json:"exempt_reference,omitempty"`
	Description     string `json:"description"`
}

type CalculationResponse struct {
	HSCode             string      `json:"hs_code"`
	Country            string      `json:"country"`
	CustomsValue       string      `json:"customs_value"`
	Quantity           *string     `json:"quantity,omitempty"`
	Exporter           string      `json:"exporter,omitempty"`
	AsOf               string      `json:"as_of"`
	ValueBasis         string      `json:"value_basis"`
	Components         []Component `json:"components"`
	Tax                Tax         `json:"tax"`
	TotalDuty          string      `json:"total_duty"`
	DutyInclusiveValue string      `json:"duty_inclusive_value"`
	TotalGST           string      `json:"total_gst"`
	TotalAmount        string      `json:"total_amount"`
	BestRegime         string      `json:"best_regime"`
	BestReference      string      `json:"best_reference,omitempty"`
	GeneralTotal       string      `json:"general_total"`
	PotentialSavings   string      `json:"potential_savings"`
	Steps              []string    `json:"steps"`
	Notes              []string    `json:"notes"`
	Warnings           []string    `json:"warnings"`
}

type ErrorBody struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

type BatchItem struct {
	Index  int                  `json:"index"`
	Result *CalculationResponse `json:"result,omitempty"`
	Error  *ErrorBody           `json:"error,omitempty"`
}

// BatchResponse carries per-item outcomes. Error is set only when the batch as a whole was rejected.
type BatchResponse struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
	Error     *ErrorBody  `json:"error,omitempty"`
}

func FromResult(r *domain.CalculationResult, minorUnits int32) CalculationResponse {
	money := func(d decimal.Decimal) string { return duty.FormatMoney(d, minorUnits) }

	components := make([]Component, 0, len(r.Components))
	for _, c := range r.Components {
		item := Component{
			Regime:      string(c.Regime),
			Amount:      money(c.Amount),
			Basis:       string(c.Basis),
			Description: c.Description,
			Reference:   c.Reference,
			Computed:    c.Computed,
			Applicable:  c.Applicable,
			Note:        c.Note,
		}
		if c.Rate != nil {
			rate := c.Rate.String()
			item.RatePercent = &rate
		}
		if !c.EffectiveFrom.IsZero() {
			item.EffectiveFrom = c.EffectiveFrom.Format(time.DateOnly)
		}
		if c.ExpiresAt != nil {
			item.ExpiresAt = c.ExpiresAt.Format(time.DateOnly)
		}
		components = append(components, item)
	}

	out := CalculationResponse{
		HSCode:       r.Code.Dotted(),
		Country:      r.Country.String(),
		CustomsValue: money(r.CustomsValue),
		Exporter:     r.Exporter,
		AsOf:         r.AsOf.Format(time.DateOnly),
		ValueBasis:   string(r.ValuationBasis),
		Components:   components,
		Tax: Tax{
			RatePercent:     r.Tax.Rate.String(),
			Base:            money(r.Tax.Base),
			Amount:          money(r.Tax.Amount),
			ExemptPercent:   r.Tax.ExemptPercent.String(),
			ExemptReference: r.Tax.ExemptReference,
			Description:     r.Tax.Description,
		},
		TotalDuty:          money(r.TotalDuty),
		DutyInclusiveValue: money(r.DutyInclusiveValue),
		TotalGST:           money(r.TotalGST),
		TotalAmount:        money(r.TotalAmount),
		BestRegime:         string(r.BestRegime),
		BestReference:      r.BestReference,
		GeneralTotal:       money(r.GeneralTotal),
		PotentialSavings:   money(r.PotentialSavings),
		Steps:              nonNil(r.Steps),
		Notes:              nonNil(r.Notes),
		Warnings:           nonNil(r.Warnings),
	}
	if r.Quantity != nil {
		q := r.Quantity.String()
		out.Quantity = &q
	}
	return out
}

func FromBatch(items []domain.BatchItemResult, minorUnits int32) BatchResponse {
	out := BatchResponse{Items: make([]BatchItem, 0, len(items))}
	for _, item := range items {
		entry := BatchItem{Index: item.Index}
		if item.Err != nil {
			body := ErrorFromError(item.Err)
			entry.Error = &body
			out.Failed++
		} else {
			res := FromResult(item.Result, minorUnits)
			entry.Result = &res
			out.Succeeded++
		}
		out.Items = append(out.Items, entry)
	}
	return out
}

// ErrorFromError maps an error to its wire body, keeping field details for validation failures.
func ErrorFromError(err error) ErrorBody {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return ErrorBody{Code: "invalid_input", Message: "request validation failed", Fields: verr.Fields}
	case domain.IsKind(err, domain.ErrInvalidInput):
		return ErrorBody{Code: "invalid_input", Message: err.Error()}
	case domain.IsKind(err, domain.ErrCalculationUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return ErrorBody{Code: "calculation_unavailable", Message: "rate data is temporarily unavailable"}
	default:
		return ErrorBody{Code: "internal_error", Message: "internal error"}
	}
}

func nonNil(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
