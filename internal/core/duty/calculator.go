package duty

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// Computation is a component together with the arithmetic steps that produced it.
type Computation struct {
	Component domain.DutyComponent
	Steps     []string
}

// ComputeComponent turns one rate record into a duty component for the given customs value.
func ComputeComponent(record domain.RateRecord, customsValue decimal.Decimal, quantity *decimal.Decimal, settings domain.CalculationSettings) domain.DutyComponent {
	return Compute(record, customsValue, quantity, settings).Component
}

func Compute(record domain.RateRecord, customsValue decimal.Decimal, quantity *decimal.Decimal, settings domain.CalculationSettings) Computation {
	settings = settings.Normalize()

	switch r := deref(record).(type) {
	case domain.GeneralRate:
		head := domain.DutyComponent{
			Regime:        domain.RegimeGeneral,
			Reference:     r.Reference(),
			EffectiveFrom: r.EffectiveFrom,
			ExpiresAt:     r.ExpiresAt,
		}
		return computeRated(head, "General Duty (MFN)", r.AdValorem, r.SpecificRate, r.Unit, customsValue, quantity, settings)

	case domain.FTARate:
		rate := r.PreferentialRate
		head := domain.DutyComponent{
			Regime:        domain.RegimeFTA,
			Reference:     r.Agreement,
			EffectiveFrom: r.EffectiveFrom,
			ExpiresAt:     r.EliminationDate,
		}
		return computeRated(head, fmt.Sprintf("FTA Preferential (%s)", r.Agreement), &rate, nil, "", customsValue, quantity, settings)

	case domain.AntiDumpingDuty:
		head := domain.DutyComponent{
			Regime:        domain.RegimeAntiDumping,
			Reference:     r.CaseID,
			EffectiveFrom: r.EffectiveFrom,
			ExpiresAt:     r.ExpiresAt,
		}
		adValorem, specific := r.AdValorem, r.SpecificAmount
		switch r.DutyType {
		case domain.AntiDumpingAdValorem:
			specific = nil
		case domain.AntiDumpingSpecific:
			adValorem = nil
		}
		return computeRated(head, fmt.Sprintf("Anti-Dumping Duty (%s)", r.CaseID), adValorem, specific, r.Unit, customsValue, quantity, settings)

	case domain.ConcessionExemption:
		label := fmt.Sprintf("Tariff Concession Order %s", r.ConcessionNumber)
		return Computation{
			Component: domain.DutyComponent{
				Regime:        domain.RegimeExemption,
				Amount:        decimal.Zero,
				Basis:         domain.BasisExempt,
				Description:   label + " – Exempt",
				Reference:     r.ConcessionNumber,
				Computed:      true,
				EffectiveFrom: r.EffectiveFrom,
				ExpiresAt:     r.ExpiresAt,
			},
			Steps: []string{fmt.Sprintf("%s: base duty exempt = %s", label, FormatMoney(decimal.Zero, settings.MinorUnits))},
		}

	default:
		return Computation{
			Component: domain.DutyComponent{
				Regime:      domain.RegimeNone,
				Description: "Unknown rate record",
				Note:        fmt.Sprintf("unsupported rate record %T", record),
			},
		}
	}
}

func computeRated(
	head domain.DutyComponent,
	label string,
	adValorem, specific *decimal.Decimal,
	unit string,
	customsValue decimal.Decimal,
	quantity *decimal.Decimal,
	settings domain.CalculationSettings,
) Computation {
	out := head
	unit = unitLabel(unit)

	switch {
	case adValorem != nil && specific != nil:
		out.Basis = domain.BasisCompound
		out.Rate = copyDecimal(adValorem)
		out.Description = fmt.Sprintf("%s – %s of customs value + %s per %s", label, FormatPercent(*adValorem), formatUnitRate(*specific), unit)
	case specific != nil:
		out.Basis = domain.BasisSpecific
		out.Rate = copyDecimal(specific)
		out.Description = fmt.Sprintf("%s – %s per %s", label, formatUnitRate(*specific), unit)
	case adValorem != nil:
		out.Basis = domain.BasisAdValorem
		out.Rate = copyDecimal(adValorem)
		out.Description = fmt.Sprintf("%s – %s of customs value", label, FormatPercent(*adValorem))
	default:
		out.Basis = domain.BasisAdValorem
		out.Description = label + " – rate not specified"
		out.Note = "rate record carries neither a percentage nor a per-unit amount; component not applied"
		return Computation{Component: out}
	}

	if specific != nil && quantity == nil {
		out.Note = fmt.Sprintf("quantity in %s is required for the specific duty; component not applied", unit)
		return Computation{Component: out}
	}

	var steps []string
	amount := decimal.Zero
	var adValoremAmount, specificAmount decimal.Decimal

	if adValorem != nil {
		adValoremAmount = roundMoney(customsValue.Mul(*adValorem).Div(hundred), settings.MinorUnits)
		amount = amount.Add(adValoremAmount)
		steps = append(steps, fmt.Sprintf("%s: %s × %s = %s",
			label, FormatMoney(customsValue, settings.MinorUnits), FormatPercent(*adValorem), FormatMoney(adValoremAmount, settings.MinorUnits)))
	}
	if specific != nil {
		specificAmount = roundMoney(quantity.Mul(*specific), settings.MinorUnits)
		amount = amount.Add(specificAmount)
		steps = append(steps, fmt.Sprintf("%s: %s %s × %s = %s",
			label, quantity.String(), unit, formatUnitRate(*specific), FormatMoney(specificAmount, settings.MinorUnits)))
		out.Description = fmt.Sprintf("%s × %s %s", out.Description, quantity.String(), unit)
	}
	if adValorem != nil && specific != nil {
		steps = append(steps, fmt.Sprintf("%s: %s + %s = %s",
			label, FormatMoney(adValoremAmount, settings.MinorUnits), FormatMoney(specificAmount, settings.MinorUnits), FormatMoney(amount, settings.MinorUnits)))
	}

	out.Amount = amount
	out.Computed = true
	return Computation{Component: out, Steps: steps}
}

func deref(record domain.RateRecord) domain.RateRecord {
	switch r := record.(type) {
	case *domain.GeneralRate:
		if r != nil {
			return *r
		}
	case *domain.FTARate:
		if r != nil {
			return *r
		}
	case *domain.AntiDumpingDuty:
		if r != nil {
			return *r
		}
	case *domain.ConcessionExemption:
		if r != nil {
			return *r
		}
	default:
		return record
	}
	return nil
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
