package duty

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

type TaxComputation struct {
	Component domain.TaxComponent
	Steps     []string
}

// ComputeTax applies GST to the duty-inclusive value. The tax line is always produced, even when fully exempt.
func ComputeTax(dutyInclusiveValue decimal.Decimal, exemption *domain.GSTExemption, settings domain.CalculationSettings) domain.TaxComponent {
	return CalculateTax(dutyInclusiveValue, exemption, settings).Component
}

func CalculateTax(dutyInclusiveValue decimal.Decimal, exemption *domain.GSTExemption, settings domain.CalculationSettings) TaxComputation {
	settings = settings.Normalize()
	rate := settings.GSTRatePercent
	minor := settings.MinorUnits

	out := domain.TaxComponent{
		Rate:          rate,
		Base:          dutyInclusiveValue,
		ExemptPercent: decimal.Zero,
	}

	exemptPercent := decimal.Zero
	if exemption != nil {
		exemptPercent = decimal.Min(decimal.Max(exemption.Percent, decimal.Zero), hundred)
		out.ExemptPercent = exemptPercent
		out.ExemptReference = strings.TrimSpace(exemption.Reference)
	}

	base := FormatMoney(dutyInclusiveValue, minor)
	switch {
	case exemptPercent.Equal(hundred):
		out.Amount = roundMoney(decimal.Zero, minor)
		out.Description = "GST – exempt" + referenceSuffix(out.ExemptReference)
		return TaxComputation{
			Component: out,
			Steps:     []string{fmt.Sprintf("GST: %s fully exempt%s = %s", base, referenceSuffix(out.ExemptReference), FormatMoney(out.Amount, minor))},
		}

	case exemptPercent.IsPositive():
		payable := hundred.Sub(exemptPercent)
		out.Amount = roundMoney(dutyInclusiveValue.Mul(rate).Mul(payable).Div(hundred).Div(hundred), minor)
		out.Description = fmt.Sprintf("GST – %s of duty-inclusive value, %s exempt%s",
			FormatPercent(rate), FormatPercent(exemptPercent), referenceSuffix(out.ExemptReference))
		return TaxComputation{
			Component: out,
			Steps: []string{fmt.Sprintf("GST: %s × %s × %s payable = %s",
				base, FormatPercent(rate), FormatPercent(payable), FormatMoney(out.Amount, minor))},
		}

	default:
		out.Amount = roundMoney(dutyInclusiveValue.Mul(rate).Div(hundred), minor)
		out.Description = fmt.Sprintf("GST – %s of duty-inclusive value", FormatPercent(rate))
		return TaxComputation{
			Component: out,
			Steps:     []string{fmt.Sprintf("GST: %s × %s = %s", base, FormatPercent(rate), FormatMoney(out.Amount, minor))},
		}
	}
}

func referenceSuffix(ref string) string {
	if ref == "" {
		return ""
	}
	return " (" + ref + ")"
}
