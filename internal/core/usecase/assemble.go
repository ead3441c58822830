package usecase

import (
	"fmt"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/duty"
)

func assembleResult(in domain.ValidatedRequest, sel selection, settings domain.CalculationSettings) *domain.CalculationResult {
	minor := settings.MinorUnits
	totalDuty := sel.best.total
	dutyInclusive := in.CustomsValue.Add(totalDuty).Round(minor)
	tax := duty.CalculateTax(dutyInclusive, in.GSTExemption, settings)
	totalAmount := dutyInclusive.Add(tax.Component.Amount)

	steps := make([]string, 0, len(sel.steps)+len(tax.Steps)+4)
	steps = append(steps, fmt.Sprintf("Valuation basis: %s; duty assessed on declared customs value %s",
		in.ValuationBasis, duty.FormatMoney(in.CustomsValue, minor)))
	steps = append(steps, sel.steps...)
	steps = append(steps,
		fmt.Sprintf("Total duty: %s + %s anti-dumping = %s",
			duty.FormatMoney(sel.best.base, minor), duty.FormatMoney(sel.antiDumpingTotal, minor), duty.FormatMoney(totalDuty, minor)),
		fmt.Sprintf("Duty-inclusive value: %s + %s = %s",
			duty.FormatMoney(in.CustomsValue, minor), duty.FormatMoney(totalDuty, minor), duty.FormatMoney(dutyInclusive, minor)),
	)
	steps = append(steps, tax.Steps...)
	steps = append(steps, fmt.Sprintf("Total amount: %s + %s = %s",
		duty.FormatMoney(dutyInclusive, minor), duty.FormatMoney(tax.Component.Amount, minor), duty.FormatMoney(totalAmount, minor)))

	components := make([]domain.DutyComponent, len(sel.components))
	copy(components, sel.components)

	return &domain.CalculationResult{
		Code:               in.Code,
		Country:            in.Country,
		CustomsValue:       in.CustomsValue,
		Quantity:           in.Quantity,
		Exporter:           in.Exporter,
		AsOf:               in.AsOf,
		ValuationBasis:     in.ValuationBasis,
		Components:         components,
		Tax:                tax.Component,
		TotalDuty:          totalDuty,
		DutyInclusiveValue: dutyInclusive,
		TotalGST:           tax.Component.Amount,
		TotalAmount:        totalAmount,
		BestRegime:         sel.best.regime,
		BestReference:      sel.best.reference,
		GeneralTotal:       sel.generalTotal,
		PotentialSavings:   sel.savings,
		Steps:              steps,
		Notes:              buildNotes(in, sel, settings),
		Warnings:           buildWarnings(in, sel, settings),
	}
}

// buildNotes lists the concession note first, then one note per applied anti-dumping case.
func buildNotes(in domain.ValidatedRequest, sel selection, settings domain.CalculationSettings) []string {
	notes := make([]string, 0, 2)
	if sel.best.regime == domain.RegimeExemption && sel.exemption != nil {
		notes = append(notes, concessionNote(in.AsOf, *sel.exemption, settings.ConcessionExpiryWarnDays))
	}
	for _, c := range sel.components {
		if c.Regime != domain.RegimeAntiDumping || !c.Applicable {
			continue
		}
		notes = append(notes, fmt.Sprintf("Anti-dumping case %s applied on top of the %s regime: %s",
			c.Reference, sel.best.regime, duty.FormatMoney(c.Amount, settings.MinorUnits)))
	}
	return notes
}

func concessionNote(asOf time.Time, exemption domain.ConcessionExemption, warnDays int) string {
	note := fmt.Sprintf("Tariff Concession Order %s exempts base duty", exemption.ConcessionNumber)
	days, ok := exemption.EffectiveWindow().DaysUntilEnd(asOf)
	switch {
	case !ok:
		return note + "; no expiry date recorded"
	case days <= warnDays:
		return fmt.Sprintf("%s; concession expires %s (in %d days), confirm renewal before relying on it",
			note, exemption.ExpiresAt.Format(time.DateOnly), days)
	default:
		return fmt.Sprintf("%s; concession expires %s", note, exemption.ExpiresAt.Format(time.DateOnly))
	}
}

func buildWarnings(in domain.ValidatedRequest, sel selection, settings domain.CalculationSettings) []string {
	warnings := make([]string, 0, len(sel.warnings)+1)
	warnings = append(warnings, sel.warnings...)

	for _, rate := range sel.ftaRates {
		days, ok := rate.EffectiveWindow().DaysUntilEnd(in.AsOf)
		if !ok || days < 0 || days > settings.EliminationWarningDays {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("FTA rate under %s reaches its elimination date %s in %d days",
			rate.Agreement, rate.EliminationDate.Format(time.DateOnly), days))
	}

	if sel.noData {
		warnings = append(warnings, fmt.Sprintf("no rate data found for %s under any regime", in.Code.Dotted()))
	}
	return warnings
}
