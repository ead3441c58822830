package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
)

func newCalculateCommand(rt *Runtime) *cobra.Command {
	var (
		req           dto.CalculateRequest
		value         string
		quantity      string
		exemptRef     string
		exemptPercent string
		asJSON        bool
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Calculate duty and GST for one import line",
		Example: `  dutyctl calculate --hs-code 7208.10.00 --country CN --value 1000
  dutyctl calculate --hs-code 2204.21 --country FR --value 500 --quantity 120 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if req.CustomsValue, err = decimal.NewFromString(value); err != nil {
				return fmt.Errorf("--value %q is not a number", value)
			}
			if quantity != "" {
				q, err := decimal.NewFromString(quantity)
				if err != nil {
					return fmt.Errorf("--quantity %q is not a number", quantity)
				}
				req.Quantity = &q
			}
			if exemptPercent != "" {
				p, err := decimal.NewFromString(exemptPercent)
				if err != nil {
					return fmt.Errorf("--gst-exempt-percent %q is not a number", exemptPercent)
				}
				req.GSTExemption = &dto.GSTExemption{Reference: exemptRef, Percent: p}
			}

			domainReq, err := req.ToDomain()
			if err != nil {
				return describe(err)
			}

			app, err := rt.OpenApp(cmd.Context(), rt.Config)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Calculator.Calculate(cmd.Context(), domainReq)
			if err != nil {
				return describe(err)
			}
			resp := dto.FromResult(result, rt.minorUnits())
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp)
			}
			printCalculation(cmd.OutOrStdout(), resp)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&req.HSCode, "hs-code", "", "Tariff classification code")
	flags.StringVar(&req.Country, "country", "", "Country of origin (ISO alpha-2 or alpha-3)")
	flags.StringVar(&value, "value", "", "Customs value")
	flags.StringVar(&quantity, "quantity", "", "Quantity in the tariff unit")
	flags.StringVar(&req.AsOf, "as-of", "", "Calculation date YYYY-MM-DD (default today)")
	flags.StringVar(&req.Exporter, "exporter", "", "Exporter name")
	flags.StringVar(&req.ValueBasis, "basis", "", "Valuation basis (FOB, CIF, CFR, EXW, DDP, DDU)")
	flags.StringVar(&exemptRef, "gst-exempt-ref", "", "GST exemption reference")
	flags.StringVar(&exemptPercent, "gst-exempt-percent", "", "GST exemption percent (100 = full)")
	flags.BoolVar(&asJSON, "json", false, "Print the full result as JSON")
	_ = cmd.MarkFlagRequired("hs-code")
	_ = cmd.MarkFlagRequired("country")
	_ = cmd.MarkFlagRequired("value")

	return cmd
}

func printCalculation(w io.Writer, r dto.CalculationResponse) {
	fmt.Fprintf(w, "HS %s from %s, customs value %s (%s) as of %s\n\n", r.HSCode, r.Country, r.CustomsValue, r.ValueBasis, r.AsOf)
	for _, step := range r.Steps {
		fmt.Fprintf(w, "  %s\n", step)
	}
	fmt.Fprintln(w)
	best := r.BestRegime
	if r.BestReference != "" {
		best += " (" + r.BestReference + ")"
	}
	fmt.Fprintf(w, "Best regime:  %s\n", best)
	fmt.Fprintf(w, "Total duty:   %s\n", r.TotalDuty)
	fmt.Fprintf(w, "GST:          %s\n", r.TotalGST)
	fmt.Fprintf(w, "Total amount: %s\n", r.TotalAmount)
	for _, note := range r.Notes {
		fmt.Fprintf(w, "note: %s\n", note)
	}
	for _, warning := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warning)
	}
}
