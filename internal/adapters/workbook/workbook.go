package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
)

const (
	ContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	resultsSheet = "Results"
	stepsSheet   = "Steps"
)

var inputColumns = []string{
	"hs_code", "country", "customs_value", "quantity", "as_of", "exporter",
	"value_basis", "gst_exemption_reference", "gst_exemption_percent",
}

var resultColumns = []string{
	"row", "hs_code", "country", "customs_value", "best_regime", "best_reference",
	"total_duty", "total_gst", "total_amount", "general_total", "potential_savings",
	"notes", "warnings", "error",
}

// ReadRequests parses the first sheet of an xlsx workbook. Row 1 is a header naming the input columns.
func ReadRequests(r io.Reader) ([]dto.CalculateRequest, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("workbook sheet %q is empty", sheets[0])
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"hs_code", "country", "customs_value"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("header is missing column %q", required)
		}
	}

	out := make([]dto.CalculateRequest, 0, len(rows)-1)
	for n, row := range rows[1:] {
		line := n + 2
		cell := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}
		if isBlank(row) {
			continue
		}

		req := dto.CalculateRequest{
			HSCode:     cell("hs_code"),
			Country:    cell("country"),
			AsOf:       cell("as_of"),
			Exporter:   cell("exporter"),
			ValueBasis: cell("value_basis"),
		}
		value, err := parseDecimal(cell("customs_value"))
		if err != nil {
			return nil, fmt.Errorf("row %d customs_value: %w", line, err)
		}
		if value != nil {
			req.CustomsValue = *value
		}
		if req.Quantity, err = parseDecimal(cell("quantity")); err != nil {
			return nil, fmt.Errorf("row %d quantity: %w", line, err)
		}
		percent, err := parseDecimal(cell("gst_exemption_percent"))
		if err != nil {
			return nil, fmt.Errorf("row %d gst_exemption_percent: %w", line, err)
		}
		if percent != nil {
			req.GSTExemption = &dto.GSTExemption{Reference: cell("gst_exemption_reference"), Percent: *percent}
		}
		out = append(out, req)
	}
	return out, nil
}

// WriteResults renders a batch response as a workbook with a summary sheet and a steps sheet.
func WriteResults(w io.Writer, resp dto.BatchResponse) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(stepsSheet); err != nil {
		return fmt.Errorf("create steps sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	if err := writeRow(f, resultsSheet, 1, toAny(resultColumns)); err != nil {
		return err
	}
	if err := writeRow(f, stepsSheet, 1, []any{"row", "step"}); err != nil {
		return err
	}
	for _, sheet := range []string{resultsSheet, stepsSheet} {
		if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	stepRow := 2
	for i, item := range resp.Items {
		// Input rows start under the header, so item n came from sheet row n+2.
		values := []any{item.Index + 2}
		switch {
		case item.Result != nil:
			res := item.Result
			values = append(values,
				res.HSCode, res.Country, res.CustomsValue, res.BestRegime, res.BestReference,
				res.TotalDuty, res.TotalGST, res.TotalAmount, res.GeneralTotal, res.PotentialSavings,
				strings.Join(res.Notes, "\n"), strings.Join(res.Warnings, "\n"), "",
			)
			for _, step := range res.Steps {
				if err := writeRow(f, stepsSheet, stepRow, []any{item.Index + 2, step}); err != nil {
					return err
				}
				stepRow++
			}
		case item.Error != nil:
			values = append(values, "", "", "", "", "", "", "", "", "", "", "", "", errorText(item.Error))
		}
		if err := writeRow(f, resultsSheet, i+2, values); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("cell name: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func errorText(body *dto.ErrorBody) string {
	if len(body.Fields) == 0 {
		return body.Message
	}
	parts := make([]string, 0, len(body.Fields))
	for _, f := range body.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return strings.Join(parts, "; ")
}

func parseDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil, fmt.Errorf("%q is not a number", raw)
	}
	return &d, nil
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}

// Template returns an empty input workbook with the expected header row.
func Template(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()
	if err := writeRow(f, "Sheet1", 1, toAny(inputColumns)); err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
