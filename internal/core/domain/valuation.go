package domain

import "strings"

// ValuationBasis is the Incoterm the customs value was declared on. It is echoed for audit
// and does not alter duty arithmetic.
type ValuationBasis string

const (
	ValuationFOB ValuationBasis = "FOB"
	ValuationCIF ValuationBasis = "CIF"
	ValuationCFR ValuationBasis = "CFR"
	ValuationEXW ValuationBasis = "EXW"
	ValuationDDP ValuationBasis = "DDP"
	ValuationDDU ValuationBasis = "DDU"
)

func ParseValuationBasis(raw string) (ValuationBasis, error) {
	value := ValuationBasis(strings.ToUpper(strings.TrimSpace(raw)))
	switch value {
	case "":
		return ValuationCIF, nil
	case ValuationFOB, ValuationCIF, ValuationCFR, ValuationEXW, ValuationDDP, ValuationDDU:
		return value, nil
	default:
		return "", newFieldError("value_basis", "must be one of FOB, CIF, CFR, EXW, DDP, DDU")
	}
}
