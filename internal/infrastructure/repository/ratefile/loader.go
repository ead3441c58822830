package ratefile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
)

// Numbers and dates are kept as strings in the document so decimals are never routed through float64.
type document struct {
	GeneralRates []generalRow    `yaml:"general_rates"`
	FTARates     []ftaRow        `yaml:"fta_rates"`
	AntiDumping  []antiDumpRow   `yaml:"anti_dumping"`
	Concessions  []concessionRow `yaml:"concessions"`
}

type generalRow struct {
	Code          string `yaml:"hs_code"`
	AdValorem     string `yaml:"ad_valorem_percent"`
	SpecificRate  string `yaml:"specific_rate"`
	Unit          string `yaml:"unit"`
	RateText      string `yaml:"rate_text"`
	EffectiveFrom string `yaml:"effective_from"`
	ExpiresAt     string `yaml:"expires_at"`
}

type ftaRow struct {
	Code             string `yaml:"hs_code"`
	Country          string `yaml:"country"`
	Agreement        string `yaml:"agreement"`
	PreferentialRate string `yaml:"preferential_percent"`
	StagingCategory  string `yaml:"staging_category"`
	EffectiveFrom    string `yaml:"effective_from"`
	EliminationDate  string `yaml:"elimination_date"`
}

type antiDumpRow struct {
	CaseID         string `yaml:"case_id"`
	Code           string `yaml:"hs_code"`
	Country        string `yaml:"country"`
	Exporter       string `yaml:"exporter"`
	DutyType       string `yaml:"duty_type"`
	AdValorem      string `yaml:"ad_valorem_percent"`
	SpecificAmount string `yaml:"specific_amount"`
	Unit           string `yaml:"unit"`
	EffectiveFrom  string `yaml:"effective_from"`
	ExpiresAt      string `yaml:"expires_at"`
	Active         *bool  `yaml:"active"`
}

type concessionRow struct {
	ConcessionNumber string `yaml:"concession_number"`
	Code             string `yaml:"hs_code"`
	Description      string `yaml:"description"`
	EffectiveFrom    string `yaml:"effective_from"`
	ExpiresAt        string `yaml:"expires_at"`
	Current          *bool  `yaml:"current"`
}

func LoadFile(path string) (domain.RateSet, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.RateSet{}, fmt.Errorf("read rate file: %w", err)
	}
	set, err := Parse(raw)
	if err != nil {
		return domain.RateSet{}, fmt.Errorf("parse rate file %s: %w", path, err)
	}
	return set, nil
}

func Parse(raw []byte) (domain.RateSet, error) {
	var doc document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return domain.RateSet{}, fmt.Errorf("decode yaml: %w", err)
	}

	var set domain.RateSet
	for i, row := range doc.GeneralRates {
		rate, err := row.toDomain()
		if err != nil {
			return domain.RateSet{}, fmt.Errorf("general_rates[%d]: %w", i, err)
		}
		set.GeneralRates = append(set.GeneralRates, rate)
	}
	for i, row := range doc.FTARates {
		rate, err := row.toDomain()
		if err != nil {
			return domain.RateSet{}, fmt.Errorf("fta_rates[%d]: %w", i, err)
		}
		set.FTARates = append(set.FTARates, rate)
	}
	for i, row := range doc.AntiDumping {
		duty, err := row.toDomain()
		if err != nil {
			return domain.RateSet{}, fmt.Errorf("anti_dumping[%d]: %w", i, err)
		}
		set.AntiDumping = append(set.AntiDumping, duty)
	}
	for i, row := range doc.Concessions {
		exemption, err := row.toDomain()
		if err != nil {
			return domain.RateSet{}, fmt.Errorf("concessions[%d]: %w", i, err)
		}
		set.Concessions = append(set.Concessions, exemption)
	}
	return set, nil
}

func (r generalRow) toDomain() (domain.GeneralRate, error) {
	var out domain.GeneralRate
	var err error
	if out.Code, err = domain.ParseClassificationCode(r.Code); err != nil {
		return out, err
	}
	if out.AdValorem, err = optionalDecimal("ad_valorem_percent", r.AdValorem); err != nil {
		return out, err
	}
	if out.SpecificRate, err = optionalDecimal("specific_rate", r.SpecificRate); err != nil {
		return out, err
	}
	if out.AdValorem == nil && out.SpecificRate == nil {
		return out, fmt.Errorf("one of ad_valorem_percent or specific_rate is required")
	}
	if out.EffectiveFrom, err = requiredDate("effective_from", r.EffectiveFrom); err != nil {
		return out, err
	}
	if out.ExpiresAt, err = optionalDate("expires_at", r.ExpiresAt); err != nil {
		return out, err
	}
	out.Unit = strings.TrimSpace(r.Unit)
	out.RateText = strings.TrimSpace(r.RateText)
	return out, nil
}

func (r ftaRow) toDomain() (domain.FTARate, error) {
	var out domain.FTARate
	var err error
	if out.Code, err = domain.ParseClassificationCode(r.Code); err != nil {
		return out, err
	}
	if out.Country, err = domain.ParseCountryCode(r.Country); err != nil {
		return out, err
	}
	out.Agreement = strings.TrimSpace(r.Agreement)
	if out.Agreement == "" {
		return out, fmt.Errorf("agreement is required")
	}
	rate, err := optionalDecimal("preferential_percent", r.PreferentialRate)
	if err != nil {
		return out, err
	}
	if rate == nil {
		return out, fmt.Errorf("preferential_percent is required")
	}
	out.PreferentialRate = *rate
	if out.EffectiveFrom, err = requiredDate("effective_from", r.EffectiveFrom); err != nil {
		return out, err
	}
	if out.EliminationDate, err = optionalDate("elimination_date", r.EliminationDate); err != nil {
		return out, err
	}
	out.StagingCategory = strings.TrimSpace(r.StagingCategory)
	return out, nil
}

func (r antiDumpRow) toDomain() (domain.AntiDumpingDuty, error) {
	var out domain.AntiDumpingDuty
	var err error
	out.CaseID = strings.TrimSpace(r.CaseID)
	if out.CaseID == "" {
		return out, fmt.Errorf("case_id is required")
	}
	if out.Code, err = domain.ParseClassificationCode(r.Code); err != nil {
		return out, err
	}
	if strings.TrimSpace(r.Country) != "" {
		if out.Country, err = domain.ParseCountryCode(r.Country); err != nil {
			return out, err
		}
	}
	out.DutyType = domain.AntiDumpingType(strings.ToLower(strings.TrimSpace(r.DutyType)))
	switch out.DutyType {
	case domain.AntiDumpingAdValorem, domain.AntiDumpingSpecific, domain.AntiDumpingBoth:
	case "":
		out.DutyType = domain.AntiDumpingAdValorem
	default:
		return out, fmt.Errorf("duty_type %q is not one of ad_valorem, specific, both", r.DutyType)
	}
	if out.AdValorem, err = optionalDecimal("ad_valorem_percent", r.AdValorem); err != nil {
		return out, err
	}
	if out.SpecificAmount, err = optionalDecimal("specific_amount", r.SpecificAmount); err != nil {
		return out, err
	}
	if out.EffectiveFrom, err = requiredDate("effective_from", r.EffectiveFrom); err != nil {
		return out, err
	}
	if out.ExpiresAt, err = optionalDate("expires_at", r.ExpiresAt); err != nil {
		return out, err
	}
	out.Exporter = strings.TrimSpace(r.Exporter)
	out.Unit = strings.TrimSpace(r.Unit)
	out.Active = r.Active == nil || *r.Active
	return out, nil
}

func (r concessionRow) toDomain() (domain.ConcessionExemption, error) {
	var out domain.ConcessionExemption
	var err error
	out.ConcessionNumber = strings.TrimSpace(r.ConcessionNumber)
	if out.ConcessionNumber == "" {
		return out, fmt.Errorf("concession_number is required")
	}
	if out.Code, err = domain.ParseClassificationCode(r.Code); err != nil {
		return out, err
	}
	if out.EffectiveFrom, err = requiredDate("effective_from", r.EffectiveFrom); err != nil {
		return out, err
	}
	if out.ExpiresAt, err = optionalDate("expires_at", r.ExpiresAt); err != nil {
		return out, err
	}
	out.Description = strings.TrimSpace(r.Description)
	out.Current = r.Current == nil || *r.Current
	return out, nil
}

func optionalDecimal(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %q is not a decimal: %w", field, raw, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("%s must not be negative", field)
	}
	return &d, nil
}

func requiredDate(field, raw string) (time.Time, error) {
	t, err := optionalDate(field, raw)
	if err != nil {
		return time.Time{}, err
	}
	if t == nil {
		return time.Time{}, fmt.Errorf("%s is required", field)
	}
	return *t, nil
}

func optionalDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, fmt.Errorf("%s %q must be YYYY-MM-DD: %w", field, raw, err)
	}
	return &t, nil
}
