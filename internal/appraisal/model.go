// Package appraisal cleans legacy DBF appraisal rows into vehicle_appraisal
// records and their appraisal_deductions children.
package appraisal

import "time"

// ReferenceColumn is the staging column holding the synthetic sequential key
// assigned when the DBF snapshot was loaded.
const ReferenceColumn = "id_unico"

// Fixed policy defaults written on every record.
const (
	DefaultValidityDays int64 = 30
	DefaultValidityKms  int64 = 1000
)

// SourceRow is one staging row keyed by its legacy column name.
// Values keep whatever type the staging table returned.
type SourceRow map[string]any

// Reference returns the row's synthetic key as an integer. Negative keys are
// never assigned by the staging sequence and report false.
func (r SourceRow) Reference() (int64, bool) {
	n, ok := NormalizeInt(r[ReferenceColumn])
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// Record is a cleaned vehicle_appraisal row. Numeric fields are never null
// once a Record leaves the Transformer.
type Record struct {
	AppraisalDate           *time.Time
	VehicleDescription      string
	Brand                   string
	ModelYear               int64
	Color                   string
	Mileage                 int64
	FuelType                string
	EngineSize              float64
	PlateNumber             string
	Applicant               string
	Owner                   string
	AppraisalValueUSD       float64
	AppraisalValueTrochez   float64
	VIN                     string
	EngineNumber            string
	Notes                   string
	ValidityDays            int64
	ValidityKms             int64
	AppraisalValueLowerCost float64
	AppraisalValueBank      float64
	AppraisalValueLowerBank float64
	Extras                  string
	VINCard                 string
	EngineNumberCard        string
	TotalDeductions         float64
	ModifiedKm              int64
	ExtraValue              float64
	Discounts               float64
	BankValueInDollars      float64
	Reference               int64
	Cert                    float64
}

// AppraisalColumns lists the vehicle_appraisal columns written by the loader,
// in the order produced by Record.CopyRow.
var AppraisalColumns = []string{
	"appraisal_date", "vehicle_description", "brand", "model_year", "color",
	"mileage", "fuel_type", "engine_size", "plate_number", "applicant",
	"owner", "appraisal_value_usd", "appraisal_value_trochez", "vin",
	"engine_number", "notes", "validity_days", "validity_kms",
	"apprasail_value_lower_cost", "apprasail_value_bank",
	"apprasail_value_lower_bank", "extras", "vin_card", "engine_number_card",
	"total_deductions", "modified_km", "extra_value", "discounts", "bank_value_in_dollars",
	"referencia_original", "cert",
}

// CopyRow returns the record's values aligned with AppraisalColumns.
func (r Record) CopyRow() []any {
	var date any
	if r.AppraisalDate != nil {
		date = *r.AppraisalDate
	}
	return []any{
		date, r.VehicleDescription, r.Brand, r.ModelYear, r.Color,
		r.Mileage, r.FuelType, r.EngineSize, r.PlateNumber, r.Applicant,
		r.Owner, r.AppraisalValueUSD, r.AppraisalValueTrochez, r.VIN,
		r.EngineNumber, r.Notes, r.ValidityDays, r.ValidityKms,
		r.AppraisalValueLowerCost, r.AppraisalValueBank,
		r.AppraisalValueLowerBank, r.Extras, r.VINCard, r.EngineNumberCard,
		r.TotalDeductions, r.ModifiedKm, r.ExtraValue, r.Discounts, r.BankValueInDollars,
		float64(r.Reference), r.Cert,
	}
}

// Deduction is one appraisal_deductions row derived from a legacy
// amount/description column pair.
type Deduction struct {
	ParentID    int64
	Reference   int64
	Amount      float64
	Description string
}

// DeductionColumns lists the appraisal_deductions columns written by the loader.
var DeductionColumns = []string{"vehicle_appraisal_id", "amount", "description"}

// CopyRow returns the deduction's values aligned with DeductionColumns.
func (d Deduction) CopyRow() []any {
	return []any{d.ParentID, d.Amount, d.Description}
}
