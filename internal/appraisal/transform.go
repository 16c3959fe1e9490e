package appraisal

import (
	"time"

	"go.uber.org/zap"
)

// LowerBankFactor derives apprasail_value_lower_bank from apprasail_value_bank.
const LowerBankFactor = 0.9

// TransformStats summarizes one Transform call.
type TransformStats struct {
	Input     int `json:"input"`
	Valid     int `json:"valid"`
	Rejected  int `json:"rejected"`
	Applicant int `json:"with_applicant"`
	Owner     int `json:"with_owner"`
	Brand     int `json:"with_brand"`
}

// Transformer applies a mapping table to staging rows.
type Transformer struct {
	mappings []FieldMapping
}

// NewTransformer returns a Transformer over the standard mapping table.
func NewTransformer() *Transformer {
	return &Transformer{mappings: Mappings()}
}

// Transform cleans rows into records. Rows without a usable reference, as
// reported by SourceRow.Reference, are rejected; every other row yields exactly one record, in input order.
// Malformed values degrade to zero or empty and never abort the batch.
func (t *Transformer) Transform(rows []SourceRow) ([]Record, TransformStats) {
	log := zap.L().With(zap.String("component", "appraisal.transform"))

	stats := TransformStats{Input: len(rows)}
	records := make([]Record, 0, len(rows))

	for _, row := range rows {
		ref, ok := row.Reference()
		if !ok {
			stats.Rejected++
			continue
		}
		vals := t.normalize(row)
		vals[colReference] = ref
		t.repair(vals)

		rec := buildRecord(vals)
		if rec.Applicant != "" {
			stats.Applicant++
		}
		if rec.Owner != "" {
			stats.Owner++
		}
		if rec.Brand != "" {
			stats.Brand++
		}
		records = append(records, rec)
	}
	stats.Valid = len(records)

	log.Info("rows transformed",
		zap.Int("input", stats.Input),
		zap.Int("valid", stats.Valid),
		zap.Int("rejected", stats.Rejected),
		zap.Int("with_applicant", stats.Applicant),
		zap.Int("with_owner", stats.Owner),
		zap.Int("with_brand", stats.Brand),
	)

	return records, stats
}

func (t *Transformer) normalize(row SourceRow) map[string]any {
	vals := make(map[string]any, len(t.mappings)+1)
	for _, m := range t.mappings {
		vals[m.Target] = m.Kind.Normalize(row[m.Source])
	}
	return vals
}

// repair zero-fills and clamps numeric targets, then derives the lower bank
// value from the already zero-filled bank value. The reference is left as
// read so records and deductions resolve the same key.
func (t *Transformer) repair(vals map[string]any) {
	for _, m := range t.mappings {
		if !m.Kind.Numeric() || m.Target == colReference {
			continue
		}
		switch v := vals[m.Target].(type) {
		case nil:
			if m.Kind == KindFloat || m.Kind == KindEngineSize {
				vals[m.Target] = float64(0)
			} else {
				vals[m.Target] = int64(0)
			}
		case float64:
			if v < 0 {
				vals[m.Target] = float64(0)
			}
		case int64:
			if v < 0 {
				vals[m.Target] = int64(0)
			}
		}
	}

	if year, _ := vals[colModelYear].(int64); year == 0 {
		vals[colModelYear] = MinModelYear
	}

	bank, _ := vals[colValueBank].(float64)
	vals[colValueLowerBank] = bank * LowerBankFactor
}

func buildRecord(vals map[string]any) Record {
	rec := Record{
		VehicleDescription:      textOf(vals, "vehicle_description"),
		Brand:                   textOf(vals, "brand"),
		ModelYear:               intOf(vals, colModelYear),
		Color:                   textOf(vals, "color"),
		Mileage:                 intOf(vals, "mileage"),
		FuelType:                textOf(vals, "fuel_type"),
		EngineSize:              floatOf(vals, "engine_size"),
		PlateNumber:             textOf(vals, "plate_number"),
		Applicant:               textOf(vals, "applicant"),
		Owner:                   textOf(vals, "owner"),
		AppraisalValueUSD:       floatOf(vals, "appraisal_value_usd"),
		AppraisalValueTrochez:   floatOf(vals, "appraisal_value_trochez"),
		VIN:                     textOf(vals, "vin"),
		EngineNumber:            textOf(vals, "engine_number"),
		Notes:                   textOf(vals, "notes"),
		ValidityDays:            DefaultValidityDays,
		ValidityKms:             DefaultValidityKms,
		AppraisalValueLowerCost: floatOf(vals, "apprasail_value_lower_cost"),
		AppraisalValueBank:      floatOf(vals, colValueBank),
		AppraisalValueLowerBank: floatOf(vals, colValueLowerBank),
		Extras:                  textOf(vals, "extras"),
		VINCard:                 textOf(vals, "vin_card"),
		EngineNumberCard:        textOf(vals, "engine_number_card"),
		TotalDeductions:         floatOf(vals, "total_deductions"),
		ModifiedKm:              intOf(vals, "modified_km"),
		ExtraValue:              floatOf(vals, "extra_value"),
		Discounts:               floatOf(vals, "discounts"),
		BankValueInDollars:      floatOf(vals, "bank_value_in_dollars"),
		Reference:               intOf(vals, colReference),
		Cert:                    floatOf(vals, "cert"),
	}
	if d, ok := vals["appraisal_date"].(time.Time); ok {
		rec.AppraisalDate = &d
	}
	return rec
}

func textOf(vals map[string]any, key string) string {
	s, _ := vals[key].(string)
	return s
}

func floatOf(vals map[string]any, key string) float64 {
	f, _ := vals[key].(float64)
	return f
}

func intOf(vals map[string]any, key string) int64 {
	n, _ := vals[key].(int64)
	return n
}
