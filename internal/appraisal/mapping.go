package appraisal

// Kind selects the normalizer applied to a mapped column.
type Kind string

const (
	KindText       Kind = "text"
	KindFloat      Kind = "float"
	KindInt        Kind = "int"
	KindDate       Kind = "date"
	KindEngineSize Kind = "engine_size"
	KindModelYear  Kind = "model_year"
	KindMileage    Kind = "mileage"
)

// Numeric reports whether targets of this kind are zero-filled and clamped
// during the repair pass.
func (k Kind) Numeric() bool {
	switch k {
	case KindFloat, KindInt, KindEngineSize, KindModelYear, KindMileage:
		return true
	}
	return false
}

// Normalize applies the kind's normalizer. It returns nil when the value is
// missing or invalid, otherwise a string, float64, int64 or time.Time.
func (k Kind) Normalize(v any) any {
	switch k {
	case KindText:
		return NormalizeText(v)
	case KindFloat:
		return optional(NormalizeFloat(v))
	case KindInt:
		return optional(NormalizeInt(v))
	case KindDate:
		return optional(NormalizeDate(v))
	case KindEngineSize:
		return optional(NormalizeEngineSize(v))
	case KindModelYear:
		return optional(NormalizeModelYear(v))
	case KindMileage:
		return optional(NormalizeMileage(v))
	}
	return nil
}

func optional[T any](v T, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

// FieldMapping maps one legacy staging column onto one vehicle_appraisal column.
type FieldMapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Kind   Kind   `yaml:"kind"`
}

// Target column names referenced by the repair and derive passes.
const (
	colReference      = "referencia_original"
	colModelYear      = "model_year"
	colValueBank      = "apprasail_value_bank"
	colValueLowerBank = "apprasail_value_lower_bank"
)

// ORIGEN is extracted but deliberately unmapped.
var mappings = []FieldMapping{
	{Source: "CILINDRADA", Target: "engine_size", Kind: KindEngineSize},
	{Source: "COMBUSTIBL", Target: "fuel_type", Kind: KindText},
	{Source: ReferenceColumn, Target: colReference, Kind: KindInt},
	{Source: "NUMERO_CER", Target: "cert", Kind: KindFloat},
	{Source: "SOLICITANT", Target: "applicant", Kind: KindText},
	{Source: "PROPIETARI", Target: "owner", Kind: KindText},
	{Source: "MARCA", Target: "brand", Kind: KindText},
	{Source: "MODELO", Target: "vehicle_description", Kind: KindText},
	{Source: "A_O", Target: colModelYear, Kind: KindModelYear},
	{Source: "KMS", Target: "mileage", Kind: KindMileage},
	{Source: "COLOR", Target: "color", Kind: KindText},
	{Source: "PLACAS", Target: "plate_number", Kind: KindText},
	{Source: "NOTA", Target: "notes", Kind: KindText},
	{Source: "ACCESORIOS", Target: "extras", Kind: KindText},
	{Source: "VIN_CHASIS", Target: "vin", Kind: KindText},
	{Source: "__VIN_DE_C", Target: "vin_card", Kind: KindText},
	{Source: "__VIN_DE_M", Target: "engine_number", Kind: KindText},
	{Source: "VIN_DE_MOT", Target: "engine_number_card", Kind: KindText},
	{Source: "TOTAL_DE_R", Target: "total_deductions", Kind: KindFloat},
	{Source: "MODIF_KM", Target: "modified_km", Kind: KindInt},
	{Source: "VALOR_EXTR", Target: "extra_value", Kind: KindFloat},
	{Source: "DESCUENTOS", Target: "discounts", Kind: KindFloat},
	{Source: "AV_BANC_NU", Target: "bank_value_in_dollars", Kind: KindFloat},
	{Source: "AVALUO_BAN", Target: colValueBank, Kind: KindFloat},
	{Source: "_FECHAS_1", Target: "appraisal_date", Kind: KindDate},
	{Source: "AVALUO_DIS", Target: "apprasail_value_lower_cost", Kind: KindFloat},
	{Source: "VALOR_GIBS", Target: "appraisal_value_trochez", Kind: KindFloat},
	{Source: "AV_DIST_NU", Target: "appraisal_value_usd", Kind: KindFloat},
}

// Mappings returns a copy of the column mapping table in application order.
func Mappings() []FieldMapping {
	out := make([]FieldMapping, len(mappings))
	copy(out, mappings)
	return out
}

// DeductionRule pairs a legacy amount column with its description column.
// Label is used when the description is blank. AmountColumn may be empty.
type DeductionRule struct {
	AmountColumn      string `yaml:"amount,omitempty"`
	DescriptionColumn string `yaml:"description"`
	Label             string `yaml:"label"`
}

var deductionRules = []DeductionRule{
	{AmountColumn: "MOTOR1", DescriptionColumn: "MOTOR2", Label: "Motor"},
	{AmountColumn: "TRANSMISIO", DescriptionColumn: "TRANSMICIO", Label: "Transmisión"},
	{AmountColumn: "SUSPENSION", DescriptionColumn: "SUSPENSIO2", Label: "Suspensión"},
	{AmountColumn: "DIRECCION", DescriptionColumn: "DIRECCION2", Label: "Dirección"},
	{AmountColumn: "FRENOS", DescriptionColumn: "FRENOS2", Label: "Frenos"},
	{AmountColumn: "LLANTAS", DescriptionColumn: "RUEDAS", Label: "Llantas"},
	{AmountColumn: "SIST_ELECT", DescriptionColumn: "SISTELEC2", Label: "Sistema Eléctrico"},
	{DescriptionColumn: "INTYACC2", Label: "Interior y Accesorios"},
}

// DeductionRules returns a copy of the deduction column triples.
func DeductionRules() []DeductionRule {
	out := make([]DeductionRule, len(deductionRules))
	copy(out, deductionRules)
	return out
}

// SourceColumns lists every staging column the ETL reads, in SELECT order.
var SourceColumns = []string{
	ReferenceColumn,
	"CILINDRADA", "COMBUSTIBL", "NUMERO_CER", "SOLICITANT", "PROPIETARI",
	"MARCA", "MODELO", "A_O", "KMS", "ORIGEN", "COLOR", "PLACAS", "NOTA",
	"ACCESORIOS", "VIN_CHASIS", "__VIN_DE_C", "__VIN_DE_M", "VIN_DE_MOT",
	"TOTAL_DE_R", "MODIF_KM", "VALOR_EXTR", "DESCUENTOS", "AV_BANC_NU",
	"AVALUO_BAN", "_FECHAS_1", "AVALUO_DIS", "VALOR_GIBS", "AV_DIST_NU",
	"MOTOR1", "MOTOR2", "TRANSMISIO", "TRANSMICIO", "SUSPENSION", "SUSPENSIO2",
	"DIRECCION", "DIRECCION2", "FRENOS", "FRENOS2", "LLANTAS", "RUEDAS",
	"SIST_ELECT", "SISTELEC2", "INTYACC2",
}
