package appraisal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func sampleRow(id any) SourceRow {
	return SourceRow{
		"id_unico":   id,
		"CILINDRADA": 1600.0,
		"COMBUSTIBL": "Gasolina",
		"NUMERO_CER": 4512.0,
		"SOLICITANT": "Banco  Atlántida",
		"PROPIETARI": "Juan Pérez",
		"MARCA":      "TOYOTA",
		"MODELO":     "COROLLA XLI",
		"A_O":        "2015",
		"KMS":        "12,345",
		"ORIGEN":     "JAPON",
		"COLOR":      "ROJO",
		"PLACAS":     "PCA-1234",
		"NOTA":       "Sin observaciones!",
		"ACCESORIOS": "Radio",
		"VIN_CHASIS": "JT123",
		"__VIN_DE_C": "JT123",
		"__VIN_DE_M": "M-99",
		"VIN_DE_MOT": "M-99",
		"TOTAL_DE_R": "1,5",
		"MODIF_KM":   "0",
		"VALOR_EXTR": 250.0,
		"DESCUENTOS": 100.0,
		"AV_BANC_NU": 8000.0,
		"AVALUO_BAN": 1000.0,
		"_FECHAS_1":  "15/03/2024",
		"AVALUO_DIS": 9500.0,
		"VALOR_GIBS": 210000.0,
		"AV_DIST_NU": 8500.0,
	}
}

func TestTransform_FullRow(t *testing.T) {
	records, stats := NewTransformer().Transform([]SourceRow{sampleRow(7.0)})
	require.Len(t, records, 1)

	rec := records[0]
	require.NotNil(t, rec.AppraisalDate)
	assert.Equal(t, time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC), *rec.AppraisalDate)
	assert.Equal(t, "COROLLA XLI", rec.VehicleDescription)
	assert.Equal(t, "TOYOTA", rec.Brand)
	assert.Equal(t, int64(2015), rec.ModelYear)
	assert.Equal(t, int64(12345), rec.Mileage)
	assert.Equal(t, 1.6, rec.EngineSize)
	assert.Equal(t, "Banco Atlántida", rec.Applicant)
	assert.Equal(t, "Juan Pérez", rec.Owner)
	assert.Equal(t, "Sin observaciones", rec.Notes)
	assert.Equal(t, "PCA-1234", rec.PlateNumber)
	assert.Equal(t, "M-99", rec.EngineNumber)
	assert.Equal(t, "M-99", rec.EngineNumberCard)
	assert.Equal(t, 1.5, rec.TotalDeductions)
	assert.Equal(t, 8500.0, rec.AppraisalValueUSD)
	assert.Equal(t, 210000.0, rec.AppraisalValueTrochez)
	assert.Equal(t, 9500.0, rec.AppraisalValueLowerCost)
	assert.Equal(t, 1000.0, rec.AppraisalValueBank)
	assert.InDelta(t, 900.0, rec.AppraisalValueLowerBank, 1e-9)
	assert.Equal(t, int64(7), rec.Reference)
	assert.Equal(t, 4512.0, rec.Cert)
	assert.Equal(t, DefaultValidityDays, rec.ValidityDays)
	assert.Equal(t, DefaultValidityKms, rec.ValidityKms)

	assert.Equal(t, TransformStats{Input: 1, Valid: 1, Applicant: 1, Owner: 1, Brand: 1}, stats)
}

func TestTransform_RejectsRowsWithoutReference(t *testing.T) {
	rows := []SourceRow{
		sampleRow(int64(1)),
		sampleRow(nil),
		sampleRow("abc"),
		sampleRow("NULL"),
		sampleRow(int64(-4)),
		sampleRow("2"),
	}

	records, stats := NewTransformer().Transform(rows)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Reference)
	assert.Equal(t, int64(2), records[1].Reference)
	assert.Equal(t, 6, stats.Input)
	assert.Equal(t, 2, stats.Valid)
	assert.Equal(t, 4, stats.Rejected)
	assert.Equal(t, stats.Input-stats.Valid, stats.Rejected)
}

func TestTransform_ZeroFillsNumerics(t *testing.T) {
	records, stats := NewTransformer().Transform([]SourceRow{{"id_unico": 3}})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Nil(t, rec.AppraisalDate)
	assert.Equal(t, MinModelYear, rec.ModelYear)
	assert.Zero(t, rec.Mileage)
	assert.Zero(t, rec.EngineSize)
	assert.Zero(t, rec.AppraisalValueBank)
	assert.Zero(t, rec.AppraisalValueLowerBank)
	assert.Zero(t, rec.Cert)
	assert.Empty(t, rec.Brand)
	assert.Empty(t, rec.Applicant)
	assert.Equal(t, DefaultValidityDays, rec.ValidityDays)
	assert.Equal(t, 0, stats.Applicant)
	assert.Equal(t, 0, stats.Brand)
}

func TestTransform_ClampsNegatives(t *testing.T) {
	row := sampleRow(int64(9))
	row["AVALUO_DIS"] = -50.0
	row["VALOR_EXTR"] = "-10"
	row["MODIF_KM"] = -5
	row["AVALUO_BAN"] = "-200"
	row["CILINDRADA"] = -1.5

	records, _ := NewTransformer().Transform([]SourceRow{row})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Zero(t, rec.AppraisalValueLowerCost)
	assert.Zero(t, rec.ExtraValue)
	assert.Zero(t, rec.ModifiedKm)
	assert.Zero(t, rec.EngineSize)
	assert.Zero(t, rec.AppraisalValueBank)
	assert.Zero(t, rec.AppraisalValueLowerBank)
}

func TestSourceRowReference(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
		ok   bool
	}{
		{"int32", int32(7), 7, true},
		{"float", 12.0, 12, true},
		{"string", "3", 3, true},
		{"zero", int64(0), 0, true},
		{"negative", int64(-4), 0, false},
		{"negative string", "-1", 0, false},
		{"nil", nil, 0, false},
		{"garbage", "abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SourceRow{ReferenceColumn: tt.in}.Reference()
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Every record's reference must find its own deductions again.
func TestTransform_ReferencesRelinkDeductions(t *testing.T) {
	rows := []SourceRow{
		{"id_unico": int32(3), "MOTOR1": 10.0},
		{"id_unico": int64(-3), "MOTOR1": 20.0},
		{"id_unico": "8", "FRENOS2": "pastillas"},
	}

	records, stats := NewTransformer().Transform(rows)
	require.Len(t, records, 2)
	assert.Equal(t, 1, stats.Rejected)

	ids := make(map[int64]int64, len(records))
	for i, rec := range records {
		ids[rec.Reference] = int64(100 + i)
	}

	got := ExtractDeductions(rows, ids)
	require.Len(t, got, 2)
	assert.Equal(t, Deduction{ParentID: 100, Reference: 3, Amount: 10, Description: "Motor"}, got[0])
	assert.Equal(t, Deduction{ParentID: 101, Reference: 8, Amount: 0, Description: "pastillas"}, got[1])
}

func TestTransform_InvalidFieldsDegrade(t *testing.T) {
	row := sampleRow(int64(4))
	row["A_O"] = 1850
	row["KMS"] = "10000km"
	row["CILINDRADA"] = 500.0
	row["_FECHAS_1"] = "no date"

	records, _ := NewTransformer().Transform([]SourceRow{row})
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, MinModelYear, rec.ModelYear)
	assert.Zero(t, rec.Mileage)
	assert.Zero(t, rec.EngineSize)
	assert.Nil(t, rec.AppraisalDate)
}

func TestTransform_Deterministic(t *testing.T) {
	rows := []SourceRow{sampleRow(1), sampleRow(2), sampleRow(nil), sampleRow(3)}
	tr := NewTransformer()

	first, firstStats := tr.Transform(rows)
	second, secondStats := tr.Transform(rows)
	assert.Equal(t, first, second)
	assert.Equal(t, firstStats, secondStats)
}

func TestTransform_Empty(t *testing.T) {
	records, stats := NewTransformer().Transform(nil)
	assert.Empty(t, records)
	assert.Equal(t, TransformStats{}, stats)
}

func TestRecordCopyRow(t *testing.T) {
	records, _ := NewTransformer().Transform([]SourceRow{sampleRow(11)})
	require.Len(t, records, 1)

	row := records[0].CopyRow()
	require.Len(t, row, len(AppraisalColumns))

	byCol := make(map[string]any, len(row))
	for i, col := range AppraisalColumns {
		byCol[col] = row[i]
	}
	assert.Equal(t, 11.0, byCol["referencia_original"])
	assert.Equal(t, "TOYOTA", byCol["brand"])
	assert.Equal(t, int64(30), byCol["validity_days"])
	assert.IsType(t, time.Time{}, byCol["appraisal_date"])
}

func TestRecordCopyRow_NilDate(t *testing.T) {
	row := Record{}.CopyRow()
	assert.Nil(t, row[0])
}
