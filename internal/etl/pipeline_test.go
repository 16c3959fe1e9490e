package etl

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/sells-group/appraisal-etl/internal/appraisal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var (
	stagingCols   = []string{"id_unico", "MARCA", "A_O", "AVALUO_BAN", "MOTOR1", "MOTOR2", "FRENOS2"}
	appraisalDest = pgx.Identifier{"public", "vehicle_appraisal"}
	deductionDest = pgx.Identifier{"public", "appraisal_deductions"}
)

func testOptions() Options {
	return Options{
		Schema:          "public",
		SourceTable:     "mi_tabla",
		ChunkSize:       2000,
		LookupBatchSize: 100,
		FallbackLimit:   1000,
		RunID:           "run-test",
	}
}

func expectStaging(mock pgxmock.PgxPoolIface, rows *pgxmock.Rows) {
	for range 2 {
		cols := pgxmock.NewRows([]string{"column_name"})
		for _, c := range stagingCols {
			cols.AddRow(c)
		}
		mock.ExpectQuery("information_schema.columns").WithArgs("public", "mi_tabla").WillReturnRows(cols)
	}
	mock.ExpectQuery(`SELECT "id_unico"`).WillReturnRows(rows)
}

func sourceRows() *pgxmock.Rows {
	return pgxmock.NewRows(stagingCols).
		AddRow(int32(1), "TOYOTA", int64(2015), 1000.0, 150.0, "aceite", nil).
		AddRow(int32(2), "KIA", nil, nil, nil, nil, "pastillas")
}

func expectLookup(mock pgxmock.PgxPoolIface) {
	mock.ExpectQuery("ANY").
		WithArgs([]float64{1, 2}).
		WillReturnRows(pgxmock.NewRows([]string{"vehicle_appraisal_id", "referencia_original"}).
			AddRow(int64(10), float64(1)).
			AddRow(int64(11), float64(2)))
}

func expectCount(mock pgxmock.PgxPoolIface, n int64) {
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM "public"."vehicle_appraisal"`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(n))
}

func TestRun_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, sourceRows())
	mock.ExpectCopyFrom(appraisalDest, appraisal.AppraisalColumns).WillReturnResult(2)
	expectLookup(mock)
	mock.ExpectCopyFrom(deductionDest, appraisal.DeductionColumns).WillReturnResult(2)
	expectCount(mock, 42)

	res, err := New(mock, testOptions()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "run-test", res.RunID)
	assert.Equal(t, 2, res.SourceRows)
	assert.Equal(t, 2, res.Transform.Valid)
	assert.Equal(t, 0, res.Transform.Rejected)
	assert.Equal(t, int64(2), res.AppraisalsLoaded)
	assert.Equal(t, 2, res.ReferencesResolved)
	assert.Equal(t, 2, res.Deductions)
	assert.Equal(t, int64(2), res.DeductionsLoaded)
	assert.Empty(t, res.DeductionError)
	assert.Equal(t, int64(42), res.TotalAppraisals)
	assert.Empty(t, res.VerifyError)
	assert.Positive(t, res.Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_DeductionLoadFailureIsNotFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	core, logs := observer.New(zapcore.WarnLevel)
	undo := zap.ReplaceGlobals(zap.New(core))
	defer undo()

	expectStaging(mock, sourceRows())
	mock.ExpectCopyFrom(appraisalDest, appraisal.AppraisalColumns).WillReturnResult(2)
	expectLookup(mock)
	mock.ExpectCopyFrom(deductionDest, appraisal.DeductionColumns).
		WillReturnError(fmt.Errorf("violates foreign key constraint"))
	expectCount(mock, 2)

	res, err := New(mock, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.DeductionError, "violates foreign key constraint")
	assert.Zero(t, res.DeductionsLoaded)
	assert.Equal(t, int64(2), res.AppraisalsLoaded)
	assert.NoError(t, mock.ExpectationsWereMet())

	warned := logs.FilterMessage("deduction load failed, appraisals were kept").All()
	require.Len(t, warned, 1)
	assert.Equal(t, "run-test", warned[0].ContextMap()["run_id"])
}

func TestRun_ReconcileFailureSkipsDeductions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, sourceRows())
	mock.ExpectCopyFrom(appraisalDest, appraisal.AppraisalColumns).WillReturnResult(2)
	mock.ExpectQuery("ANY").
		WithArgs([]float64{1, 2}).
		WillReturnError(fmt.Errorf("connection reset by peer"))
	expectCount(mock, 2)

	res, err := New(mock, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.ReferencesResolved)
	assert.Zero(t, res.Deductions)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_VerifyFailureIsNotFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, sourceRows())
	mock.ExpectCopyFrom(appraisalDest, appraisal.AppraisalColumns).WillReturnResult(2)
	expectLookup(mock)
	mock.ExpectCopyFrom(deductionDest, appraisal.DeductionColumns).WillReturnResult(2)
	mock.ExpectQuery("SELECT COUNT").WillReturnError(fmt.Errorf("statement timeout"))

	res, err := New(mock, testOptions()).Run(context.Background())
	require.NoError(t, err)
	assert.Contains(t, res.VerifyError, "etl: count")
	assert.Zero(t, res.TotalAppraisals)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_NoSourceRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, pgxmock.NewRows(stagingCols))

	res, err := New(mock, testOptions()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSourceRows))
	assert.Zero(t, res.SourceRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_NoValidRecords(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows(stagingCols).
		AddRow("abc", "TOYOTA", nil, nil, nil, nil, nil).
		AddRow("NULL", "KIA", nil, nil, nil, nil, nil)
	expectStaging(mock, rows)

	res, err := New(mock, testOptions()).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoValidRecords))
	assert.Equal(t, 2, res.Transform.Rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ParentLoadFailureIsFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, sourceRows())
	mock.ExpectCopyFrom(appraisalDest, appraisal.AppraisalColumns).
		WillReturnError(fmt.Errorf("numeric field overflow"))

	_, err = New(mock, testOptions()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etl: load appraisals")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRun_ExtractFailureIsFatal(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("information_schema.columns").
		WithArgs("public", "mi_tabla").
		WillReturnError(fmt.Errorf("password authentication failed"))

	_, err = New(mock, testOptions()).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "etl: prepare staging table")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNew_Defaults(t *testing.T) {
	p := New(nil, Options{})
	assert.Equal(t, "public", p.opts.Schema)
	assert.Equal(t, "mi_tabla", p.opts.SourceTable)
	assert.Zero(t, p.reconciler.FallbackLimit)
}

func TestRun_GeneratesRunID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectStaging(mock, pgxmock.NewRows(stagingCols))

	opts := testOptions()
	opts.RunID = ""
	res, _ := New(mock, opts).Run(context.Background())
	assert.Len(t, res.RunID, 36)
}

func TestResult_Metadata(t *testing.T) {
	r := &Result{
		SourceRows:     10,
		Transform:      appraisal.TransformStats{Valid: 8, Rejected: 2},
		DeductionError: "boom",
	}
	m := r.Metadata()
	assert.Equal(t, 10, m["source_rows"])
	assert.Equal(t, 2, m["rejected"])
	assert.Equal(t, "boom", m["deduction_error"])
	assert.NotContains(t, m, "verify_error")
}
