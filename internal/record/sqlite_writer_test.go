package record

import (
	"errors"
	"math"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"serial-monitor/internal/telemetry"
)

func TestSQLiteWriterStoresChannelValues(t *testing.T) {
	w, err := OpenSQLite(filepath.Join(t.TempDir(), "rec.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer w.Close()

	rows := []telemetry.Sample{
		{SessionID: "a", Timestamp: time.UnixMilli(1000), Values: []float64{1, 2, 3}},
		{SessionID: "a", Timestamp: time.UnixMilli(2000), Values: []float64{4, 5, 6}},
		{SessionID: "b", Timestamp: time.UnixMilli(2000), Values: []float64{7}},
	}
	if err := WriteAll(w, rows); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	n, err := w.Count("a")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 6 {
		t.Fatalf("expected 6 values for session a, got %d", n)
	}
}

func TestSQLiteWriterStoresNonFiniteAsNull(t *testing.T) {
	w, err := OpenSQLite(filepath.Join(t.TempDir(), "rec.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer w.Close()

	rows := []telemetry.Sample{
		{SessionID: "a", Timestamp: time.UnixMilli(1000), Values: []float64{1, math.NaN()}},
		{SessionID: "a", Timestamp: time.UnixMilli(2000), Values: []float64{math.Inf(1), 4}},
	}
	if err := w.WriteBatch(rows); err != nil {
		t.Fatalf("WriteBatch: %v", err)
	}
	n, err := w.Count("a")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 values, got %d", n)
	}
	var nulls int
	if err := w.db.QueryRow(`SELECT COUNT(*) FROM samples WHERE value IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count nulls: %v", err)
	}
	if nulls != 2 {
		t.Fatalf("expected 2 NULL values, got %d", nulls)
	}
}

func TestSQLiteWriterRollsBackOnInsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS samples").WillReturnResult(sqlmock.NewResult(0, 0))
	w, err := NewSQLiteWriter(db)
	if err != nil {
		t.Fatalf("NewSQLiteWriter: %v", err)
	}

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta(insertSample))
	prep.ExpectExec().WithArgs("s", int64(1000), 0, 1.0).WillReturnResult(sqlmock.NewResult(1, 1))
	prep.ExpectExec().WithArgs("s", int64(1000), 1, 2.0).WillReturnError(errors.New("disk I/O error"))
	mock.ExpectRollback()

	err = w.Write(telemetry.Sample{SessionID: "s", Timestamp: time.UnixMilli(1000), Values: []float64{1, 2}})
	if err == nil {
		t.Fatalf("expected insert error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestNewSQLiteWriterSchemaError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("CREATE TABLE").WillReturnError(errors.New("read-only"))
	if _, err := NewSQLiteWriter(db); err == nil {
		t.Fatalf("expected schema error")
	}
}
