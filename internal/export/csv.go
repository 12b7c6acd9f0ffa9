// Package export renders import history for reporting, as CSV or XLSX.
package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"rcn2sql/internal/domain"
)

// columns defines the header row for import-history exports.
var columns = []string{
	"ID",
	"Run UUID",
	"Source File",
	"File Size",
	"Status",
	"Started At",
	"Completed At",
	"Records Inserted",
	"Duration Seconds",
	"Error Message",
}

// Writer wraps csv.Writer for exporting import attempts as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteAttempts converts attempts to CSV rows and writes them.
func (w *Writer) WriteAttempts(attempts []domain.ImportAttempt) error {
	for i := range attempts {
		if err := w.csv.Write(attemptToRow(&attempts[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	return w.csv.Error()
}

func attemptToRow(a *domain.ImportAttempt) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		a.RunID,
		a.SourceFile,
		formatInt(a.FileSize),
		string(a.Status),
		deref(a.StartedAt),
		deref(a.CompletedAt),
		formatInt(a.RecordsInserted),
		formatFloat(a.DurationSeconds),
		deref(a.ErrorMessage),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
