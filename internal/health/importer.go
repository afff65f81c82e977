package health

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ziadkadry99/healthagent/internal/progress"
)

// requiredColumns must appear in the CSV header; recorded_at and note are optional.
var requiredColumns = []string{"weight_kg", "body_fat_percent", "bmi", "muscle_percent", "water_percent"}

// ImportResult summarizes a CSV import.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []error
}

// RowError reports a rejected CSV row. Line is 1-based and counts the header.
type RowError struct {
	Line int
	Err  error
}

func (e *RowError) Error() string { return fmt.Sprintf("line %d: %v", e.Line, e.Err) }

func (e *RowError) Unwrap() error { return e.Err }

// ImportCSV reads metrics from r and records each valid row for userID. Invalid
// rows are skipped and reported in the result; I/O and store failures abort.
func (s *Store) ImportCSV(ctx context.Context, userID int64, r io.Reader, rep progress.Reporter) (*ImportResult, error) {
	if rep == nil {
		rep = progress.Nop{}
	}
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reading csv: empty file")
	}

	index := map[string]int{}
	for i, name := range records[0] {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("reading csv: missing column %q", col)
		}
	}

	rows := records[1:]
	res := &ImportResult{}
	rep.Start(len(rows))
	defer rep.Finish()

	for i, row := range rows {
		line := i + 2
		in, err := parseMetricRow(index, row)
		if err == nil {
			_, err = s.CreateMetric(ctx, userID, in)
		}
		var verr *ValidationError
		switch {
		case err == nil:
			res.Imported++
		case errors.As(err, &verr), errors.Is(err, errBadCell):
			res.Skipped++
			res.Errors = append(res.Errors, &RowError{Line: line, Err: err})
		default:
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		rep.Update(i+1, fmt.Sprintf("line %d", line))
	}
	return res, nil
}

var errBadCell = errors.New("bad cell")

func parseMetricRow(index map[string]int, row []string) (MetricInput, error) {
	cell := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var in MetricInput
	targets := []*float64{&in.WeightKg, &in.BodyFatPercent, &in.BMI, &in.MusclePercent, &in.WaterPercent}
	for i, col := range requiredColumns {
		v, err := strconv.ParseFloat(strings.TrimSuffix(cell(col), "%"), 64)
		if err != nil {
			return in, fmt.Errorf("%w: %s %q", errBadCell, col, cell(col))
		}
		*targets[i] = v
	}

	if raw := cell("recorded_at"); raw != "" {
		t, err := parseRecordedAt(raw)
		if err != nil {
			return in, fmt.Errorf("%w: recorded_at %q", errBadCell, raw)
		}
		in.RecordedAt = t
	}
	if note := cell("note"); note != "" {
		in.Note = &note
	}
	return in, nil
}

func parseRecordedAt(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, time.DateTime, time.DateOnly} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", raw)
}
