/*
Package export writes and reads the CSV and JSON formats users download:
the test history report and a single recommendation bundle.
*/
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"dropcheck/internal/health"
)

// HistoryFilename is the suggested download name for the history report.
const HistoryFilename = "dropcheck_report_history.csv"

const dateLayout = "2006-01-02"

var HistoryHeader = []string{"date", "hemoglobin_g_dL", "glucose_mg_dL", "crp_mg_L"}

var ErrBadFormat = errors.New("unrecognized export format")

// HistoryRow is one line of the history report.
type HistoryRow struct {
	Date time.Time
	health.LabValues
}

// WriteHistoryCSV writes the results in the order given.
func WriteHistoryCSV(w io.Writer, results []health.TestResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(HistoryHeader); err != nil {
		return err
	}
	for _, r := range results {
		record := []string{
			r.TakenAt.UTC().Format(dateLayout),
			formatFloat(r.Hemoglobin),
			formatFloat(r.Glucose),
			formatFloat(r.CRP),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadHistoryCSV parses a report written by WriteHistoryCSV.
func ReadHistoryCSV(r io.Reader) ([]HistoryRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(HistoryHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
	}
	if strings.Join(header, ",") != strings.Join(HistoryHeader, ",") {
		return nil, fmt.Errorf("%w: unexpected header %q", ErrBadFormat, strings.Join(header, ","))
	}

	rows := []HistoryRow{}
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadFormat, err)
		}

		date, err := time.Parse(dateLayout, record[0])
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: bad date %q", ErrBadFormat, line, record[0])
		}
		var values [3]float64
		for i := range values {
			v, err := strconv.ParseFloat(record[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad %s %q", ErrBadFormat, line, HistoryHeader[i+1], record[i+1])
			}
			values[i] = v
		}
		rows = append(rows, HistoryRow{
			Date:      date,
			LabValues: health.LabValues{Hemoglobin: values[0], Glucose: values[1], CRP: values[2]},
		})
	}
	return rows, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
