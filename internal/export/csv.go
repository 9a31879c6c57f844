// Package export renders a report as a CSV download: one row per ranked
// candidate, in ranked order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"callscan/pkg/model"
)

// Header is the fixed column order of the export
var Header = []string{
	"Symbol",
	"Underlying Price",
	"Expiry Date",
	"DTE",
	"Strike Price",
	"Bid",
	"Ask",
	"Premium (Mid)",
	"Break Even",
	"ARIF",
	"Stability Score",
	"Volume",
	"Open Interest",
	"IV",
	"Delta",
	"Gamma",
	"Theta",
	"Vega",
	"Rho",
	"Intrinsic Value",
}

// Rows flattens the report into CSV records, header first. IV goes out as
// a decimal fraction rather than the displayed percentage. Vega and rho
// are not carried through extraction, and intrinsic value is zero for the
// out-of-the-money strikes the filters admit.
func Rows(report *model.Report) [][]string {
	rows := make([][]string, 0, len(report.Ranked)+1)
	rows = append(rows, Header)

	for _, c := range report.Ranked {
		rows = append(rows, []string{
			report.Symbol,
			f(report.SpotPrice),
			c.Expiration,
			strconv.Itoa(c.DTE),
			f(c.Strike),
			f(c.Bid),
			f(c.Ask),
			f(c.Premium),
			f(c.BreakEven()),
			f(c.ARIF),
			f(c.Stability),
			strconv.FormatInt(c.Volume, 10),
			strconv.FormatInt(c.OpenInterest, 10),
			f(c.IV / 100),
			f(c.Delta),
			f(c.Gamma),
			f(c.Theta),
			"0",
			"0",
			"0",
		})
	}

	return rows
}

func f(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Write streams the report as CSV
func Write(w io.Writer, report *model.Report) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(Rows(report)); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}

// Filename builds the download name for a report generated at t
func Filename(symbol string, t time.Time) string {
	return fmt.Sprintf("%s_Covered_Calls_%s.csv", strings.ToUpper(symbol), t.Format("20060102"))
}
