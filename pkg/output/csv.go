package output

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"

	"github.com/iwvelando/land-cashflow/pkg/schedule"
)

// CSV writes one row per line item plus section subtotal and net cash flow
// rows. Amounts are plain numbers with two decimals.
func CSV(w io.Writer, s *schedule.Schedule) error {
	cw := csv.NewWriter(w)
	for _, record := range Table(s) {
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// CsvString returns the CSV rendering of the schedule.
func CsvString(s *schedule.Schedule) (string, error) {
	var buf bytes.Buffer
	if err := CSV(&buf, s); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Table flattens the schedule into string rows; the first row is the header.
func Table(s *schedule.Schedule) [][]string {
	header := []string{"section", "line", "category", "stage", "container"}
	for _, p := range s.Periods {
		header = append(header, p.Label)
	}
	header = append(header, "total")
	rows := [][]string{header}

	for _, sec := range s.Sections {
		for _, li := range sec.LineItems {
			rows = append(rows, tableRow(sec.Name, li.Label, li.Category, li.Stage, li.ContainerName, lineAmounts(li, s), li.Total))
			for _, child := range li.Children {
				rows = append(rows, tableRow(sec.Name, li.Label+" / "+child.Label, child.Category, child.Stage, child.ContainerName, lineAmounts(child, s), child.Total))
			}
		}
		rows = append(rows, tableRow(sec.Name, "Subtotal", "", "", "", sec.Subtotals, sec.Total))
	}
	rows = append(rows, tableRow("Net Cash Flow", "", "", "", "", s.NetCashFlow, sum(s.NetCashFlow)))
	return rows
}

func tableRow(section, line, category, stage, container string, amounts []float64, total float64) []string {
	row := []string{section, line, category, stage, container}
	for _, a := range amounts {
		row = append(row, amount(a))
	}
	return append(row, amount(total))
}

func amount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
