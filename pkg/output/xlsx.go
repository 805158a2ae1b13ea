package output

import (
	"fmt"

	"github.com/iwvelando/land-cashflow/pkg/format"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
	"github.com/xuri/excelize/v2"
)

const (
	scheduleSheet = "Cash Flow"
	summarySheet  = "Summary"
	amountFormat  = "#,##0.00;[Red]-#,##0.00"
)

// Workbook builds an Excel workbook with the schedule on one sheet and the
// summary metrics on another. The caller must Close it.
func Workbook(s *schedule.Schedule) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", scheduleSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}
	if err := writeSchedule(f, s); err != nil {
		_ = f.Close()
		return nil, err
	}
	if err := writeSummary(f, s.Summary); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeSchedule(f *excelize.File, s *schedule.Schedule) error {
	amountStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(amountFormat)})
	if err != nil {
		return fmt.Errorf("creating amount style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: strPtr(amountFormat)})
	if err != nil {
		return fmt.Errorf("creating subtotal style: %w", err)
	}

	rows := Table(s)
	lastCol := len(rows[0])
	for r, record := range rows {
		rowNum := r + 1
		for c, value := range record {
			cell, err := excelize.CoordinatesToCellName(c+1, rowNum)
			if err != nil {
				return err
			}
			// Amount columns start after the five descriptive columns.
			if r > 0 && c >= 5 {
				var v float64
				if _, scanErr := fmt.Sscan(value, &v); scanErr == nil {
					if err := f.SetCellFloat(scheduleSheet, cell, v, 2, 64); err != nil {
						return err
					}
					continue
				}
			}
			if err := f.SetCellStr(scheduleSheet, cell, value); err != nil {
				return err
			}
		}
		if r == 0 {
			continue
		}
		style := amountStyle
		if record[1] == "Subtotal" || record[0] == "Net Cash Flow" {
			style = boldStyle
		}
		first, _ := excelize.CoordinatesToCellName(6, rowNum)
		last, _ := excelize.CoordinatesToCellName(lastCol, rowNum)
		if err := f.SetCellStyle(scheduleSheet, first, last, style); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(scheduleSheet, "A", "B", 28); err != nil {
		return err
	}
	return f.SetPanes(scheduleSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	})
}

func writeSummary(f *excelize.File, sm schedule.Summary) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("creating summary sheet: %w", err)
	}
	margin := sm.GrossMargin
	rate := sm.DiscountRate
	rows := [][]any{
		{"Metric", "Value"},
		{"Gross revenue", sm.TotalGrossRevenue},
		{"Deductions", sm.TotalDeductions},
		{"Net revenue", sm.TotalNetRevenue},
		{"Total costs", sm.TotalCosts},
		{"Gross profit", sm.GrossProfit},
		{"Gross margin", format.Percent(&margin)},
		{"IRR (periodic)", format.Percent(sm.IRR)},
		{"IRR (annual)", format.Percent(sm.AnnualIRR)},
		{"Discount rate", format.Percent(&rate)},
		{"NPV", sm.NPV},
		{"Equity multiple", sm.EquityMultiple},
		{"Total investment", sm.TotalInvestment},
		{"Total proceeds", sm.TotalProceeds},
		{"Peak equity", sm.PeakEquity},
		{"Payback period", payback(sm.PaybackPeriod)},
	}
	for _, b := range schedule.Buckets {
		rows = append(rows, []any{"Costs: " + string(b), sm.CostsByBucket[b]})
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(summarySheet, "A", "A", 24)
}

func strPtr(s string) *string {
	return &s
}
