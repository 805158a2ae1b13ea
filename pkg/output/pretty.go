package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/iwvelando/land-cashflow/pkg/format"
	"github.com/iwvelando/land-cashflow/pkg/schedule"
)

const (
	labelWidth  = 32
	amountWidth = 16
)

// Pretty writes a human-readable rather than machine-readable table.
func Pretty(w io.Writer, s *schedule.Schedule) error {
	pw := &prettyWriter{w: w}

	title := s.ProjectName
	if title == "" {
		title = s.ProjectID
	}
	pw.printf("--- Cash flow for %s (%s, grouped by %s) ---\n", title, s.TimeScale, s.GroupBy)
	pw.printf("Run %s\n\n", s.RunID)

	header := []string{pad("Line", labelWidth)}
	rule := []string{strings.Repeat("_", labelWidth)}
	for _, p := range s.Periods {
		header = append(header, padLeft(p.Label, amountWidth))
		rule = append(rule, strings.Repeat("_", amountWidth))
	}
	header = append(header, padLeft("Total", amountWidth))
	rule = append(rule, strings.Repeat("_", amountWidth))

	pw.printf("%s\n%s\n", strings.Join(header, " | "), strings.Join(rule, " | "))

	for _, sec := range s.Sections {
		name := sec.Name
		if sec.Memo {
			name += " (memo)"
		}
		pw.printf("%s\n", name)
		for _, li := range sec.LineItems {
			pw.row("  "+li.Label, lineAmounts(li, s), li.Total)
			for _, child := range li.Children {
				pw.row("    "+child.Label, lineAmounts(child, s), child.Total)
			}
		}
		pw.row("  Subtotal", sec.Subtotals, sec.Total)
	}
	pw.row("Net Cash Flow", s.NetCashFlow, sum(s.NetCashFlow))

	sm := s.Summary
	pw.printf("\n--- Summary ---\n")
	pw.printf("Gross revenue      | %s\n", format.Currency(sm.TotalGrossRevenue))
	pw.printf("Deductions         | %s\n", format.Currency(sm.TotalDeductions))
	pw.printf("Net revenue        | %s\n", format.Currency(sm.TotalNetRevenue))
	pw.printf("Total costs        | %s\n", format.Currency(sm.TotalCosts))
	for _, b := range schedule.Buckets {
		if amount, ok := sm.CostsByBucket[b]; ok && amount != 0 {
			pw.printf("  %-16s | %s\n", b, format.Currency(amount))
		}
	}
	pw.printf("Gross profit       | %s\n", format.Currency(sm.GrossProfit))
	margin := sm.GrossMargin
	pw.printf("Gross margin       | %s\n", format.Percent(&margin))
	pw.printf("IRR (annual)       | %s\n", format.Percent(sm.AnnualIRR))
	rate := sm.DiscountRate
	pw.printf("NPV @ %-12s | %s\n", format.Percent(&rate), format.Currency(sm.NPV))
	pw.printf("Equity multiple    | %s\n", format.Multiple(sm.EquityMultiple))
	pw.printf("Peak equity        | %s\n", format.Currency(sm.PeakEquity))
	pw.printf("Payback period     | %s\n", payback(sm.PaybackPeriod))

	if len(s.Warnings) > 0 {
		pw.printf("\n--- Warnings ---\n")
		for _, warning := range s.Warnings {
			pw.printf("- %s\n", warning)
		}
	}
	return pw.err
}

type prettyWriter struct {
	w   io.Writer
	err error
}

func (pw *prettyWriter) printf(f string, args ...any) {
	if pw.err != nil {
		return
	}
	_, pw.err = fmt.Fprintf(pw.w, f, args...)
}

func (pw *prettyWriter) row(label string, amounts []float64, total float64) {
	cells := []string{pad(label, labelWidth)}
	for _, a := range amounts {
		cells = append(cells, padLeft(format.NumericCurrency(a), amountWidth))
	}
	cells = append(cells, padLeft(format.NumericCurrency(total), amountWidth))
	pw.printf("%s\n", strings.Join(cells, " | "))
}

func lineAmounts(li schedule.LineItem, s *schedule.Schedule) []float64 {
	index := schedule.SequenceIndex(s.Periods)
	amounts := make([]float64, len(s.Periods))
	for _, v := range li.Values {
		if i, ok := index[v.PeriodSequence]; ok {
			amounts[i] += v.Amount
		}
	}
	return amounts
}

func payback(period int) string {
	switch {
	case period < 0:
		return "not reached"
	case period == 0:
		return "immediate"
	default:
		return fmt.Sprintf("period %d", period+1)
	}
}

func pad(s string, width int) string {
	if len(s) > width {
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

func sum(values []float64) float64 {
	var total float64
	for _, v := range values {
		total += v
	}
	return total
}
