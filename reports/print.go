package reports

import (
	"io"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// =============================================================================
// PRINTING - Plain-text statements with grouped amounts
// =============================================================================

var printer = message.NewPrinter(language.English)

type statementWriter struct {
	w   io.Writer
	err error
}

func (sw *statementWriter) heading(format string, args ...any) {
	if sw.err != nil {
		return
	}
	_, sw.err = printer.Fprintf(sw.w, format+"\n", args...)
}

func (sw *statementWriter) line(label string, amount decimal.Decimal) {
	if sw.err != nil {
		return
	}
	_, sw.err = printer.Fprintf(sw.w, "  %-32s %16v\n", label, number.Decimal(amount.InexactFloat64(), number.Scale(2)))
}

// Print renders the balance sheet, e.g. "  Total Assets    1,234,567.50".
func (bs BalanceSheet) Print(w io.Writer) error {
	sw := &statementWriter{w: w}
	sw.heading("Balance Sheet as of %s", bs.AsOf)
	sw.heading("Assets")
	sw.line("Cash", bs.Assets.Cash)
	sw.line("Bank", bs.Assets.Bank)
	sw.line("Accounts Receivable", bs.Assets.Receivables)
	sw.line("Inventory", bs.Assets.Inventory)
	sw.line("Total Current Assets", bs.Assets.TotalCurrent)
	sw.line("Investments", bs.Assets.Investments)
	sw.line("Total Assets", bs.Assets.Total)
	sw.heading("Liabilities")
	sw.line("Accounts Payable", bs.Liabilities.Payables)
	sw.line("Loans", bs.Liabilities.Loans)
	sw.line("Total Liabilities", bs.Liabilities.Total)
	sw.heading("Equity")
	sw.line("Owner's Capital", bs.Equity.Capital)
	sw.line("Opening Balance Equity", bs.Equity.OpeningBalanceEquity)
	sw.line("Retained Earnings (Net Income)", bs.Equity.RetainedEarnings)
	sw.line("Total Equity", bs.Equity.Total)
	sw.line("Total Liabilities & Equity", bs.TotalLiabilitiesAndEquity)
	if !bs.Balanced {
		sw.line("OUT OF BALANCE BY", bs.Difference())
	}
	return sw.err
}

// Print renders revenue, expenses and net income for the period.
func (s IncomeStatement) Print(w io.Writer) error {
	sw := &statementWriter{w: w}
	sw.heading("Income Statement %s", s.Period)
	sw.line("Revenue", s.Revenue)
	sw.line("Expenses", s.Expenses)
	sw.line("Net Income", s.NetIncome)
	return sw.err
}
