// Package ingest loads canonical CSV exports of bank transactions and
// business records into the store.
//
// Transaction files carry the columns date, amount, method, memo,
// external_reference and account. Record files carry business_key, date,
// amount_due and an optional placeholder flag. Column order is free; headers
// are matched case-insensitively.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/eshaffer321/charter-reconciler/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

var dateLayouts = []string{"2006-01-02", "01/02/2006", "1/2/2006"}

// TransactionRow is one parsed line of a transaction file. Date and Amount
// are nil when the cell was empty.
type TransactionRow struct {
	Line              int
	Date              *time.Time
	Amount            *decimal.Decimal
	Method            string
	Memo              string
	ExternalReference string
	Account           string
}

// RecordRow is one parsed line of a business record file.
type RecordRow struct {
	Line        int
	BusinessKey ledger.BusinessKey
	Date        time.Time
	AmountDue   decimal.Decimal
	Placeholder bool
}

// RowError describes a line that could not be parsed.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error { return e.Err }

type table struct {
	reader  *csv.Reader
	columns map[string]int
	line    int
}

func newTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}
	return &table{reader: reader, columns: columns, line: 1}, nil
}

// next returns the next non-blank row, or io.EOF. Empty lines are skipped
// by the csv reader but still count towards line numbers.
func (t *table) next() ([]string, error) {
	for {
		row, err := t.reader.Read()
		if err != nil {
			return nil, err
		}
		t.line, _ = t.reader.FieldPos(0)
		if !blank(row) {
			return row, nil
		}
	}
}

func (t *table) get(row []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func blank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ReadTransactions parses a transaction file. Lines that fail to parse are
// returned as RowErrors alongside the good rows.
func ReadTransactions(r io.Reader) ([]TransactionRow, []RowError, error) {
	t, err := newTable(r, "date", "amount", "account")
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []TransactionRow
		invalid []RowError
	)
	for {
		cells, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		row := TransactionRow{
			Line:              t.line,
			Method:            strings.ToLower(t.get(cells, "method")),
			Memo:              t.get(cells, "memo"),
			ExternalReference: t.get(cells, "external_reference"),
			Account:           t.get(cells, "account"),
		}
		if s := t.get(cells, "date"); s != "" {
			d, err := ParseDate(s)
			if err != nil {
				invalid = append(invalid, RowError{Line: t.line, Err: err})
				continue
			}
			row.Date = &d
		}
		if s := t.get(cells, "amount"); s != "" {
			a, err := ParseAmount(s)
			if err != nil {
				invalid = append(invalid, RowError{Line: t.line, Err: err})
				continue
			}
			row.Amount = &a
		}
		rows = append(rows, row)
	}
	return rows, invalid, nil
}

// ReadRecords parses a business record file.
func ReadRecords(r io.Reader) ([]RecordRow, []RowError, error) {
	t, err := newTable(r, "business_key", "date", "amount_due")
	if err != nil {
		return nil, nil, err
	}

	var (
		rows    []RecordRow
		invalid []RowError
	)
	for {
		cells, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, err
		}

		key := t.get(cells, "business_key")
		if key == "" {
			invalid = append(invalid, RowError{Line: t.line, Err: errors.New("empty business_key")})
			continue
		}
		date, err := ParseDate(t.get(cells, "date"))
		if err != nil {
			invalid = append(invalid, RowError{Line: t.line, Err: err})
			continue
		}
		due, err := ParseAmount(t.get(cells, "amount_due"))
		if err != nil {
			invalid = append(invalid, RowError{Line: t.line, Err: err})
			continue
		}
		placeholder, err := parseBool(t.get(cells, "placeholder"))
		if err != nil {
			invalid = append(invalid, RowError{Line: t.line, Err: err})
			continue
		}

		rows = append(rows, RecordRow{
			Line:        t.line,
			BusinessKey: ledger.BusinessKey(key),
			Date:        date,
			AmountDue:   due,
			Placeholder: placeholder,
		})
	}
	return rows, invalid, nil
}

// ParseDate accepts ISO dates and US month/day/year dates.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return ledger.DateOnly(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

// ParseAmount parses a money cell. Currency symbols and thousands
// separators are ignored and a parenthesized value is negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	negative := strings.HasPrefix(cleaned, "(") && strings.HasSuffix(cleaned, ")")
	if negative {
		cleaned = cleaned[1 : len(cleaned)-1]
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q", s)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "", "0", "false", "no", "n":
		return false, nil
	case "1", "true", "yes", "y":
		return true, nil
	}
	return false, fmt.Errorf("invalid placeholder flag %q", s)
}
