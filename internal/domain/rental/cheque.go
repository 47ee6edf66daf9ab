package rental

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rentdesk/backend/internal/domain/shared"
	"github.com/rentdesk/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// ChequeLine is one post-dated cheque. Rent cheques are always dated;
// deposit cheques may be undated (HasDate false, Date nil).
type ChequeLine struct {
	CheckNumber string          `json:"check_number"`
	Amount      decimal.Decimal `json:"amount"`
	Date        *time.Time      `json:"date,omitempty"`
	HasDate     bool            `json:"has_date"`
}

// Dated reports whether the line carries a date
func (l ChequeLine) Dated() bool {
	return l.HasDate && l.Date != nil
}

// GenerateRentCheques builds one cheque per contract month. Line i is dated
// i months after the start on the rent due day, clamped to the month's last day
// (a due day of 0 follows the start day), for that month's rent.
func GenerateRentCheques(d *ContractDraft) []ChequeLine {
	if d.DurationMonths <= 0 || d.StartDate.IsZero() {
		return nil
	}
	dueDay := d.RentDueDay
	if dueDay == 0 {
		dueDay = d.StartDate.Day()
	}
	lines := make([]ChequeLine, d.DurationMonths)
	for i := range lines {
		y, m := monthAt(d.StartDate, i)
		date := dayInMonth(y, m, dueDay)
		lines[i] = ChequeLine{
			Amount:  d.MonthRent(i),
			Date:    &date,
			HasDate: true,
		}
	}
	return lines
}

// ApplyCheckNumberEdit sets the number of line index and returns the new list.
// When the first line is set to an integer every later line is renumbered
// to that integer plus its position, keeping the typed zero padding.
// Other edits are stored as free text.
func ApplyCheckNumberEdit(lines []ChequeLine, index int, value string) ([]ChequeLine, error) {
	if index < 0 || index >= len(lines) {
		return nil, shared.NewDomainError("INVALID_CHEQUE_INDEX", "Cheque index is out of range")
	}
	out := make([]ChequeLine, len(lines))
	copy(out, lines)
	out[index].CheckNumber = value

	if index != 0 {
		return out, nil
	}
	trimmed := strings.TrimSpace(value)
	n, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return out, nil
	}
	width := len(trimmed)
	for i := 1; i < len(out); i++ {
		out[i].CheckNumber = fmt.Sprintf("%0*d", width, n+uint64(i))
	}
	return out, nil
}

// DefaultDepositChequeAmount is the amount proposed for a new deposit cheque:
// the part of the deposit not paid in cash, never negative.
func DefaultDepositChequeAmount(d *ContractDraft) decimal.Decimal {
	deposit := valueobject.Round3(d.Deposit)
	if p, ok := d.DepositPayment.(CashAndChequePayment); ok {
		rest := valueobject.Round3(deposit.Sub(p.CashAmount))
		if rest.IsNegative() {
			return decimal.Zero
		}
		return rest
	}
	return deposit
}

var errNoRentCheques = shared.NewDomainError("RENT_NOT_BY_CHEQUE", "Rent is not paid by cheque")
var errNoDepositCheques = shared.NewDomainError("DEPOSIT_NOT_BY_CHEQUE", "Deposit is not paid by cheque")

func (d *ContractDraft) setRentLines(lines []ChequeLine) error {
	p, ok := d.RentPayment.(ChequePayment)
	if !ok {
		return errNoRentCheques
	}
	p.Lines = lines
	d.RentPayment = p
	d.touch()
	return nil
}

func (d *ContractDraft) setDepositLines(lines []ChequeLine) error {
	switch p := d.DepositPayment.(type) {
	case ChequePayment:
		p.Lines = lines
		d.DepositPayment = p
	case CashAndChequePayment:
		p.Lines = lines
		d.DepositPayment = p
	default:
		return errNoDepositCheques
	}
	d.touch()
	return nil
}

// RegenerateRentCheques replaces the rent cheque list with a fresh schedule.
// Numbers already typed on overlapping positions are kept.
func (d *ContractDraft) RegenerateRentCheques() error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if _, ok := d.RentPayment.(ChequePayment); !ok {
		return errNoRentCheques
	}
	existing := d.RentCheques()
	lines := GenerateRentCheques(d)
	for i := range lines {
		if i < len(existing) {
			lines[i].CheckNumber = existing[i].CheckNumber
		}
	}
	return d.setRentLines(lines)
}

// EditRentChequeNumber applies a number edit to the rent cheque list
func (d *ContractDraft) EditRentChequeNumber(index int, value string) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	lines, err := ApplyCheckNumberEdit(d.RentCheques(), index, value)
	if err != nil {
		return err
	}
	return d.setRentLines(lines)
}

// EditDepositChequeNumber applies a number edit to the deposit cheque list
func (d *ContractDraft) EditDepositChequeNumber(index int, value string) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	lines, err := ApplyCheckNumberEdit(d.DepositCheques(), index, value)
	if err != nil {
		return err
	}
	return d.setDepositLines(lines)
}

// AddDepositCheque appends a deposit cheque. A zero amount takes
// DefaultDepositChequeAmount; a nil date adds an undated cheque.
func (d *ContractDraft) AddDepositCheque(number string, amount decimal.Decimal, date *time.Time) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	if err := nonNegative("Cheque amount", amount); err != nil {
		return err
	}
	if amount.IsZero() {
		amount = DefaultDepositChequeAmount(d)
	}
	line := ChequeLine{CheckNumber: number, Amount: valueobject.Round3(amount)}
	if date != nil && !date.IsZero() {
		v := Date(*date)
		line.Date = &v
		line.HasDate = true
	}
	existing := d.DepositCheques()
	lines := make([]ChequeLine, 0, len(existing)+1)
	lines = append(append(lines, existing...), line)
	return d.setDepositLines(lines)
}

// RemoveDepositCheque drops the deposit cheque at index
func (d *ContractDraft) RemoveDepositCheque(index int) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	existing := d.DepositCheques()
	if index < 0 || index >= len(existing) {
		return shared.NewDomainError("INVALID_CHEQUE_INDEX", "Cheque index is out of range")
	}
	lines := make([]ChequeLine, 0, len(existing)-1)
	lines = append(append(lines, existing[:index]...), existing[index+1:]...)
	return d.setDepositLines(lines)
}

// SetDepositChequeDate dates or undates a deposit cheque. A nil date clears
// the date and exempts the line from the date requirement.
func (d *ContractDraft) SetDepositChequeDate(index int, date *time.Time) error {
	if err := d.ensureEditable(); err != nil {
		return err
	}
	existing := d.DepositCheques()
	if index < 0 || index >= len(existing) {
		return shared.NewDomainError("INVALID_CHEQUE_INDEX", "Cheque index is out of range")
	}
	lines := make([]ChequeLine, len(existing))
	copy(lines, existing)
	if date == nil || date.IsZero() {
		lines[index].Date = nil
		lines[index].HasDate = false
	} else {
		v := Date(*date)
		lines[index].Date = &v
		lines[index].HasDate = true
	}
	return d.setDepositLines(lines)
}
