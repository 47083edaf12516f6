package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Client struct {
		ID           int64     `json:"id" db:"id"`
		Name         string    `json:"name" db:"name"`
		Contact      string    `json:"contact" db:"contact"`
		Email        string    `json:"email" db:"email"`
		Phone        string    `json:"phone" db:"phone"`
		RegisteredAt time.Time `json:"registered_at" db:"registered_at"`
	}

	// ClientDetail is a client together with everything it owns.
	ClientDetail struct {
		Client
		Products []Product `json:"products"`
		Notes    []Note    `json:"notes"`
		Invoices []Invoice `json:"invoices"`
	}

	Product struct {
		ID          int64           `json:"id" db:"id"`
		ClientID    int64           `json:"client_id" db:"client_id"`
		Name        string          `json:"name" db:"name"`
		Description string          `json:"description" db:"description"`
		UnitValue   decimal.Decimal `json:"unit_value" db:"unit_value"`
		CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	}

	Note struct {
		ID        int64     `json:"id" db:"id"`
		ClientID  int64     `json:"client_id" db:"client_id"`
		Title     string    `json:"title" db:"title"`
		Content   string    `json:"content" db:"content"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
	}

	Invoice struct {
		ID          int64
		ClientID    int64
		ProductID   *int64
		Description string
		Value       decimal.Decimal
		DueDate     Date
		PaymentDate *Date
		Status      Status
		Plan        Plan
		// Installment is the position of this invoice in its chain, starting at 1.
		Installment int
		ParentID    *int64
		CreatedAt   time.Time
	}

	// InvoiceWithClient annotates an invoice with the owning client's name.
	InvoiceWithClient struct {
		Invoice
		ClientName string
	}

	// InvoiceFilter narrows invoice listings. Zero fields do not filter.
	InvoiceFilter struct {
		ClientID  int64
		Status    Status
		DueBefore Date
		DueFrom   Date
		DueUntil  Date // exclusive
	}

	// SuccessorKey identifies a generated successor for duplicate detection.
	SuccessorKey struct {
		ClientID    int64
		ParentID    int64
		Description string
		Value       decimal.Decimal
		DueDate     Date
	}

	DashboardStats struct {
		ToReceive      decimal.Decimal     `json:"to_receive"`
		Overdue        decimal.Decimal     `json:"overdue"`
		Received       decimal.Decimal     `json:"received"`
		Cancelled      decimal.Decimal     `json:"cancelled"`
		LatestInvoices []InvoiceWithClient `json:"latest_invoices"`
	}
)

const maxDescription = 200

func (c Client) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if len(c.Name) > 100 {
		return NewValidationError("name", "too long (max 100 characters)")
	}
	if c.Email != "" && !strings.Contains(c.Email, "@") {
		return NewValidationError("email", "must contain @")
	}
	return nil
}

func (p Product) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return invalid("name", ErrEmptyName)
	}
	if err := ValidateAmount(p.UnitValue); err != nil {
		return invalid("unit_value", err)
	}
	return nil
}

func (n Note) Validate() error {
	if strings.TrimSpace(n.Title) == "" {
		return invalid("title", ErrEmptyTitle)
	}
	return nil
}

// Validate checks field level invariants of an invoice.
func (inv Invoice) Validate() error {
	if inv.ClientID <= 0 {
		return NewValidationError("client_id", "required")
	}
	if len(strings.TrimSpace(inv.Description)) == 0 {
		return invalid("description", ErrEmptyDescription)
	}
	if len(inv.Description) > maxDescription {
		return NewValidationError("description", fmt.Sprintf("too long (max %d characters)", maxDescription))
	}
	if err := ValidateAmount(inv.Value); err != nil {
		return invalid("value", err)
	}
	if inv.DueDate.IsZero() {
		return NewValidationError("due_date", "required")
	}
	switch inv.Status {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
	default:
		return NewValidationError("status", fmt.Sprintf("unknown status %q", inv.Status))
	}
	if inv.Installment < 1 {
		return NewValidationError("installment", "must be at least 1")
	}
	switch p := inv.Plan.(type) {
	case Single:
	case Recurring:
		switch p.Every {
		case Weekly, Biweekly, Monthly, Annual:
		default:
			return NewValidationError("recurrence", fmt.Sprintf("unknown recurrence %q", p.Every))
		}
	case Installments:
		if p.Count < 0 {
			return NewValidationError("installment_count", "must not be negative")
		}
		if p.Count > 0 && inv.Installment > p.Count {
			return NewValidationError("installment", fmt.Sprintf("index %d exceeds installment count %d", inv.Installment, p.Count))
		}
	default:
		return NewValidationError("kind", "billing plan is required")
	}
	return nil
}

// Period is a calendar month.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// PeriodOf returns the month containing d.
func PeriodOf(d Date) Period {
	return Period{Month: d.Month(), Year: d.Year()}
}

func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return invalid("month", ErrInvalidMonth)
	}
	if p.Year < 1 || p.Year > 9999 {
		return NewValidationError("year", fmt.Sprintf("invalid year %d", p.Year))
	}
	return nil
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}
