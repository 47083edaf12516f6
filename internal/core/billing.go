package core

import (
	"fmt"
	"strings"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Kind is the flat storage discriminator of a Plan.
type Kind string

const (
	KindSingle      Kind = "single"
	KindRecurring   Kind = "recurring"
	KindInstallment Kind = "installment"
)

// Frequency is the repetition period of a recurring plan.
type Frequency string

const (
	Weekly   Frequency = "weekly"
	Biweekly Frequency = "biweekly"
	Monthly  Frequency = "monthly"
	Annual   Frequency = "annual"
)

// Legacy values are still accepted on input.
var (
	statusAliases = map[string]Status{
		"pending": StatusPending, "pendente": StatusPending,
		"paid": StatusPaid, "pago": StatusPaid,
		"overdue": StatusOverdue, "atrasado": StatusOverdue,
		"cancelled": StatusCancelled, "canceled": StatusCancelled, "cancelado": StatusCancelled,
	}
	kindAliases = map[string]Kind{
		"single": KindSingle, "unico": KindSingle, "único": KindSingle,
		"recurring": KindRecurring, "recorrente": KindRecurring,
		"installment": KindInstallment, "personalizado": KindInstallment,
	}
	frequencyAliases = map[string]Frequency{
		"weekly": Weekly, "semanal": Weekly,
		"biweekly": Biweekly, "quinzenal": Biweekly,
		"monthly": Monthly, "mensal": Monthly,
		"annual": Annual, "yearly": Annual, "anual": Annual,
	}
)

// ParseStatus maps a user supplied status to its canonical value.
func ParseStatus(s string) (Status, error) {
	if st, ok := statusAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return st, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

// ParseKind maps a user supplied billing kind to its canonical value.
func ParseKind(s string) (Kind, error) {
	if k, ok := kindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", NewValidationError("kind", fmt.Sprintf("unknown billing kind %q", s))
}

// ParseFrequency maps a user supplied recurrence to its canonical value.
func ParseFrequency(s string) (Frequency, error) {
	if f, ok := frequencyAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return f, nil
	}
	return "", NewValidationError("recurrence", fmt.Sprintf("unknown recurrence %q", s))
}

// Plan is the billing plan of an invoice: Single, Recurring or Installments.
type Plan interface {
	Kind() Kind
	isPlan()
}

// Single invoices are billed once and never produce successors.
type Single struct{}

// Recurring invoices repeat every Frequency until cancelled.
type Recurring struct {
	Every Frequency
}

// Installments split a charge into Count parts. Count 0 means the plan
// length was never set and no successor is generated.
type Installments struct {
	Count int
}

func (Single) Kind() Kind       { return KindSingle }
func (Recurring) Kind() Kind    { return KindRecurring }
func (Installments) Kind() Kind { return KindInstallment }

func (Single) isPlan()       {}
func (Recurring) isPlan()    {}
func (Installments) isPlan() {}

// PlanFromColumns rebuilds a Plan from its flattened storage representation.
func PlanFromColumns(kind Kind, frequency *Frequency, count *int) (Plan, error) {
	switch kind {
	case KindSingle, "":
		return Single{}, nil
	case KindRecurring:
		if frequency == nil || *frequency == "" {
			return nil, fmt.Errorf("recurring plan without recurrence")
		}
		return Recurring{Every: *frequency}, nil
	case KindInstallment:
		n := 0
		if count != nil {
			n = *count
		}
		return Installments{Count: n}, nil
	default:
		return nil, fmt.Errorf("unknown billing kind %q", kind)
	}
}

// PlanColumns flattens a Plan into kind, recurrence and installment count.
func PlanColumns(p Plan) (Kind, *Frequency, *int) {
	switch v := p.(type) {
	case Recurring:
		f := v.Every
		return KindRecurring, &f, nil
	case Installments:
		if v.Count == 0 {
			return KindInstallment, nil, nil
		}
		n := v.Count
		return KindInstallment, nil, &n
	default:
		return KindSingle, nil, nil
	}
}

// allowedTransitions lists the statuses reachable by a direct status change.
// Overdue is entered only by the sweeper.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
	StatusPaid:    {StatusPending, StatusCancelled},
}

// CanTransition reports whether a user driven change from -> to is allowed.
// Setting the current status again is always allowed and is a no-op.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
