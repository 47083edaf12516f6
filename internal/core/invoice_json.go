package core

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// invoiceJSON is the flat wire shape of an Invoice.
type invoiceJSON struct {
	ID               int64           `json:"id"`
	ClientID         int64           `json:"client_id"`
	ProductID        *int64          `json:"product_id"`
	Description      string          `json:"description"`
	Value            decimal.Decimal `json:"value"`
	DueDate          Date            `json:"due_date"`
	PaymentDate      *Date           `json:"payment_date"`
	Status           Status          `json:"status"`
	Kind             Kind            `json:"kind"`
	Recurrence       *Frequency      `json:"recurrence"`
	InstallmentCount *int            `json:"installment_count"`
	Installment      int             `json:"installment"`
	ParentID         *int64          `json:"parent_id"`
	CreatedAt        time.Time       `json:"created_at"`
	ClientName       string          `json:"client_name,omitempty"`
}

func (inv Invoice) toJSON() invoiceJSON {
	kind, freq, count := PlanColumns(inv.Plan)
	return invoiceJSON{
		ID:               inv.ID,
		ClientID:         inv.ClientID,
		ProductID:        inv.ProductID,
		Description:      inv.Description,
		Value:            inv.Value,
		DueDate:          inv.DueDate,
		PaymentDate:      inv.PaymentDate,
		Status:           inv.Status,
		Kind:             kind,
		Recurrence:       freq,
		InstallmentCount: count,
		Installment:      inv.Installment,
		ParentID:         inv.ParentID,
		CreatedAt:        inv.CreatedAt,
	}
}

func (inv Invoice) MarshalJSON() ([]byte, error) {
	return json.Marshal(inv.toJSON())
}

func (iwc InvoiceWithClient) MarshalJSON() ([]byte, error) {
	out := iwc.Invoice.toJSON()
	out.ClientName = iwc.ClientName
	return json.Marshal(out)
}
