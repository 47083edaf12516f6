// Package http provides the JSON REST API.
//
// This file holds the request bodies and query parsing shared by the
// handlers. Amounts accept dot or comma decimals, as strings or numbers.
// Enumerations accept the legacy Portuguese spellings.
package http

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"faturamento/internal/core"
	"faturamento/internal/services"
)

// amount is a monetary JSON value given as "12,34", "12.34" or 12.34.
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if strings.HasPrefix(raw, `"`) {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
	}
	v, err := core.ParseAmount(raw)
	if err != nil {
		return core.NewValidationError("value", "must be a non-negative amount like 12.34")
	}
	a.Decimal = v
	return nil
}

type clientRequest struct {
	Name    *string `json:"name"`
	Contact *string `json:"contact"`
	Email   *string `json:"email"`
	Phone   *string `json:"phone"`
}

func (req clientRequest) toClient() core.Client {
	return core.Client{
		Name:    deref(sanitizePtr(req.Name)),
		Contact: deref(sanitizePtr(req.Contact)),
		Email:   deref(sanitizePtr(req.Email)),
		Phone:   deref(sanitizePtr(req.Phone)),
	}
}

func (req clientRequest) toPatch() services.ClientPatch {
	return services.ClientPatch{
		Name:    sanitizePtr(req.Name),
		Contact: sanitizePtr(req.Contact),
		Email:   sanitizePtr(req.Email),
		Phone:   sanitizePtr(req.Phone),
	}
}

type productRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	UnitValue   *amount `json:"unit_value"`
}

func (req productRequest) toProduct(clientID int64) core.Product {
	p := core.Product{
		ClientID:    clientID,
		Name:        deref(sanitizePtr(req.Name)),
		Description: deref(sanitizePtr(req.Description)),
		UnitValue:   decimal.Zero,
	}
	if req.UnitValue != nil {
		p.UnitValue = req.UnitValue.Decimal
	}
	return p
}

func (req productRequest) toPatch() services.ProductPatch {
	patch := services.ProductPatch{
		Name:        sanitizePtr(req.Name),
		Description: sanitizePtr(req.Description),
	}
	if req.UnitValue != nil {
		patch.UnitValue = &req.UnitValue.Decimal
	}
	return patch
}

type noteRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (req noteRequest) toNote(clientID int64) core.Note {
	return core.Note{
		ClientID: clientID,
		Title:    deref(sanitizePtr(req.Title)),
		Content:  deref(sanitizePtr(req.Content)),
	}
}

func (req noteRequest) toPatch() services.NotePatch {
	return services.NotePatch{Title: sanitizePtr(req.Title), Content: sanitizePtr(req.Content)}
}

type invoiceRequest struct {
	ProductID        *int64  `json:"product_id"`
	ParentID         *int64  `json:"parent_id"`
	Description      string  `json:"description"`
	Value            *amount `json:"value"`
	DueDate          string  `json:"due_date"`
	PaymentDate      string  `json:"payment_date"`
	Status           string  `json:"status"`
	Kind             string  `json:"kind"`
	Recurrence       string  `json:"recurrence"`
	InstallmentCount *int    `json:"installment_count"`
	Installment      int     `json:"installment"`
}

func (req invoiceRequest) toNewInvoice(clientID int64) (services.NewInvoice, error) {
	in := services.NewInvoice{
		ClientID:    clientID,
		ProductID:   req.ProductID,
		ParentID:    req.ParentID,
		Description: sanitizeInput(req.Description),
		Value:       decimal.Zero,
		Installment: req.Installment,
	}
	if req.Value != nil {
		in.Value = req.Value.Decimal
	}

	due, err := parseDateField("due_date", req.DueDate)
	if err != nil {
		return services.NewInvoice{}, err
	}
	in.DueDate = due

	if strings.TrimSpace(req.PaymentDate) != "" {
		paid, err := parseDateField("payment_date", req.PaymentDate)
		if err != nil {
			return services.NewInvoice{}, err
		}
		in.PaymentDate = &paid
	}

	if strings.TrimSpace(req.Status) != "" {
		if in.Status, err = core.ParseStatus(req.Status); err != nil {
			return services.NewInvoice{}, err
		}
	}

	if in.Plan, err = parsePlan(req.Kind, req.Recurrence, req.InstallmentCount); err != nil {
		return services.NewInvoice{}, err
	}
	return in, nil
}

// parsePlan builds a billing plan from its flat request fields. An empty
// kind leaves the plan unset so the service default applies.
func parsePlan(kind, recurrence string, count *int) (core.Plan, error) {
	if strings.TrimSpace(kind) == "" {
		return nil, nil
	}
	k, err := core.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	switch k {
	case core.KindRecurring:
		if strings.TrimSpace(recurrence) == "" {
			return nil, core.NewValidationError("recurrence", "required for recurring invoices")
		}
		f, err := core.ParseFrequency(recurrence)
		if err != nil {
			return nil, err
		}
		return core.Recurring{Every: f}, nil
	case core.KindInstallment:
		n := 0
		if count != nil {
			n = *count
		}
		return core.Installments{Count: n}, nil
	default:
		return core.Single{}, nil
	}
}

type invoicePatchRequest struct {
	ProductID   *int64  `json:"product_id"`
	Description *string `json:"description"`
	Value       *amount `json:"value"`
	DueDate     *string `json:"due_date"`
}

func (req invoicePatchRequest) toPatch() (services.InvoicePatch, error) {
	patch := services.InvoicePatch{
		ProductID:   req.ProductID,
		Description: sanitizePtr(req.Description),
	}
	if req.Value != nil {
		patch.Value = &req.Value.Decimal
	}
	if req.DueDate != nil {
		due, err := parseDateField("due_date", *req.DueDate)
		if err != nil {
			return services.InvoicePatch{}, err
		}
		patch.DueDate = &due
	}
	return patch, nil
}

type statusRequest struct {
	Status string `json:"status"`
}

type sweepRequest struct {
	AsOf string `json:"as_of"`
}

type refreshRequest struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

func parseDateField(field, s string) (core.Date, error) {
	if strings.TrimSpace(s) == "" {
		return core.Date{}, core.NewValidationError(field, "required")
	}
	d, err := core.ParseDate(s)
	if err != nil {
		return core.Date{}, core.NewValidationError(field, err.Error())
	}
	return d, nil
}

// parseInvoiceFilter reads the optional status and client_id query parameters.
func parseInvoiceFilter(q url.Values) (core.InvoiceFilter, error) {
	var f core.InvoiceFilter
	if v := strings.TrimSpace(q.Get("status")); v != "" {
		st, err := core.ParseStatus(v)
		if err != nil {
			return f, err
		}
		f.Status = st
	}
	id, err := optionalInt(q, "client_id")
	if err != nil {
		return f, err
	}
	if id != nil {
		f.ClientID = int64(*id)
	}
	return f, nil
}

// optionalInt returns nil when the parameter is absent.
func optionalInt(q url.Values, name string) (*int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, core.NewValidationError(name, "must be an integer")
	}
	return &n, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
