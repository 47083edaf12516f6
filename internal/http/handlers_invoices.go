package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"faturamento/internal/core"
	applog "faturamento/internal/log"
	"faturamento/internal/services"
)

// InvoiceHandlers serves invoice CRUD, status transitions and the overdue sweep.
type InvoiceHandlers struct {
	invoices *services.InvoiceService
	sweeper  *services.Sweeper
}

func NewInvoiceHandlers(invoices *services.InvoiceService, sweeper *services.Sweeper) *InvoiceHandlers {
	return &InvoiceHandlers{invoices: invoices, sweeper: sweeper}
}

type sweepResponse struct {
	AsOf  core.Date `json:"as_of"`
	Swept int       `json:"swept"`
}

// RegisterRoutes registers invoice routes
func (h *InvoiceHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clients/{id}/invoices", h.CreateInvoice).Methods(http.MethodPost)
	router.HandleFunc("/invoices", h.ListInvoices).Methods(http.MethodGet)
	// Registered before /invoices/{id} so the literal path wins.
	router.HandleFunc("/invoices/sweep-overdue", h.SweepOverdue).Methods(http.MethodPost)
	router.HandleFunc("/invoices/{id}", h.GetInvoice).Methods(http.MethodGet)
	router.HandleFunc("/invoices/{id}", h.UpdateInvoice).Methods(http.MethodPut)
	router.HandleFunc("/invoices/{id}", h.DeleteInvoice).Methods(http.MethodDelete)
	router.HandleFunc("/invoices/{id}/status", h.SetStatus).Methods(http.MethodPut)
}

func (h *InvoiceHandlers) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	var req invoiceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	in, err := req.toNewInvoice(clientID)
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	inv, err := h.invoices.CreateInvoice(r.Context(), in)
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// ListInvoices returns invoices ordered by due date, filtered by the
// optional status and client_id query parameters.
func (h *InvoiceHandlers) ListInvoices(w http.ResponseWriter, r *http.Request) {
	filter, err := parseInvoiceFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	invoices, err := h.invoices.ListInvoices(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	if invoices == nil {
		invoices = []core.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

func (h *InvoiceHandlers) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	inv, err := h.invoices.GetInvoice(r.Context(), id)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (h *InvoiceHandlers) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	var req invoicePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	inv, err := h.invoices.UpdateInvoice(r.Context(), id, patch)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// SetStatus applies a status transition. The response carries the generated
// successor, or a warning when the status was saved without one.
func (h *InvoiceHandlers) SetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	change, err := h.invoices.SetInvoiceStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

func (h *InvoiceHandlers) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := h.invoices.DeleteInvoice(r.Context(), id); err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SweepOverdue marks pending invoices due before as_of (default today) as
// overdue. The body is optional.
func (h *InvoiceHandlers) SweepOverdue(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpSweep)
		return
	}

	asOf := h.sweeper.Today()
	if req.AsOf != "" {
		d, err := parseDateField("as_of", req.AsOf)
		if err != nil {
			writeError(w, r, err, applog.OpSweep)
			return
		}
		asOf = d
	}

	n, err := h.sweeper.SweepOverdue(r.Context(), asOf)
	if err != nil {
		writeError(w, r, err, applog.OpSweep)
		return
	}
	writeJSON(w, http.StatusOK, sweepResponse{AsOf: asOf, Swept: n})
}
