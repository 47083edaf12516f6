package http

import (
	"net/http"

	"github.com/gorilla/mux"

	applog "faturamento/internal/log"
	"faturamento/internal/services"
)

// ClientHandlers serves clients and the products and notes they own.
type ClientHandlers struct {
	clients  *services.ClientService
	invoices *services.InvoiceService
}

func NewClientHandlers(clients *services.ClientService, invoices *services.InvoiceService) *ClientHandlers {
	return &ClientHandlers{clients: clients, invoices: invoices}
}

// RegisterRoutes registers client, product and note routes
func (h *ClientHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/clients", h.ListClients).Methods(http.MethodGet)
	router.HandleFunc("/clients", h.CreateClient).Methods(http.MethodPost)
	router.HandleFunc("/clients/{id}", h.GetClient).Methods(http.MethodGet)
	router.HandleFunc("/clients/{id}", h.UpdateClient).Methods(http.MethodPut)
	router.HandleFunc("/clients/{id}", h.DeleteClient).Methods(http.MethodDelete)

	router.HandleFunc("/clients/{id}/products", h.CreateProduct).Methods(http.MethodPost)
	router.HandleFunc("/products/{id}", h.GetProduct).Methods(http.MethodGet)
	router.HandleFunc("/products/{id}", h.UpdateProduct).Methods(http.MethodPut)
	router.HandleFunc("/products/{id}", h.DeleteProduct).Methods(http.MethodDelete)

	router.HandleFunc("/clients/{id}/notes", h.CreateNote).Methods(http.MethodPost)
	router.HandleFunc("/notes/{id}", h.GetNote).Methods(http.MethodGet)
	router.HandleFunc("/notes/{id}", h.UpdateNote).Methods(http.MethodPut)
	router.HandleFunc("/notes/{id}", h.DeleteNote).Methods(http.MethodDelete)
}

func (h *ClientHandlers) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.clients.ListClients(r.Context())
	if err != nil {
		writeError(w, r, err, applog.OpList)
		return
	}
	writeJSON(w, http.StatusOK, clients)
}

func (h *ClientHandlers) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	c, err := h.clients.CreateClient(r.Context(), req.toClient())
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// GetClient returns the client with its products, notes and invoices.
func (h *ClientHandlers) GetClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	detail, err := h.clients.GetClientDetail(r.Context(), id)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *ClientHandlers) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	var req clientRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	c, err := h.clients.UpdateClient(r.Context(), id, req.toPatch())
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *ClientHandlers) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := h.clients.DeleteClient(r.Context(), id); err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandlers) CreateProduct(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	p, err := h.clients.CreateProduct(r.Context(), req.toProduct(clientID))
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ClientHandlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	p, err := h.clients.GetProduct(r.Context(), id)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ClientHandlers) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	var req productRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	p, err := h.clients.UpdateProduct(r.Context(), id, req.toPatch())
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ClientHandlers) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := h.clients.DeleteProduct(r.Context(), id); err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ClientHandlers) CreateNote(w http.ResponseWriter, r *http.Request) {
	clientID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	n, err := h.clients.CreateNote(r.Context(), req.toNote(clientID))
	if err != nil {
		writeError(w, r, err, applog.OpCreate)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *ClientHandlers) GetNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	n, err := h.clients.GetNote(r.Context(), id)
	if err != nil {
		writeError(w, r, err, applog.OpRead)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *ClientHandlers) UpdateNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	var req noteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	n, err := h.clients.UpdateNote(r.Context(), id, req.toPatch())
	if err != nil {
		writeError(w, r, err, applog.OpUpdate)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *ClientHandlers) DeleteNote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	if err := h.clients.DeleteNote(r.Context(), id); err != nil {
		writeError(w, r, err, applog.OpDelete)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
