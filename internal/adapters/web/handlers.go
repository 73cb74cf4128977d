package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"billing-backend/internal/app"
	"billing-backend/internal/core"
)

// Handler is the thin controller layer: decode, delegate, encode. All
// business behaviour lives behind the ApplicationService.
type Handler struct {
	svc    app.ApplicationService
	router chi.Router
}

// NewHandler creates and wires the chi router with all routes.
func NewHandler(svc app.ApplicationService, allowedOrigins string) http.Handler {
	h := &Handler{svc: svc}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recoverer)
	r.Use(CORS(allowedOrigins))

	r.Get("/api/health", h.health)

	r.Post("/api/tenants", h.createTenant)
	r.Post("/api/parties", h.createParty)
	r.Get("/api/parties", h.listParties)
	r.Post("/api/products", h.createProduct)
	r.Get("/api/stock", h.getStockLevels)
	r.Post("/api/stock/recover", h.recoverStock)

	r.Post("/api/documents", h.createDocument)
	r.Get("/api/documents", h.listDocuments)
	r.Get("/api/documents/next-number", h.peekNextNumber)
	r.Get("/api/documents/{id}", h.getDocument)
	r.Put("/api/documents/{id}", h.updateDocument)
	r.Delete("/api/documents/{id}", h.deleteDocument)

	h.router = r
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (h *Handler) createTenant(w http.ResponseWriter, r *http.Request) {
	var req app.CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	tenant, err := h.svc.CreateTenant(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, tenant)
}

func (h *Handler) createParty(w http.ResponseWriter, r *http.Request) {
	var req app.CreatePartyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	party, err := h.svc.CreateParty(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, party)
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	parties, err := h.svc.ListParties(r.Context(), r.URL.Query().Get("tenant"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, parties)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req app.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	product, err := h.svc.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, product)
}

func (h *Handler) getStockLevels(w http.ResponseWriter, r *http.Request) {
	levels, err := h.svc.GetStockLevels(r.Context(), r.URL.Query().Get("tenant"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, levels)
}

func (h *Handler) recoverStock(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RecoverStockAdjustments(r.Context(), r.URL.Query().Get("tenant"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}

func (h *Handler) createDocument(w http.ResponseWriter, r *http.Request) {
	var req app.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	doc, err := h.svc.CreateDocument(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

func (h *Handler) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.ListDocuments(r.Context(),
		r.URL.Query().Get("tenant"),
		core.DocType(r.URL.Query().Get("type")),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, docs)
}

func (h *Handler) peekNextNumber(w http.ResponseWriter, r *http.Request) {
	preview, err := h.svc.PeekNextNumber(r.Context(),
		r.URL.Query().Get("tenant"),
		core.DocType(r.URL.Query().Get("type")),
	)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, preview)
}

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "document id must be numeric", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	doc, err := h.svc.GetDocument(r.Context(), r.URL.Query().Get("tenant"), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

func (h *Handler) updateDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "document id must be numeric", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	var req app.UpdateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, "invalid JSON body", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	req.DocumentID = id
	doc, err := h.svc.UpdateDocument(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, doc)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, "document id must be numeric", "INVALID_INPUT", http.StatusBadRequest)
		return
	}
	result, err := h.svc.DeleteDocument(r.Context(), r.URL.Query().Get("tenant"), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, result)
}
