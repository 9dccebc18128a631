package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/shoplist/core/internal/docstore"
	"github.com/shoplist/core/internal/mq"
	"github.com/shoplist/core/internal/rbac"
	"github.com/shoplist/core/types"
)

// ChangeNotifier receives an event after every successful document mutation.
type ChangeNotifier interface {
	Notify(ctx context.Context, change mq.DocumentChange)
}

// privateCollections hold credentials and are only reachable through /auth.
var privateCollections = map[string]bool{
	docstore.CollectionAccounts: true,
	docstore.CollectionSessions: true,
}

// protectedProfileFields may only be set when a profile is created.
var protectedProfileFields = []string{"role", "accountId"}

// DocumentHandler exposes the document store over HTTP.
type DocumentHandler struct {
	store    docstore.Client
	notifier ChangeNotifier
	logger   *slog.Logger
}

// NewDocumentHandler constructs a DocumentHandler. notifier may be nil.
func NewDocumentHandler(store docstore.Client, notifier ChangeNotifier, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{store: store, notifier: notifier, logger: logger}
}

// DocumentRouter registers document routes on the given router.
func DocumentRouter(r chi.Router, store docstore.Client, notifier ChangeNotifier, logger *slog.Logger, authMiddleware func(http.Handler) http.Handler) {
	handler := NewDocumentHandler(store, notifier, logger)

	r.Use(authMiddleware)
	r.Route("/{collection}/documents", func(r chi.Router) {
		r.Post("/", handler.Create)
		r.Get("/", handler.List)
		r.Get("/{id}", handler.Get)
		r.Patch("/{id}", handler.Update)
		r.Delete("/{id}", handler.Delete)
	})
}

// ListDocumentsResponse is the body of a document listing.
type ListDocumentsResponse struct {
	Documents []docstore.Document `json:"documents"`
	Total     int                 `json:"total"`
}

// Create stores a new document.
func (h *DocumentHandler) Create(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if collection == docstore.CollectionUsers && !h.allowProfileCreate(w, r, data) {
		return
	}

	doc, err := h.store.CreateDocument(r.Context(), collection, data)
	if err != nil {
		h.writeStoreError(w, "create document", err)
		return
	}

	h.notify(r, collection, doc.ID, mq.ActionCreated)
	writeJSON(w, http.StatusCreated, doc)
}

// List returns documents matching the query string equality filters.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fields := make([]string, 0, len(query))
	for field := range query {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	filters := make([]docstore.Filter, 0, len(fields))
	for _, field := range fields {
		for _, value := range query[field] {
			filters = append(filters, docstore.Equal(field, value))
		}
	}

	docs, err := h.store.ListDocuments(r.Context(), collection, filters...)
	if err != nil {
		h.writeStoreError(w, "list documents", err)
		return
	}
	if docs == nil {
		docs = []docstore.Document{}
	}

	writeJSON(w, http.StatusOK, ListDocumentsResponse{Documents: docs, Total: len(docs)})
}

// Get returns a single document.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	doc, err := h.store.GetDocument(r.Context(), collection, chi.URLParam(r, "id"))
	if err != nil {
		h.writeStoreError(w, "get document", err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// Update merges the request body into a document.
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	var patch map[string]any
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := chi.URLParam(r, "id")
	if collection == docstore.CollectionUsers {
		for _, field := range protectedProfileFields {
			if _, ok := patch[field]; ok {
				writeError(w, http.StatusForbidden, field+" cannot be changed")
				return
			}
		}
		if !h.ownsProfile(w, r, id) {
			return
		}
	}

	doc, err := h.store.UpdateDocument(r.Context(), collection, id, patch)
	if err != nil {
		h.writeStoreError(w, "update document", err)
		return
	}

	h.notify(r, collection, id, mq.ActionUpdated)
	writeJSON(w, http.StatusOK, doc)
}

// Delete removes a document.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	collection, ok := h.collection(w, r)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	if collection == docstore.CollectionUsers && !h.ownsProfile(w, r, id) {
		return
	}
	if err := h.store.DeleteDocument(r.Context(), collection, id); err != nil {
		h.writeStoreError(w, "delete document", err)
		return
	}

	h.notify(r, collection, id, mq.ActionDeleted)
	w.WriteHeader(http.StatusNoContent)
}

func (h *DocumentHandler) collection(w http.ResponseWriter, r *http.Request) (string, bool) {
	collection := chi.URLParam(r, "collection")
	if err := docstore.ValidCollection(collection); err != nil {
		writeError(w, http.StatusBadRequest, "invalid collection")
		return "", false
	}
	if privateCollections[collection] {
		writeError(w, http.StatusForbidden, "collection not accessible")
		return "", false
	}
	return collection, true
}

// allowProfileCreate admits one profile per account, owned by the caller.
func (h *DocumentHandler) allowProfileCreate(w http.ResponseWriter, r *http.Request, data map[string]any) bool {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	if owner, _ := data["accountId"].(string); owner != accountID {
		writeError(w, http.StatusForbidden, "profile must belong to the signed-in account")
		return false
	}
	if role, _ := data["role"].(string); !rbac.Valid(types.Role(role)) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return false
	}

	existing, err := h.store.ListDocuments(r.Context(), docstore.CollectionUsers, docstore.Equal("accountId", accountID))
	if err != nil {
		h.writeStoreError(w, "create document", err)
		return false
	}
	if len(existing) > 0 {
		writeError(w, http.StatusConflict, "profile already exists")
		return false
	}
	return true
}

func (h *DocumentHandler) ownsProfile(w http.ResponseWriter, r *http.Request, id string) bool {
	accountID, err := accountIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return false
	}
	doc, err := h.store.GetDocument(r.Context(), docstore.CollectionUsers, id)
	if err != nil {
		h.writeStoreError(w, "load profile", err)
		return false
	}
	if owner, _ := doc.Data["accountId"].(string); owner != accountID {
		writeError(w, http.StatusForbidden, "profile belongs to another account")
		return false
	}
	return true
}

func (h *DocumentHandler) writeStoreError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, "document not found")
	case errors.Is(err, docstore.ErrInvalidCollection):
		writeError(w, http.StatusBadRequest, "invalid collection")
	default:
		h.logger.Error(op+" failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+op)
	}
}

func (h *DocumentHandler) notify(r *http.Request, collection, id, action string) {
	documentMutationsTotal.WithLabelValues(collection, action).Inc()
	if h.notifier == nil {
		return
	}
	accountID, _ := accountIDFromContext(r.Context())
	h.notifier.Notify(r.Context(), mq.DocumentChange{
		Collection: collection,
		ID:         id,
		Action:     action,
		AccountID:  accountID,
	})
}
