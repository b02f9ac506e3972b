package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"catalogsync/internal/model"
	"catalogsync/internal/repository"
)

const requestTimeout = 30 * time.Second

// Syncer starts a reconciliation cycle in the background and reports whether
// it was started.
type Syncer interface {
	TriggerAsync(ctx context.Context) bool
}

type ProductRequest struct {
	Article *int   `json:"article"`
	Name    string `json:"name"`
	Price   int    `json:"price"`
	Model   string `json:"model"`
	Sizes   []int  `json:"sizes"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type Handler struct {
	store  repository.ProductStore
	syncer Syncer
	logger *zap.Logger
}

// NewRouter mounts the product CRUD routes and the manual sync trigger.
// syncer may be nil, in which case POST /sync is not mounted.
func NewRouter(store repository.ProductStore, syncer Syncer, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{store: store, syncer: syncer, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Timeout(requestTimeout))

	r.Get("/healthz", h.health)
	r.Route("/products", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{article}", h.get)
		r.Put("/{article}", h.update)
		r.Delete("/{article}", h.remove)
	})
	if syncer != nil {
		r.Post("/sync", h.sync)
	}
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.store.List(r.Context())
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	article, ok := articleParam(w, r)
	if !ok {
		return
	}
	p, err := h.store.FindByArticle(r.Context(), article)
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if req.Article == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "article is required")
		return
	}
	p, err := h.store.Create(r.Context(), req.product(*req.Article))
	if err != nil {
		h.storeError(w, err)
		return
	}
	h.logger.Info("product created manually", zap.Int("article", p.Article))
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	article, ok := articleParam(w, r)
	if !ok {
		return
	}
	req, ok := decodeProduct(w, r)
	if !ok {
		return
	}
	if req.Article != nil && *req.Article != article {
		writeError(w, http.StatusBadRequest, "invalid_request", "article in body does not match path")
		return
	}
	p, err := h.store.Update(r.Context(), req.product(article))
	if err != nil {
		h.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	article, ok := articleParam(w, r)
	if !ok {
		return
	}
	if err := h.store.Delete(r.Context(), article); err != nil {
		h.storeError(w, err)
		return
	}
	h.logger.Info("product deleted manually", zap.Int("article", article))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) sync(w http.ResponseWriter, r *http.Request) {
	if !h.syncer.TriggerAsync(context.WithoutCancel(r.Context())) {
		writeError(w, http.StatusConflict, "sync_in_progress", "a sync cycle is already running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, repository.ErrConflict):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, repository.ErrOutOfRange):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		h.logger.Error("product store failed", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "product store unavailable")
	}
}

func (req ProductRequest) product(article int) model.Product {
	return model.Product{
		Article: article,
		Name:    strings.TrimSpace(req.Name),
		Price:   req.Price,
		Model:   req.Model,
		Sizes:   model.NormalizeSizes(req.Sizes),
	}
}

func articleParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "article")
	article, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_article", "article must be an integer, got "+strconv.Quote(raw))
		return 0, false
	}
	return article, true
}

func decodeProduct(w http.ResponseWriter, r *http.Request) (ProductRequest, bool) {
	var req ProductRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
