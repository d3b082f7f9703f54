package http

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/fjod/go_cart/internal/domain"
	"go.uber.org/zap"
)

// HistoryAPI is satisfied by *service.HistoryService.
type HistoryAPI interface {
	Browse(ctx context.Context, kind string, ids []int64, categories []string) ([]*domain.Product, error)
}

// SettingsAPI is satisfied by *settings.Service.
type SettingsAPI interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, next domain.Settings) (domain.Settings, error)
	Refresh(ctx context.Context) error
}

// Browsing history lists are bound into SQL placeholders.
const (
	maxHistoryIDs        = 50
	maxHistoryCategories = 20
)

type CatalogHandler struct {
	history  HistoryAPI
	settings SettingsAPI
	log      *zap.Logger
}

func NewCatalogHandler(history HistoryAPI, settings SettingsAPI, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{history: history, settings: settings, log: log}
}

// GET /api/v1/products/browsing-history?type=history|related&ids=1,2&categories=a,b
func (h *CatalogHandler) BrowsingHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	ids, err := parseIDs(q.Get("ids"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "ids must be a comma separated list of integers")
		return
	}
	if len(ids) > maxHistoryIDs {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("at most %d ids are allowed", maxHistoryIDs))
		return
	}
	categories := splitList(q.Get("categories"))
	if len(categories) > maxHistoryCategories {
		respondError(w, http.StatusBadRequest, "invalid_request", fmt.Sprintf("at most %d categories are allowed", maxHistoryCategories))
		return
	}
	kind := q.Get("type")
	if kind == "" {
		kind = "history"
	}

	products, err := h.history.Browse(r.Context(), kind, ids, categories)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, products)
}

// GET /api/v1/settings
func (h *CatalogHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	s, err := h.settings.Get(r.Context())
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, s)
}

// PUT /api/v1/admin/settings
func (h *CatalogHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req domain.Settings
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.settings.Update(r.Context(), req)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "settings updated", s)
}

// POST /api/v1/admin/settings/refresh
func (h *CatalogHandler) RefreshSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Refresh(r.Context()); err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	respondOK(w, http.StatusOK, "settings reloaded", nil)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseIDs(s string) ([]int64, error) {
	parts := splitList(s)
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
