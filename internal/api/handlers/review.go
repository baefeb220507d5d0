// Package handlers implements the operator HTTP surface: visibility into
// the review queue and index administration.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/odysseia-chat/worldbook/internal/api"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/pagination"
)

// PendingReader exposes read access to the review queue audit trail.
type PendingReader interface {
	ListPendingPage(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.PendingEntry], error)
	GetByID(ctx context.Context, id int64) (*domain.PendingEntry, error)
}

// IndexAdmin exposes index administration operations.
type IndexAdmin interface {
	IsReady(ctx context.Context) bool
	RebuildAll(ctx context.Context) (indexed int, failed int, err error)
}

// ReviewHandler serves the operator endpoints.
type ReviewHandler struct {
	pending PendingReader
	index   IndexAdmin
}

// NewReviewHandler creates a new ReviewHandler instance
func NewReviewHandler(pending PendingReader, index IndexAdmin) *ReviewHandler {
	return &ReviewHandler{
		pending: pending,
		index:   index,
	}
}

type pendingEntryResponse struct {
	ID              int64     `json:"id"`
	Type            string    `json:"type"`
	Status          string    `json:"status"`
	ChannelID       string    `json:"channel_id"`
	GuildID         string    `json:"guild_id"`
	SubmitterID     string    `json:"submitter_id"`
	ReviewMessageID string    `json:"review_message_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	ExpiresAt       time.Time `json:"expires_at"`
}

func toPendingResponse(e *domain.PendingEntry) pendingEntryResponse {
	return pendingEntryResponse{
		ID:              e.ID,
		Type:            string(e.Type),
		Status:          string(e.Status),
		ChannelID:       e.Origin.ChannelID,
		GuildID:         e.Origin.GuildID,
		SubmitterID:     e.Origin.SubmitterID,
		ReviewMessageID: e.ReviewMessageID,
		CreatedAt:       e.CreatedAt,
		ExpiresAt:       e.ExpiresAt,
	}
}

// Health reports process liveness and indexer readiness.
func (h *ReviewHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"index_ready": h.index.IsReady(r.Context()),
	})
}

// ListPending returns submissions still awaiting votes, oldest first, as a
// cursor-paginated page.
func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 100 {
			api.Error(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}

	cursor, err := pagination.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid cursor")
		return
	}

	page, err := h.pending.ListPendingPage(r.Context(), cursor, limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]pendingEntryResponse, 0, len(page.Items))
	for _, e := range page.Items {
		items = append(items, toPendingResponse(e))
	}
	api.Success(w, http.StatusOK, pagination.PageResult[pendingEntryResponse]{
		Items:   items,
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	})
}

// GetPending returns one entry by id regardless of status; resolved rows
// stay readable as an audit trail.
func (h *ReviewHandler) GetPending(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "invalid entry id")
		return
	}

	entry, err := h.pending.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toPendingResponse(entry))
}

// Reindex drops and rebuilds the whole vector index from the committed
// entries. Runs synchronously; the caller waits for the counts.
func (h *ReviewHandler) Reindex(w http.ResponseWriter, r *http.Request) {
	indexed, failed, err := h.index.RebuildAll(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]int{
		"indexed": indexed,
		"failed":  failed,
	})
}
