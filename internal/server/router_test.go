package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/odysseia-chat/worldbook/internal/api/handlers"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPendingReader struct {
	entries []*domain.PendingEntry
}

func (s *stubPendingReader) ListPendingPage(ctx context.Context, cursor *pagination.Cursor, limit int) (*pagination.PageResult[*domain.PendingEntry], error) {
	return &pagination.PageResult[*domain.PendingEntry]{Items: s.entries}, nil
}

func (s *stubPendingReader) GetByID(ctx context.Context, id int64) (*domain.PendingEntry, error) {
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, domain.ErrPendingEntryNotFound
}

type stubIndexAdmin struct {
	ready bool
}

func (s *stubIndexAdmin) IsReady(ctx context.Context) bool { return s.ready }

func (s *stubIndexAdmin) RebuildAll(ctx context.Context) (int, int, error) { return 0, 0, nil }

func newTestRouter() http.Handler {
	handler := handlers.NewReviewHandler(
		&stubPendingReader{entries: []*domain.PendingEntry{{
			ID:     1,
			Type:   domain.EntryTypeGeneralKnowledge,
			Status: domain.PendingStatusPending,
			Origin: domain.Origin{ChannelID: "chan-1", GuildID: "guild-1", SubmitterID: "user-1"},
		}}},
		&stubIndexAdmin{ready: true},
	)
	return NewRouter(RouterConfig{ReviewHandler: handler})
}

func TestRouter_Routes(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/pending", http.StatusOK},
		{http.MethodGet, "/pending/1", http.StatusOK},
		{http.MethodGet, "/pending/999", http.StatusNotFound},
		{http.MethodPost, "/reindex", http.StatusOK},
		{http.MethodGet, "/nope", http.StatusNotFound},
		{http.MethodDelete, "/pending", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRouter_RequestIDHeader(t *testing.T) {
	router := newTestRouter()

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRouter_EchoesProvidedRequestID(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
}
