//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odysseia-chat/worldbook/internal/api/handlers"
	"github.com/odysseia-chat/worldbook/internal/domain"
	"github.com/odysseia-chat/worldbook/internal/jobs"
	"github.com/odysseia-chat/worldbook/internal/repository"
	"github.com/odysseia-chat/worldbook/internal/server"
	"github.com/odysseia-chat/worldbook/internal/service"
	"github.com/odysseia-chat/worldbook/internal/testutil"
)

// fakeMessenger stands in for the Discord gateway: it hands out message ids
// and reports whatever vote counts the test has staged.
type fakeMessenger struct {
	mu           sync.Mutex
	nextID       int
	votes        map[string]service.VoteCounts
	lost         map[string]bool
	approvals    []string
	rejections   []string
	lastRejected string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		votes: make(map[string]service.VoteCounts),
		lost:  make(map[string]bool),
	}
}

func (m *fakeMessenger) PostReview(ctx context.Context, channelID string, e *domain.PendingEntry) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("msg-%d", m.nextID), nil
}

func (m *fakeMessenger) CountVotes(ctx context.Context, channelID, messageID string) (service.VoteCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lost[messageID] {
		return service.VoteCounts{}, domain.ErrReviewMessageNotFound
	}
	return m.votes[messageID], nil
}

func (m *fakeMessenger) AnnounceApproval(ctx context.Context, channelID, messageID, entryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.approvals = append(m.approvals, entryID)
	return nil
}

func (m *fakeMessenger) AnnounceRejection(ctx context.Context, channelID, messageID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejections = append(m.rejections, messageID)
	m.lastRejected = reason
	return nil
}

func (m *fakeMessenger) SetVotes(messageID string, counts service.VoteCounts) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.votes[messageID] = counts
}

func (m *fakeMessenger) MarkLost(messageID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lost[messageID] = true
}

// fakeEmbedder produces deterministic vectors without an API key
type fakeEmbedder struct{}

func (fakeEmbedder) Available() bool { return true }

func (fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	v := make([]float32, 1536)
	for i := range v {
		v[i] = float32(len(text)%7) + 0.5
	}
	return v, nil
}

// fakeRefunder records refunds issued for rejected purchases
type fakeRefunder struct {
	mu      sync.Mutex
	refunds []refund
}

type refund struct {
	UserID string
	Amount int64
	Reason string
}

func (r *fakeRefunder) Refund(ctx context.Context, userID string, amount int64, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refunds = append(r.refunds, refund{UserID: userID, Amount: amount, Reason: reason})
	return nil
}

func (r *fakeRefunder) Refunds() []refund {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]refund, len(r.refunds))
	copy(out, r.refunds)
	return out
}

// E2ETestEnv holds the full pipeline wired against a real database with the
// external collaborators faked.
type E2ETestEnv struct {
	T           *testing.T
	Ctx         context.Context
	PostgresC   *testutil.PostgresContainer
	Pool        *pgxpool.Pool
	Server      *httptest.Server
	Clock       *testClock
	Messenger   *fakeMessenger
	Refunder    *fakeRefunder
	Coordinator *service.ReviewCoordinator
	IndexWorker *jobs.IndexWorker
	ChunkRepo   *repository.ChunkRepository
	PendingRepo *repository.PendingRepository
	GeneralRepo *repository.GeneralKnowledgeRepository
	MemberRepo  *repository.MemberRepository
}

// testClock is an adjustable time source for driving the expiry sweep
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// SetupE2EEnv starts a postgres container and wires the whole pipeline
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	pendingRepo := repository.NewPendingRepository(pool)
	generalRepo := repository.NewGeneralKnowledgeRepository(pool)
	memberRepo := repository.NewMemberRepository(pool)
	chunkRepo := repository.NewChunkRepository(pool)
	indexJobRepo := repository.NewIndexJobRepository(pool)
	txRunner := repository.NewTxRunner(pool)

	knowledgeSvc := service.NewKnowledgeService(txRunner, memberRepo)
	indexer := service.NewIndexer(generalRepo, memberRepo, chunkRepo, fakeEmbedder{})

	clock := &testClock{now: time.Now().UTC().Truncate(time.Microsecond)}
	messenger := newFakeMessenger()
	refunder := &fakeRefunder{}

	coordinator := service.NewReviewCoordinatorWithClock(
		service.DefaultReviewConfig(), pendingRepo, knowledgeSvc, messenger, refunder, clock.Now)

	reviewHandler := handlers.NewReviewHandler(pendingRepo, indexer)
	router := server.NewRouter(server.RouterConfig{ReviewHandler: reviewHandler})
	srv := httptest.NewServer(router)

	env := &E2ETestEnv{
		T:           t,
		Ctx:         ctx,
		PostgresC:   pgC,
		Pool:        pool,
		Server:      srv,
		Clock:       clock,
		Messenger:   messenger,
		Refunder:    refunder,
		Coordinator: coordinator,
		IndexWorker: jobs.NewIndexWorker(indexJobRepo, indexer),
		ChunkRepo:   chunkRepo,
		PendingRepo: pendingRepo,
		GeneralRepo: generalRepo,
		MemberRepo:  memberRepo,
	}
	return env
}

// Cleanup tears down the server, pool, and container
func (env *E2ETestEnv) Cleanup() {
	env.Server.Close()
	env.Pool.Close()
	_ = env.PostgresC.Terminate(env.Ctx)
}

// Get performs a GET against the test server and decodes the data envelope
func (env *E2ETestEnv) Get(path string) (int, json.RawMessage, error) {
	resp, err := http.Get(env.Server.URL + path)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp)
}

// Post performs a bodyless POST against the test server
func (env *E2ETestEnv) Post(path string) (int, json.RawMessage, error) {
	resp, err := http.Post(env.Server.URL+path, "application/json", nil)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	return decodeEnvelope(resp)
}

func decodeEnvelope(resp *http.Response) (int, json.RawMessage, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return resp.StatusCode, body, nil
	}
	return resp.StatusCode, envelope.Data, nil
}
