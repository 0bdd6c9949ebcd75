package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/recobatch/internal/domain"
	"github.com/kailas-cloud/recobatch/internal/domain/similarity"
	"github.com/kailas-cloud/recobatch/internal/usecase/embedding"
)

// --- Mocks ---

type mockUserSource struct {
	users []domain.User
	err   error
}

func (m *mockUserSource) Users(context.Context) ([]domain.User, error) { return m.users, m.err }

type mockMediaSource struct {
	media []domain.Media
	err   error
}

func (m *mockMediaSource) Media(context.Context) ([]domain.Media, error) { return m.media, m.err }

// mockEmbedder maps ids to fixed vectors; ids in failIDs are reported failed.
type mockEmbedder struct {
	vectors map[string][]float32
	failIDs map[string]bool
	err     error
}

func (m *mockEmbedder) EmbedAll(_ context.Context, items []embedding.Item) (map[string][]float32, []string, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	out := make(map[string][]float32)
	var failed []string
	for _, item := range items {
		if m.failIDs[item.ID] {
			failed = append(failed, item.ID)
			continue
		}
		if vec, ok := m.vectors[item.ID]; ok {
			out[item.ID] = vec
		}
	}
	return out, failed, nil
}

// mockSink keeps full-replace semantics: every call overwrites the snapshot.
type mockSink struct {
	snapshot []domain.Recommendation
	calls    int
	err      error
}

func (m *mockSink) ReplaceRecommendations(_ context.Context, recs []domain.Recommendation) error {
	if m.err != nil {
		return m.err
	}
	m.calls++
	m.snapshot = append([]domain.Recommendation(nil), recs...)
	return nil
}

type mockVectorSink struct {
	model      string
	userCount  int
	mediaCount int
}

func (m *mockVectorSink) ReplaceUserVectors(_ context.Context, model string, vectors map[string][]float32) error {
	m.model = model
	m.userCount = len(vectors)
	return nil
}

func (m *mockVectorSink) ReplaceMediaVectors(_ context.Context, model string, vectors map[string][]float32) error {
	m.model = model
	m.mediaCount = len(vectors)
	return nil
}

type fixedClock struct{ ts time.Time }

func (c fixedClock) Now(context.Context) (time.Time, error) { return c.ts, nil }

// --- Fixtures ---

func testUsers(ids ...string) []domain.User {
	users := make([]domain.User, len(ids))
	for i, id := range ids {
		users[i] = domain.User{UserID: id, ExperienceLevel: "intermediate"}
	}
	return users
}

func testMedia(ids ...string) []domain.Media {
	media := make([]domain.Media, len(ids))
	for i, id := range ids {
		media[i] = domain.Media{MediaID: id, Type: domain.MediaTypeArticle, Title: id, Content: "body"}
	}
	return media
}

func newService(
	users []domain.User, media []domain.Media,
	emb *mockEmbedder, sink *mockSink, vectors VectorSink,
	opts Options,
) *Service {
	if opts.Metric == "" {
		opts.Metric = similarity.Cosine
	}
	if opts.TopN == 0 {
		opts.TopN = 10
	}
	return New(
		&mockUserSource{users: users}, &mockMediaSource{media: media},
		emb, sink, vectors,
		fixedClock{ts: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		opts, zap.NewNop(),
	)
}

func TestRun_RanksAndPersists(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0},
		"a":  {1, 0},  // cosine 1
		"b":  {0, 1},  // cosine 0
		"c":  {-1, 0}, // cosine -1
	}}
	sink := &mockSink{}
	svc := newService(testUsers("u1"), testMedia("a", "b", "c"), emb, sink, nil, Options{TopN: 2})

	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sum.RowsWritten != 2 || len(sink.snapshot) != 2 {
		t.Fatalf("rows written = %d, snapshot = %d, want 2", sum.RowsWritten, len(sink.snapshot))
	}
	wantIDs := []string{"a", "b"}
	for i, rec := range sink.snapshot {
		if rec.UserID != "u1" {
			t.Errorf("row %d user = %s", i, rec.UserID)
		}
		if rec.RecommendedMediaID != wantIDs[i] {
			t.Errorf("row %d media = %s, want %s", i, rec.RecommendedMediaID, wantIDs[i])
		}
		if rec.Rank != i+1 {
			t.Errorf("row %d rank = %d, want %d", i, rec.Rank, i+1)
		}
		if !rec.ProcessingTimestamp.Equal(sum.Timestamp) {
			t.Errorf("row %d timestamp differs from run timestamp", i)
		}
	}
}

func TestRun_SharedTimestampAcrossUsers(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0}, "u2": {0, 1},
		"a": {1, 1},
	}}
	sink := &mockSink{}
	svc := newService(testUsers("u1", "u2"), testMedia("a"), emb, sink, nil, Options{})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for i := 1; i < len(sink.snapshot); i++ {
		if !sink.snapshot[i].ProcessingTimestamp.Equal(sink.snapshot[0].ProcessingTimestamp) {
			t.Fatal("all rows of one run must share the processing timestamp")
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {0.3, 0.7}, "u2": {0.9, 0.1},
		"a": {0.5, 0.5}, "b": {0.1, 0.9}, "c": {0.8, 0.2},
	}}
	sink := &mockSink{}
	svc := newService(testUsers("u1", "u2"), testMedia("a", "b", "c"), emb, sink, nil, Options{Workers: 3})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first := sink.snapshot

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second := sink.snapshot

	if len(first) != len(second) {
		t.Fatalf("row counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("row %d differs between identical runs:\n%+v\n%+v", i, first[i], second[i])
		}
	}
}

func TestRun_RankSetIsContiguous(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0},
		"a":  {1, 0}, "b": {0.5, 0.5}, "c": {0, 1},
	}}
	sink := &mockSink{}
	// top_n larger than the candidate pool.
	svc := newService(testUsers("u1"), testMedia("a", "b", "c"), emb, sink, nil, Options{TopN: 7})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	seen := make(map[int]bool)
	for _, rec := range sink.snapshot {
		if seen[rec.Rank] {
			t.Errorf("duplicate rank %d", rec.Rank)
		}
		seen[rec.Rank] = true
	}
	for k := 1; k <= 3; k++ {
		if !seen[k] {
			t.Errorf("missing rank %d", k)
		}
	}
	if len(seen) != 3 {
		t.Errorf("rank set = %v, want exactly {1,2,3}", seen)
	}
}

func TestRun_MediaFailureIsolated(t *testing.T) {
	emb := &mockEmbedder{
		vectors: map[string][]float32{
			"u1": {1, 0}, "u2": {0, 1},
			"a": {1, 0}, "b": {0, 1}, "c": {1, 1},
		},
		failIDs: map[string]bool{"b": true},
	}
	sink := &mockSink{}
	svc := newService(testUsers("u1", "u2"), testMedia("a", "b", "c"), emb, sink, nil, Options{})

	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.MediaDiscarded != 1 {
		t.Errorf("media discarded = %d, want 1", sum.MediaDiscarded)
	}

	perUser := make(map[string][]int)
	for _, rec := range sink.snapshot {
		if rec.RecommendedMediaID == "b" {
			t.Error("failed media item must not appear in any user's rows")
		}
		perUser[rec.UserID] = append(perUser[rec.UserID], rec.Rank)
	}
	for user, ranks := range perUser {
		if len(ranks) != 2 {
			t.Errorf("user %s has %d rows, want 2 (N-1 candidates)", user, len(ranks))
		}
	}
}

func TestRun_UserWithoutEmbeddingEmitsNoRows(t *testing.T) {
	emb := &mockEmbedder{
		vectors: map[string][]float32{
			"u1": {1, 0},
			"a":  {1, 0},
		},
		failIDs: map[string]bool{"u2": true},
	}
	sink := &mockSink{}
	svc := newService(testUsers("u1", "u2"), testMedia("a"), emb, sink, nil, Options{})

	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("a user without an embedding is not an error: %v", err)
	}
	if sum.UsersDiscarded != 1 {
		t.Errorf("users discarded = %d, want 1", sum.UsersDiscarded)
	}
	for _, rec := range sink.snapshot {
		if rec.UserID == "u2" {
			t.Error("user without embedding must emit no rows")
		}
	}
}

func TestRun_NoMediaEmbeddingsAborts(t *testing.T) {
	emb := &mockEmbedder{
		vectors: map[string][]float32{"u1": {1, 0}},
		failIDs: map[string]bool{"a": true, "b": true},
	}
	sink := &mockSink{}
	svc := newService(testUsers("u1"), testMedia("a", "b"), emb, sink, nil, Options{})

	_, err := svc.Run(context.Background())
	if !errors.Is(err, domain.ErrNoMediaEmbeddings) {
		t.Fatalf("expected ErrNoMediaEmbeddings, got %v", err)
	}
	if sink.calls != 0 {
		t.Error("nothing must be written when the run aborts")
	}
}

func TestRun_FullReplaceAcrossConfigChanges(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0},
		"a":  {1, 0}, "b": {0.7, 0.7}, "c": {0, 1},
	}}
	sink := &mockSink{}

	// First run with top_n=3 fills ranks 1-3.
	svc3 := newService(testUsers("u1"), testMedia("a", "b", "c"), emb, sink, nil, Options{TopN: 3})
	if _, err := svc3.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if len(sink.snapshot) != 3 {
		t.Fatalf("first snapshot has %d rows, want 3", len(sink.snapshot))
	}

	// Second run with top_n=1 must leave only rank-1 rows.
	svc1 := newService(testUsers("u1"), testMedia("a", "b", "c"), emb, sink, nil, Options{TopN: 1})
	if _, err := svc1.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(sink.snapshot) != 1 {
		t.Fatalf("second snapshot has %d rows, want 1", len(sink.snapshot))
	}
	if sink.snapshot[0].Rank != 1 {
		t.Errorf("leftover rank %d found after replace", sink.snapshot[0].Rank)
	}
}

func TestRun_UnknownMediaTypeDiscarded(t *testing.T) {
	media := testMedia("a")
	media = append(media, domain.Media{MediaID: "weird", Type: "podcast", Title: "x"})

	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0},
		"a":  {1, 0},
		// "weird" never reaches the embedder: its text is empty.
	}}
	sink := &mockSink{}
	svc := newService(testUsers("u1"), media, emb, sink, nil, Options{})

	sum, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.MediaDiscarded != 1 {
		t.Errorf("media discarded = %d, want 1 (empty embedding text)", sum.MediaDiscarded)
	}
}

func TestRun_PersistsVectors(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0}, "u2": {0, 1},
		"a": {1, 1},
	}}
	sink := &mockSink{}
	vectors := &mockVectorSink{}
	svc := newService(testUsers("u1", "u2"), testMedia("a"), emb, sink, vectors,
		Options{Model: "text-embedding-3-small"})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if vectors.model != "text-embedding-3-small" {
		t.Errorf("vector sink model = %q", vectors.model)
	}
	if vectors.userCount != 2 || vectors.mediaCount != 1 {
		t.Errorf("persisted %d user / %d media vectors, want 2 / 1",
			vectors.userCount, vectors.mediaCount)
	}
}

func TestRun_SinkErrorFailsRun(t *testing.T) {
	emb := &mockEmbedder{vectors: map[string][]float32{
		"u1": {1, 0}, "a": {1, 0},
	}}
	sink := &mockSink{err: errors.New("permission denied")}
	svc := newService(testUsers("u1"), testMedia("a"), emb, sink, nil, Options{})

	if _, err := svc.Run(context.Background()); err == nil {
		t.Fatal("expected sink error to fail the run")
	}
}

func TestRun_ParallelWorkersKeepUserOrder(t *testing.T) {
	users := testUsers("u1", "u2", "u3", "u4", "u5")
	vectors := map[string][]float32{"a": {1, 0}, "b": {0, 1}}
	for _, u := range users {
		vectors[u.UserID] = []float32{1, 1}
	}
	emb := &mockEmbedder{vectors: vectors}
	sink := &mockSink{}
	svc := newService(users, testMedia("a", "b"), emb, sink, nil, Options{Workers: 8})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Rows come out grouped by user, users in input order.
	wantUsers := []string{"u1", "u1", "u2", "u2", "u3", "u3", "u4", "u4", "u5", "u5"}
	if len(sink.snapshot) != len(wantUsers) {
		t.Fatalf("got %d rows, want %d", len(sink.snapshot), len(wantUsers))
	}
	for i, rec := range sink.snapshot {
		if rec.UserID != wantUsers[i] {
			t.Errorf("row %d user = %s, want %s", i, rec.UserID, wantUsers[i])
		}
	}
}
