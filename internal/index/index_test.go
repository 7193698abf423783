package index

import (
	"context"
	"reflect"
	"testing"

	"skillforge/internal/skill"
)

func mkSkill(name string) *skill.Skill {
	return &skill.Skill{
		Name:        name,
		Contract:    skill.Contract{Params: []skill.Param{{Name: "text", Type: "string"}}},
		Description: "Test skill " + name + ".",
	}
}

func rebuilt(t *testing.T, engine *stubEngine, names ...string) *Index {
	t.Helper()
	skills := make([]*skill.Skill, len(names))
	for i, n := range names {
		skills[i] = mkSkill(n)
	}
	idx := New(engine)
	if err := idx.Rebuild(context.Background(), skills); err != nil {
		t.Fatalf("Rebuild() error = %v", err)
	}
	return idx
}

func matchNames(matches []Match) []string {
	names := make([]string, len(matches))
	for i, m := range matches {
		names[i] = m.Name
	}
	return names
}

func TestRebuildAlignsNamesAndVectors(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
		"gamma": {1, 1},
	}}
	idx := rebuilt(t, engine, "alpha", "beta", "gamma")

	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", idx.Len())
	}
	if got, want := idx.Names(), []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	// Index positions must refer back to insertion order no matter the rank.
	engine.vectors["query"] = []float32{1, 1}
	matches, err := idx.TopK(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	for _, m := range matches {
		switch m.Name {
		case "alpha":
			if m.Index != 0 {
				t.Errorf("alpha Index = %d, want 0", m.Index)
			}
		case "beta":
			if m.Index != 1 {
				t.Errorf("beta Index = %d, want 1", m.Index)
			}
		case "gamma":
			if m.Index != 2 {
				t.Errorf("gamma Index = %d, want 2", m.Index)
			}
		}
	}
}

func TestTopKOrdersByScoreDescending(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {3, 0},
		"gamma": {2, 0},
		"query": {1, 0},
	}}
	idx := rebuilt(t, engine, "alpha", "beta", "gamma")

	matches, err := idx.TopK(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if got, want := matchNames(matches), []string{"beta", "gamma", "alpha"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TopK order = %v, want %v", got, want)
	}
	wantScores := []float64{3, 2, 1}
	for i, m := range matches {
		if m.Score != wantScores[i] {
			t.Errorf("matches[%d].Score = %v, want %v", i, m.Score, wantScores[i])
		}
	}
}

func TestTopKTruncatesToK(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {3, 0},
		"gamma": {2, 0},
		"query": {1, 0},
	}}
	idx := rebuilt(t, engine, "alpha", "beta", "gamma")

	matches, err := idx.TopK(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if got, want := matchNames(matches), []string{"beta", "gamma"}; !reflect.DeepEqual(got, want) {
		t.Errorf("TopK(k=2) = %v, want %v", got, want)
	}

	matches, err = idx.TopK(context.Background(), "query", 10)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("TopK(k=10) returned %d matches, want all 3", len(matches))
	}

	matches, err = idx.TopK(context.Background(), "query", 0)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(matches) != 0 {
		t.Errorf("TopK(k=0) returned %d matches, want 0", len(matches))
	}
}

func TestTopKTiesKeepInsertionOrder(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 1},
		"beta":  {1, 1},
		"gamma": {0, 0},
		"query": {1, 1},
	}}
	idx := rebuilt(t, engine, "alpha", "beta", "gamma")

	matches, err := idx.TopK(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if got, want := matchNames(matches), []string{"alpha", "beta", "gamma"}; !reflect.DeepEqual(got, want) {
		t.Errorf("tied order = %v, want insertion order %v", got, want)
	}
	if matches[0].Score != matches[1].Score {
		t.Errorf("expected a tie, got %v vs %v", matches[0].Score, matches[1].Score)
	}
}

func TestTopKEmptyIndex(t *testing.T) {
	idx := New(&stubEngine{dims: 2})
	matches, err := idx.TopK(context.Background(), "anything", 3)
	if err != nil {
		t.Fatalf("TopK() on empty index error = %v, want nil", err)
	}
	if len(matches) != 0 {
		t.Errorf("TopK() on empty index = %v, want empty", matches)
	}
}

func TestTopKQueryEmbedFailure(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
	}, fail: map[string]bool{"query": true}}
	idx := rebuilt(t, engine, "alpha")

	matches, err := idx.TopK(context.Background(), "query", 3)
	if err == nil {
		t.Fatal("TopK() error = nil, want query embed failure")
	}
	if len(matches) != 0 {
		t.Errorf("TopK() = %v, want empty on embed failure", matches)
	}
}

func TestRebuildZeroVectorDegradation(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {2, 0},
		"gamma": {1, 0},
		"query": {1, 0},
	}, fail: map[string]bool{"beta": true}}
	idx := rebuilt(t, engine, "alpha", "beta", "gamma")

	// The failed skill stays indexed; it just cannot win.
	if idx.Len() != 3 {
		t.Fatalf("Len() = %d, want 3 including the degraded skill", idx.Len())
	}

	matches, err := idx.TopK(context.Background(), "query", 3)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if got, want := matchNames(matches), []string{"alpha", "gamma", "beta"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("TopK order = %v, want %v", got, want)
	}
	if matches[2].Score != 0 {
		t.Errorf("degraded skill score = %v, want 0", matches[2].Score)
	}
}

func TestRebuildReplacesWholesale(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
	}}
	idx := rebuilt(t, engine, "alpha", "beta")

	if err := idx.Rebuild(context.Background(), []*skill.Skill{mkSkill("alpha")}); err != nil {
		t.Fatalf("second Rebuild() error = %v", err)
	}
	if idx.Len() != 1 {
		t.Errorf("Len() = %d, want 1 after shrinking rebuild", idx.Len())
	}
	if got, want := idx.Names(), []string{"alpha"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestMagnitudeAffectsRanking(t *testing.T) {
	// Both skill vectors point the same way; under cosine they would tie.
	// The ranking is an unnormalized dot product, so the longer one wins.
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {10, 0},
		"query": {1, 0},
	}}
	idx := rebuilt(t, engine, "alpha", "beta")

	matches, err := idx.TopK(context.Background(), "query", 2)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if matches[0].Name != "beta" {
		t.Errorf("top match = %s (score %v), want the higher-magnitude beta", matches[0].Name, matches[0].Score)
	}
	if matches[0].Score != 10 || matches[1].Score != 1 {
		t.Errorf("scores = %v, %v; want 10, 1", matches[0].Score, matches[1].Score)
	}
}

func TestTopKDimensionMismatchScoresZero(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"query": {1, 0, 0},
	}}
	idx := rebuilt(t, engine, "alpha")

	matches, err := idx.TopK(context.Background(), "query", 1)
	if err != nil {
		t.Fatalf("TopK() error = %v", err)
	}
	if len(matches) != 1 || matches[0].Score != 0 {
		t.Errorf("matches = %v, want alpha scored 0 on dimension mismatch", matches)
	}
}

func TestRebuildCanceledContextKeepsOldIndex(t *testing.T) {
	engine := &stubEngine{dims: 2, vectors: map[string][]float32{
		"alpha": {1, 0},
		"beta":  {0, 1},
	}}
	idx := rebuilt(t, engine, "alpha", "beta")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := idx.Rebuild(ctx, []*skill.Skill{mkSkill("alpha")}); err == nil {
		t.Fatal("Rebuild() with canceled context error = nil, want error")
	}
	if idx.Len() != 2 {
		t.Errorf("Len() = %d, want previous contents (2) preserved", idx.Len())
	}
}
