package ranking

import "testing"

func TestTopN_SortsAndTruncates(t *testing.T) {
	got := TopN([]string{"a", "b", "c"}, []float64{0.1, 0.9, 0.5}, 2)

	want := []Ranked{
		{ID: "b", Rank: 1, Score: 0.9},
		{ID: "c", Rank: 2, Score: 0.5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d results, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("result[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTopN_StableTies(t *testing.T) {
	got := TopN([]string{"x", "y"}, []float64{0.5, 0.5}, 5)

	if len(got) != 2 {
		t.Fatalf("got %d results, want 2 (never exceeds candidate count)", len(got))
	}
	if got[0].ID != "x" || got[1].ID != "y" {
		t.Errorf("ties must keep input order, got [%s %s]", got[0].ID, got[1].ID)
	}
	if got[0].Rank != 1 || got[1].Rank != 2 {
		t.Errorf("ranks = [%d %d], want [1 2]", got[0].Rank, got[1].Rank)
	}
}

func TestTopN_ContiguousRanks(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	scores := []float64{0.2, 0.8, 0.8, 0.1, 0.5}

	for _, n := range []int{1, 3, 5, 10} {
		got := TopN(ids, scores, n)

		wantLen := n
		if wantLen > len(ids) {
			wantLen = len(ids)
		}
		if len(got) != wantLen {
			t.Fatalf("n=%d: got %d results, want %d", n, len(got), wantLen)
		}
		for i, r := range got {
			if r.Rank != i+1 {
				t.Errorf("n=%d: rank at position %d is %d", n, i, r.Rank)
			}
			if i > 0 && got[i-1].Score < r.Score {
				t.Errorf("n=%d: scores not non-increasing at %d", n, i)
			}
		}
	}
}

func TestTopN_EmptyInputs(t *testing.T) {
	t.Run("n zero", func(t *testing.T) {
		if got := TopN([]string{"a"}, []float64{1}, 0); len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
	})
	t.Run("n negative", func(t *testing.T) {
		if got := TopN([]string{"a"}, []float64{1}, -3); len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
	})
	t.Run("no candidates", func(t *testing.T) {
		if got := TopN(nil, nil, 5); len(got) != 0 {
			t.Fatalf("expected empty, got %v", got)
		}
	})
}
