package textutil

import "testing"

func TestSimilarityScoreIdentical(t *testing.T) {
	score := SimilarityScore("hello world", "Hello,  world!")
	if score != 1 {
		t.Fatalf("score=%v want=1", score)
	}
}

func TestSimilarityScorePartial(t *testing.T) {
	score := SimilarityScore("hello world", "hello there")
	want := 1.0 / 3.0
	if score != want {
		t.Fatalf("score=%v want=%v", score, want)
	}
}

func TestSimilarityScoreKeepsBounds(t *testing.T) {
	if score := SimilarityScore("<=80 words", "80 words"); score == 1 {
		t.Fatalf("bound was dropped: score=%v", score)
	}
	if score := SimilarityScore("exactly 3 bullets", "3 bullets, exactly"); score != 1 {
		t.Fatalf("score=%v want=1", score)
	}
}

func TestSimilarityScoreEmpty(t *testing.T) {
	score := SimilarityScore(" ", "hello")
	if score != 0 {
		t.Fatalf("score=%v want=0", score)
	}
}

func TestNormalizePhrase(t *testing.T) {
	if got := NormalizePhrase("  No   Marketing\tFluff "); got != "no marketing fluff" {
		t.Fatalf("got %q", got)
	}
	if got := NormalizeWhitespace(""); got != "" {
		t.Fatalf("got %q", got)
	}
}
