package similarity

import "testing"

func TestJaccardIdenticalStrings(t *testing.T) {
	t.Parallel()

	if got := Jaccard("the quick brown fox", "the quick brown fox"); got != 1.0 {
		t.Fatalf("expected 1.0 for identical strings, got %v", got)
	}
}

func TestJaccardEmptyInputs(t *testing.T) {
	t.Parallel()

	if got := Jaccard("", "anything"); got != 0 {
		t.Fatalf("expected 0 for empty left input, got %v", got)
	}
	if got := Jaccard("anything", ""); got != 0 {
		t.Fatalf("expected 0 for empty right input, got %v", got)
	}
	if got := Jaccard("   ", "   "); got != 0 {
		t.Fatalf("expected 0 when tokenization yields empty sets, got %v", got)
	}
}

func TestJaccardSymmetryAndBounds(t *testing.T) {
	t.Parallel()

	pairs := [][2]string{
		{"deep learning for vision", "vision learning deep applications"},
		{"a b c", "c d e"},
		{"one", "two"},
		{"Case Insensitive TOKENS", "case insensitive tokens"},
	}
	for _, pair := range pairs {
		ab := Jaccard(pair[0], pair[1])
		ba := Jaccard(pair[1], pair[0])
		if ab != ba {
			t.Fatalf("Jaccard(%q, %q)=%v differs from reversed %v", pair[0], pair[1], ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Fatalf("Jaccard(%q, %q)=%v out of [0,1]", pair[0], pair[1], ab)
		}
	}
}

func TestJaccardCollapsesDuplicateTokens(t *testing.T) {
	t.Parallel()

	if got := Jaccard("go go go", "go"); got != 1.0 {
		t.Fatalf("duplicate tokens should collapse, got %v", got)
	}
}
