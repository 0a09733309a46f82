package session

import (
	"strings"
	"testing"
)

func TestSynthesizeTitle(t *testing.T) {
	t.Run("short statement kept verbatim", func(t *testing.T) {
		got := SynthesizeTitle("summarize the quarterly report")
		if got != "summarize the quarterly report" {
			t.Errorf("unexpected title: %q", got)
		}
	})

	t.Run("question keeps up to sixty chars on word boundary", func(t *testing.T) {
		q := "what is the difference between vector search and keyword search in practice"
		got := SynthesizeTitle(q)
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
		if len(got) > questionTitleLimit+3 {
			t.Errorf("title too long (%d): %q", len(got), got)
		}
		if strings.Contains(got, "  ") || strings.HasSuffix(strings.TrimSuffix(got, "..."), " ") {
			t.Errorf("bad word boundary handling: %q", got)
		}
	})

	t.Run("trailing question mark counts as question", func(t *testing.T) {
		got := SynthesizeTitle("summarize this document for me please?")
		if got != "summarize this document for me please?" {
			t.Errorf("unexpected title: %q", got)
		}
	})

	t.Run("long statement capped at eight words", func(t *testing.T) {
		got := SynthesizeTitle("a b c d e f g h i j k")
		if got != "a b c d e f g h..." {
			t.Errorf("unexpected title: %q", got)
		}
	})

	t.Run("long words capped near fifty chars", func(t *testing.T) {
		got := SynthesizeTitle("somewhat longwinded description of retrieval augmented generation pipelines overall")
		if len(got) > statementTitleLimit+3 {
			t.Errorf("title too long (%d): %q", len(got), got)
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})

	t.Run("whitespace collapsed", func(t *testing.T) {
		got := SynthesizeTitle("  hello \n  world  ")
		if got != "hello world" {
			t.Errorf("unexpected title: %q", got)
		}
	})

	t.Run("empty input keeps placeholder", func(t *testing.T) {
		if got := SynthesizeTitle("   "); got != DefaultTitle {
			t.Errorf("expected placeholder, got %q", got)
		}
	})
}
