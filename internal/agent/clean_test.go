package agent

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClean_PlainTextUnchanged(t *testing.T) {
	got := Clean("Open the draft and write one paragraph.", 0)
	if got != "Open the draft and write one paragraph." {
		t.Fatalf("got %q", got)
	}
}

func TestClean_StripsThinkBlock(t *testing.T) {
	output := "<think>\nThe user is stuck, be gentle.\n</think>\nStart with the smallest piece."
	got := Clean(output, 0)
	if got != "Start with the smallest piece." {
		t.Fatalf("got %q", got)
	}
}

func TestClean_StripsFencesAndSpeaker(t *testing.T) {
	output := "```\nAssistant: You got 40 minutes in. **Nice** work.\n```"
	got := Clean(output, 0)
	if got != "You got 40 minutes in. Nice work." {
		t.Fatalf("got %q", got)
	}
}

func TestClean_UnwrapsQuotes(t *testing.T) {
	got := Clean(`  "Keep going, you're close."  `, 0)
	if got != "Keep going, you're close." {
		t.Fatalf("got %q", got)
	}
}

func TestClean_KeepsInnerQuotes(t *testing.T) {
	in := `"Done" is better than "perfect"`
	if got := Clean(in, 0); got != in {
		t.Fatalf("expected inner quotes kept, got %q", got)
	}
}

func TestClean_CollapsesWhitespace(t *testing.T) {
	output := "First   line\n\n\n\n\nSecond\t\tline"
	got := Clean(output, 0)
	if got != "First line\n\nSecond line" {
		t.Fatalf("got %q", got)
	}
}

func TestClean_TruncatesAtSentence(t *testing.T) {
	output := "You finished the outline. Next, write the intro and the first section of chapter two."
	got := Clean(output, 40)
	if got != "You finished the outline." {
		t.Fatalf("got %q", got)
	}
}

func TestClean_TruncatesAtWord(t *testing.T) {
	output := "one two three four five six seven eight nine ten"
	got := Clean(output, 20)
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis, got %q", got)
	}
	if utf8.RuneCountInString(got) > 20 {
		t.Fatalf("expected at most 20 runes, got %d: %q", utf8.RuneCountInString(got), got)
	}
	if strings.Contains(got, "fiv") && !strings.Contains(got, "five") {
		t.Fatalf("cut inside a word: %q", got)
	}
}

func TestClean_TruncateCountsRunes(t *testing.T) {
	output := strings.Repeat("é", 50)
	got := Clean(output, 10)
	if utf8.RuneCountInString(got) > 10 {
		t.Fatalf("expected at most 10 runes, got %d", utf8.RuneCountInString(got))
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncation split a rune")
	}
}

func TestClean_Empty(t *testing.T) {
	if got := Clean("  \n```\n```\n ", 100); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}
