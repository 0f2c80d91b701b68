package parser

import "testing"

const sampleNote = "大変（たいへん）Serious, Terrible\n" +
	"深刻（しんこく）Serious, Grave\n" +
	"\n" +
	"ほんき sounds silly/funny...but it means Serious haha.\n" +
	"\n" +
	"本気（ほんき）Serious\n" +
	"根気（こんき）Patience\n"

func TestParseGroups_BrDelimiter(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = "<br>"
	groups := ParseGroups("大変（たいへん）Serious<br>深刻（しんこく）Serious<br><br>本気（ほんき）Serious", opts)
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if len(groups[0]) != 2 || len(groups[1]) != 1 {
		t.Errorf("group sizes = %d, %d, want 2, 1", len(groups[0]), len(groups[1]))
	}
	if groups[1][0].LineIndex != 3 {
		t.Errorf("line index = %d, want 3", groups[1][0].LineIndex)
	}
}

func TestParseGroups_SeparatorsAndProse(t *testing.T) {
	groups := ParseGroups(sampleNote, DefaultOptions())
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0][1].Slug != "深刻" || groups[1][0].Slug != "本気" {
		t.Errorf("unexpected slugs: %q %q", groups[0][1].Slug, groups[1][0].Slug)
	}
}

func TestParseGroups_LeadingAndTrailingSeparators(t *testing.T) {
	groups := ParseGroups("\n\nremark\n大変（たいへん）Serious\n\n\n", DefaultOptions())
	if len(groups) != 1 || len(groups[0]) != 1 {
		t.Fatalf("groups = %+v, want one group of one", groups)
	}
	if groups[0][0].LineIndex != 3 {
		t.Errorf("line index = %d, want 3", groups[0][0].LineIndex)
	}
}

func TestParseGroups_TrimsLines(t *testing.T) {
	opts := DefaultOptions()
	opts.Delimiter = "<br>"
	groups := ParseGroups("\n大変（たいへん）Serious\n<br>\n深刻（しんこく）Grave\n", opts)
	if len(groups) != 1 || len(groups[0]) != 2 {
		t.Fatalf("groups = %+v", groups)
	}
	if groups[0][0].Meanings != "Serious" {
		t.Errorf("meanings = %q", groups[0][0].Meanings)
	}
}

func TestParseGroups_Empty(t *testing.T) {
	for _, note := range []string{"", "   ", "\n\n", "just prose"} {
		if groups := ParseGroups(note, DefaultOptions()); len(groups) != 0 {
			t.Errorf("%q: expected no groups, got %d", note, len(groups))
		}
	}
}

func TestParseGroups_UniqueLineIndexes(t *testing.T) {
	seen := map[int]bool{}
	for _, e := range Entries(ParseGroups(sampleNote, DefaultOptions())) {
		if seen[e.LineIndex] {
			t.Errorf("duplicate line index %d", e.LineIndex)
		}
		seen[e.LineIndex] = true
	}
	if len(seen) != 4 {
		t.Errorf("entries = %d, want 4", len(seen))
	}
}

func TestSplitLines_KeepsRaw(t *testing.T) {
	lines := SplitLines(" a <br>b", "<br>")
	if len(lines) != 2 {
		t.Fatalf("len = %d", len(lines))
	}
	if lines[0].Raw != " a " || lines[0].Text != "a" || lines[1].Index != 1 {
		t.Errorf("lines = %+v", lines)
	}
}
