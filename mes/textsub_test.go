package mes

import (
	"strings"
	"testing"

	"github.com/nunuhara/mesc/game"
)

func TestStrCols(t *testing.T) {
	cases := []struct {
		s    string
		want int
	}{
		{"abc", 3},
		{`\X8140`, 2},
		{`\x20`, 1},
		{`\n`, 1},
		{"あ", 2}, // a zenkaku hiragana rune
	}
	for _, c := range cases {
		if got := strCols(c.s); got != c.want {
			t.Errorf("strCols(%q) = %d, want %d", c.s, got, c.want)
		}
	}
}

func TestParseTextSubstitutions(t *testing.T) {
	input := "#columns = 20\n" +
		"#0 \"hello\"\n" +
		"translated\n" +
		"\n" +
		"## a comment before the next entry\n" +
		"#1 \"world\"\n" +
		"bye\n"
	subs, err := ParseTextSubstitutions(strings.NewReader(input), silentDiag())
	if err != nil {
		t.Fatalf("ParseTextSubstitutions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("got %d substitutions, want 2", len(subs))
	}
	if subs[0].No != 0 || subs[0].From != "hello" || len(subs[0].To) != 1 || subs[0].To[0].Text != "translated" {
		t.Errorf("got %+v", subs[0])
	}
	if subs[0].Columns != 20 {
		t.Errorf("got Columns %d, want 20", subs[0].Columns)
	}
	if subs[1].No != 1 || subs[1].From != "world" || subs[1].To[0].Text != "bye" {
		t.Errorf("got %+v", subs[1])
	}
}

func TestFindTextLocationsGroupsEmbeddedCall(t *testing.T) {
	stmts := []*Statement{
		{Op: game.OpStr, Text: "hi ", Terminated: true},
		{Op: game.OpCallProc, Params: []*Parameter{{Type: ParamExpr, Expr: &Expression{Op: game.EImm, Arg8: 3}}}},
		{Op: game.OpStr, Text: " there", Terminated: true},
		{Op: game.OpEnd},
	}
	locs := findTextLocations(stmts)
	if len(locs) != 1 || locs[0].start != 0 || locs[0].count != 3 {
		t.Fatalf("got %+v, want one location {0,3}", locs)
	}
}

func TestSubstituteTextReplacesAndReaddresses(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{0x02, 'h', 'i', 0x00, 0x00} // STR "hi"; END
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	subs := []*TextSubstitution{
		{No: 0, From: "hi", To: []TextLine{{Text: "bye", Columns: 3}}, Columns: 0},
	}
	out, err := SubstituteText(ctx, stmts, subs, silentDiag())
	if err != nil {
		t.Fatalf("SubstituteText: %v", err)
	}
	if len(out) != 2 || out[0].Op != game.OpStr || out[0].Text != "bye" {
		t.Fatalf("got %+v", out)
	}
}
