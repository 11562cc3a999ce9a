package mes

import (
	"testing"

	"github.com/nunuhara/mesc/game"
)

func TestStatementSizeMatchesParsedLength(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	cases := [][]byte{
		{0x00},                               // END
		{0x04, 0x05, 0x07, 0xFF, 0x00, 0x00}, // SETV[5] = 7; END
		{0x09, 0x01, 0xFF, 0x07, 0x00, 0x00, 0x00, 0x00}, // JZ 1 L_...; END
	}
	for _, data := range cases {
		stmts, err := ParseStatements(data, ctx, silentDiag())
		if err != nil {
			t.Fatalf("ParseStatements(% X): %v", data, err)
		}
		if got := TotalSize(ctx, stmts); got != len(data) {
			t.Errorf("TotalSize(% X) = %d, want %d", data, got, len(data))
		}
		for _, s := range stmts {
			want := int(s.NextAddress - s.Address)
			if got := StatementSize(ctx, s); got != want {
				t.Errorf("StatementSize(%+v) = %d, want %d", s, got, want)
			}
		}
	}
}

func TestStringBodySizeEscapes(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"abc", 3},
		{`\X8140`, 2},
		{`\x20`, 1},
		{`\n\t\\`, 3},
		{`a\nb`, 3},
	}
	for _, c := range cases {
		if got := stringBodySize(c.text); got != c.want {
			t.Errorf("stringBodySize(%q) = %d, want %d", c.text, got, c.want)
		}
	}
}
