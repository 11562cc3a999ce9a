package mes

import (
	"strings"
	"testing"

	"github.com/nunuhara/mesc/game"
)

func TestParseAsmTextRoundTripsFlatDump(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{0x09, 0x01, 0xFF, 0x07, 0x00, 0x00, 0x00, 0x00} // JZ 1 L_...; END
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}

	var out strings.Builder
	for _, s := range stmts {
		PrintAsmStatement(s, &out, 0)
	}

	reparsed, err := ParseAsmText(ctx, strings.NewReader(out.String()))
	if err != nil {
		t.Fatalf("ParseAsmText(%q): %v", out.String(), err)
	}
	if len(reparsed) != len(stmts) {
		t.Fatalf("got %d statements, want %d", len(reparsed), len(stmts))
	}
	if reparsed[0].Op != game.OpJz || reparsed[0].Addr != stmts[1].Address {
		t.Errorf("JZ target: got addr 0x%X, want 0x%X", reparsed[0].Addr, stmts[1].Address)
	}
	if reparsed[1].Op != game.OpEnd {
		t.Errorf("got %+v, want OpEnd", reparsed[1])
	}

	reassembled, err := Assemble(ctx, reparsed)
	if err != nil {
		t.Fatalf("Assemble(reparsed): %v", err)
	}
	want, err := Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble(stmts): %v", err)
	}
	if string(reassembled) != string(want) {
		t.Errorf("round trip mismatch:\n got: % X\nwant: % X", reassembled, want)
	}
}

func TestParseAsmTextSetVar(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	stmts, err := ParseAsmText(ctx, strings.NewReader("SETV[5] = 7;\nEND;\n"))
	if err != nil {
		t.Fatalf("ParseAsmText: %v", err)
	}
	if len(stmts) != 2 || stmts[0].Op != game.OpSetVar16 || stmts[0].VarNo != 5 {
		t.Fatalf("got %+v", stmts)
	}
	if len(stmts[0].ValExprs) != 1 || stmts[0].ValExprs[0].Arg8 != 7 {
		t.Fatalf("got ValExprs %+v", stmts[0].ValExprs)
	}
}

func TestLexTokens(t *testing.T) {
	toks := lexTokens(`SYS[0] ("a",1);`)
	want := []string{"SYS", "[", "0", "]", "(", `"a"`, ",", "1", ")", ";"}
	if len(toks) != len(want) {
		t.Fatalf("got %v, want %v", toks, want)
	}
	for i := range want {
		if toks[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, toks[i], want[i])
		}
	}
}
