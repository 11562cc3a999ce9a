package mes

import (
	"testing"

	"go.uber.org/zap"

	"github.com/nunuhara/mesc/diag"
	"github.com/nunuhara/mesc/game"
)

func silentDiag() *diag.Handler {
	return diag.NewWith(zap.NewNop().Sugar())
}

func TestParseStatementsEnd(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	stmts, err := ParseStatements([]byte{0x00}, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	if len(stmts) != 1 || stmts[0].Op != game.OpEnd {
		t.Fatalf("got %+v, want one OpEnd statement", stmts)
	}
}

func TestParseStatementsSetVar16(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	// SETV[5] = 7;  (imm 7, expr-terminator FF, list-continuation 00)  END
	data := []byte{0x04, 0x05, 0x07, 0xFF, 0x00, 0x00}
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	s := stmts[0]
	if s.Op != game.OpSetVar16 || s.VarNo != 5 {
		t.Fatalf("got %+v, want SetVar16 VarNo=5", s)
	}
	if len(s.ValExprs) != 1 || s.ValExprs[0].Op != game.EImm || s.ValExprs[0].Arg8 != 7 {
		t.Fatalf("got ValExprs %+v, want single EImm(7)", s.ValExprs)
	}
}

func TestParseStatementsJzTagsJumpTarget(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	// JZ 1 -> address 7 (the END statement, right after this 7-byte JZ); END at offset 7
	data := []byte{0x09, 0x01, 0xFF, 0x07, 0x00, 0x00, 0x00, 0x00}
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	last := stmts[len(stmts)-1]
	if !last.IsJumpTarget {
		t.Fatalf("target statement at address 7 should be tagged IsJumpTarget")
	}
}

func TestParseStatementsUnknownJumpTargetFails(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{0x09, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}
	if _, err := ParseStatements(data, ctx, silentDiag()); err == nil {
		t.Fatal("expected error for dangling jump target")
	}
}

func TestParseDoukyuuseiRandNonPostfix(t *testing.T) {
	ctx := game.NewContext(game.Doukyuusei)
	// SETRBC[0] = rand(10); END  (ERand byte 0xE5, 16-bit arg, non-postfix)
	data := []byte{0x03, 0x00, 0x00, 0xE5, 0x0A, 0x00, 0xFF, 0x00, 0x00}
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	e := stmts[0].ValExprs[0]
	if e.Op != game.ERand || e.SubA != nil || e.Arg16 != 10 {
		t.Fatalf("got %+v, want non-postfix ERand with Arg16=10 and nil SubA", e)
	}
}
