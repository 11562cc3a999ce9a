// Package tests holds fixture-driven integration tests that exercise the
// parser, CFG builder, AST reconstructor and text-substitution pipeline
// together end to end, one test per scenario in spec.md's testable
// properties section, rather than unit-testing any single package in
// isolation (see mes/*_test.go and game/*_test.go for those).
package tests

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/nunuhara/mesc/diag"
	"github.com/nunuhara/mesc/game"
	"github.com/nunuhara/mesc/mes"
)

func silentDiag() *diag.Handler {
	return diag.NewWith(zap.NewNop().Sugar())
}

// S1: an empty file is just a single END statement; the CFG, AST and
// simplifier all collapse it to nothing, and reassembly reproduces the
// single byte.
func TestScenarioEmptyFile(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{0x00}

	stmts, err := mes.ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	if len(stmts) != 1 || stmts[0].Op != game.OpEnd {
		t.Fatalf("got %+v, want one OpEnd statement", stmts)
	}

	toplevel, err := mes.BuildCFG(ctx, stmts)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	out, err := mes.BuildAST(ctx, toplevel)
	if err != nil {
		t.Fatalf("BuildAST: %v", err)
	}
	if err := mes.SimplifyAST(out); err != nil {
		t.Fatalf("SimplifyAST: %v", err)
	}
	for _, n := range out {
		if len(n.Statements) != 0 {
			t.Errorf("expected an empty AST, found leftover statements in %+v", n)
		}
	}

	reassembled, err := mes.Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled = % X, want % X", reassembled, data)
	}
}

// S2: a two-branch conditional -- JZ to the else branch, a then branch
// ending in an unconditional JMP past it, the else branch, then the join
// point. The CFG has four basic blocks and the AST holds one Cond node
// with a non-empty Alternative.
//
//	JZ cond -> L_else   ; SETV[1] = 2 ; JMP L_end
//	L_else: SETV[1] = 3
//	L_end:  END
func TestScenarioTwoBranchConditional(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{
		0x09, 0x01, 0xFF, 0x11, 0x00, 0x00, 0x00, // JZ 1 -> 0x11 (L_else)
		0x04, 0x01, 0x02, 0xFF, 0x00, // SETV[1] = 2
		0x0A, 0x16, 0x00, 0x00, 0x00, // JMP -> 0x16 (L_end)
		0x04, 0x01, 0x03, 0xFF, 0x00, // L_else: SETV[1] = 3
		0x00, // L_end: END
	}

	stmts, err := mes.ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	// This tool's statement granularity yields 5 statements for this
	// program (JZ, SETV, JMP, SETV, END) rather than the finer split a
	// token-level tool might produce.
	if len(stmts) != 5 {
		t.Fatalf("got %d statements, want 5: %+v", len(stmts), stmts)
	}

	toplevel, err := mes.BuildCFG(ctx, stmts)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	if len(toplevel.Blocks) != 4 {
		t.Fatalf("got %d basic blocks, want 4", len(toplevel.Blocks))
	}

	out, err := mes.BuildAST(ctx, toplevel)
	if err != nil {
		t.Fatalf("BuildAST: %v", err)
	}
	var cond *mes.Node
	for _, n := range out {
		if n.Type == mes.NodeCond {
			cond = n
		}
	}
	if cond == nil {
		t.Fatalf("expected a NodeCond in %+v", out)
	}
	if len(cond.Alternative) == 0 {
		t.Fatalf("expected a non-empty Alternative (the else branch)")
	}
	if len(cond.Consequent) == 0 {
		t.Fatalf("expected a non-empty Consequent (the then branch)")
	}

	reassembled, err := mes.Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled = % X, want % X", reassembled, data)
	}
}

// S3: a while loop with a conditional break out of its body.
//
//	SETV[2] = 0
//	L_top:  JZ 1  -> L_exit      (loop test)
//	        JZ 1  -> L_cont      (if 1) goto L_break
//	        JMP -> L_exit              (the break)
//	L_cont: SETV[0] = 1
//	        JMP -> L_top               (loop back)
//	L_exit: END
//
// The leading SETV gives the loop header a second, non-back-edge
// predecessor (a real while loop's header is always reached both from
// whatever precedes it and from the loop's own back edge), which is what
// puts the header in its own dominance frontier and lets the AST builder
// recognize it as a natural loop rather than a plain conditional.
func TestScenarioWhileWithBreak(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{
		0x04, 0x02, 0x00, 0xFF, 0x00, // SETV[2] = 0
		0x09, 0x01, 0xFF, 0x22, 0x00, 0x00, 0x00, // L_top: JZ 1 -> 0x22 (L_exit)
		0x09, 0x01, 0xFF, 0x18, 0x00, 0x00, 0x00, // JZ 1 -> 0x18 (L_cont)
		0x0A, 0x22, 0x00, 0x00, 0x00, // JMP -> 0x22 (L_exit, the break)
		0x04, 0x00, 0x01, 0xFF, 0x00, // L_cont: SETV[0] = 1
		0x0A, 0x05, 0x00, 0x00, 0x00, // JMP -> 0x05 (L_top)
		0x00, // L_exit: END
	}

	stmts, err := mes.ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}

	toplevel, err := mes.BuildCFG(ctx, stmts)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	out, err := mes.BuildAST(ctx, toplevel)
	if err != nil {
		t.Fatalf("BuildAST: %v", err)
	}

	var loop *mes.Node
	for _, n := range out {
		if n.Type == mes.NodeLoop {
			loop = n
		}
	}
	if loop == nil {
		t.Fatalf("expected a NodeLoop in %+v", out)
	}

	var cond *mes.Node
	for _, n := range loop.Body {
		if n.Type == mes.NodeCond {
			cond = n
		}
	}
	if cond == nil {
		t.Fatalf("expected a NodeCond inside the loop body, got %+v", loop.Body)
	}

	if err := mes.SimplifyAST(out); err != nil {
		t.Fatalf("SimplifyAST: %v", err)
	}

	foundBreak := false
	for _, n := range cond.Consequent {
		if n.Type == mes.NodeBreak {
			foundBreak = true
		}
	}
	if !foundBreak {
		t.Errorf("expected the goto-to-L_exit to simplify to a Break, got Consequent %+v", cond.Consequent)
	}

	// No raw JMP statement should survive simplification anywhere: the
	// break, the loop-back edge and every converge jump all reduce to
	// structural control flow.
	var checkNoJmp func(nodes []*mes.Node)
	checkNoJmp = func(nodes []*mes.Node) {
		for _, n := range nodes {
			for _, s := range n.Statements {
				if s.Op == game.OpJmp {
					t.Errorf("unsimplified JMP left in AST: %+v", s)
				}
			}
			checkNoJmp(n.Consequent)
			checkNoJmp(n.Alternative)
			checkNoJmp(n.Body)
		}
	}
	checkNoJmp(out)

	reassembled, err := mes.Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled = % X, want % X", reassembled, data)
	}
}

// S4: a procedure definition followed by toplevel code that resumes after
// its skip_addr.
//
//	DefProc 1, skip to L_after
//	  SETV[0] = 5
//	  END
//	L_after: SETV[1] = 9
//	         END
func TestScenarioProcedureSkipAddr(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{
		0x0F, 0x01, 0xFF, 0x0D, 0x00, 0x00, 0x00, // DefProc 1, skip_addr=0x0D
		0x04, 0x00, 0x05, 0xFF, 0x00, // SETV[0] = 5
		0x00, // END (closes the procedure body)
		0x04, 0x01, 0x09, 0xFF, 0x00, // L_after: SETV[1] = 9
		0x00, // END
	}

	stmts, err := mes.ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}

	toplevel, err := mes.BuildCFG(ctx, stmts)
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	out, err := mes.BuildAST(ctx, toplevel)
	if err != nil {
		t.Fatalf("BuildAST: %v", err)
	}

	var proc *mes.Node
	var procIdx int
	for i, n := range out {
		if n.Type == mes.NodeProcedure {
			proc, procIdx = n, i
		}
	}
	if proc == nil {
		t.Fatalf("expected a NodeProcedure in %+v", out)
	}
	foundBody := false
	for _, n := range proc.Body {
		for _, s := range n.Statements {
			if s.Op == game.OpSetVar16 && s.VarNo == 0 {
				foundBody = true
			}
		}
	}
	if !foundBody {
		t.Errorf("expected SETV[0]=5 inside the procedure body, got %+v", proc.Body)
	}

	foundAfter := false
	for _, n := range out[procIdx+1:] {
		for _, s := range n.Statements {
			if s.Op == game.OpSetVar16 && s.VarNo == 1 {
				foundAfter = true
			}
		}
	}
	if !foundAfter {
		t.Errorf("expected the toplevel to continue with SETV[1]=9 after skip_addr, got %+v", out[procIdx+1:])
	}

	reassembled, err := mes.Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled = % X, want % X", reassembled, data)
	}
}

// S5: a substitution that lengthens one text run must push every later
// address forward, and every jump into the rewritten region must resolve
// to the statement's *new* address.
//
//	Str("ab")
//	Line(0)
//	Str("cd")            <- jump target
//	Line(0)
//	Str("ef")
//	JMP -> Str("cd")
//	END
//
// Substitution #0 replaces "ab" with the longer "abcd".
func TestScenarioTextSubstitutionLengthening(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	strByte, _ := ctx.StmtOpToByte(game.OpStr)
	lineByte, _ := ctx.StmtOpToByte(game.OpLine)
	jmpByte, _ := ctx.StmtOpToByte(game.OpJmp)
	endByte, _ := ctx.StmtOpToByte(game.OpEnd)

	t1 := &mes.Statement{Op: game.OpStr, Byte: strByte, Address: 0, Text: "ab", Terminated: true}
	sep1 := &mes.Statement{Op: game.OpLine, Byte: lineByte, Address: 4}
	t2 := &mes.Statement{Op: game.OpStr, Byte: strByte, Address: 6, Text: "cd", Terminated: true, IsJumpTarget: true}
	sep2 := &mes.Statement{Op: game.OpLine, Byte: lineByte, Address: 10}
	t3 := &mes.Statement{Op: game.OpStr, Byte: strByte, Address: 12, Text: "ef", Terminated: true}
	jmp := &mes.Statement{Op: game.OpJmp, Byte: jmpByte, Address: 16, Addr: 6}
	end := &mes.Statement{Op: game.OpEnd, Byte: endByte, Address: 21}
	stmts := []*mes.Statement{t1, sep1, t2, sep2, t3, jmp, end}

	subs := []*mes.TextSubstitution{
		{No: 0, From: "ab", To: []mes.TextLine{{Text: "abcd", Columns: 4}}, Columns: 4},
	}

	out, err := mes.SubstituteText(ctx, stmts, subs, silentDiag())
	if err != nil {
		t.Fatalf("SubstituteText: %v", err)
	}

	var newT2, newJmp *mes.Statement
	for _, s := range out {
		if s.Op == game.OpStr && s.Text == "cd" {
			newT2 = s
		}
		if s.Op == game.OpJmp {
			newJmp = s
		}
	}
	if newT2 == nil || newJmp == nil {
		t.Fatalf("expected both the re-addressed \"cd\" run and the JMP in %+v", out)
	}
	if newJmp.Addr != newT2.Address {
		t.Errorf("JMP.Addr = 0x%X, want the re-addressed \"cd\" statement's new address 0x%X", newJmp.Addr, newT2.Address)
	}

	reassembled, err := mes.Assemble(ctx, out)
	if err != nil {
		t.Fatalf("Assemble(out): %v", err)
	}
	reparsed, err := mes.ParseStatements(reassembled, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements(reassembled): %v", err)
	}
	var texts []string
	for _, s := range reparsed {
		if s.Op == game.OpStr || s.Op == game.OpTxt {
			texts = append(texts, s.Text)
		}
	}
	if len(texts) != 3 {
		t.Fatalf("got %d text statements after round trip, want 3: %v", len(texts), texts)
	}
	if texts[0] != "abcd" || texts[1] != "cd" || texts[2] != "ef" {
		t.Errorf("got texts %v, want [abcd cd ef]", texts)
	}
}

// S6: a byte that is neither a known statement opcode nor the lead byte of
// a two-byte Shift-JIS character recovers as an unprefixed Str statement,
// and reassembly omits the synthetic opcode byte, reproducing the input
// exactly (the recovered byte is itself the text's first character, so
// nothing is actually lost).
func TestScenarioUnprefixedText(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	data := []byte{0x30, 'h', 'i', 0x00, 0x00} // '0' is not a valid opcode byte or SJIS lead

	stmts, err := mes.ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements: %v", err)
	}
	if len(stmts) != 2 {
		t.Fatalf("got %d statements, want 2", len(stmts))
	}
	s := stmts[0]
	if s.Op != game.OpStr || !s.Unprefixed || s.Text != "0hi" {
		t.Fatalf("got %+v, want an unprefixed Str statement with text \"0hi\"", s)
	}

	reassembled, err := mes.Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !strings.Contains(string(reassembled), "hi") || !bytes.Equal(reassembled, data) {
		t.Errorf("reassembled = % X, want % X", reassembled, data)
	}
}
