package mes

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nunuhara/mesc/game"
)

// buildIfNoElse returns the flat statement list for:
//
//	JZ cond -> L_end   (falls through to the SETV, or skips it)
//	SETV[5] = 7
//	L_end: END
func buildIfNoElse() []*Statement {
	jz := &Statement{Op: game.OpJz, Address: 0, NextAddress: 7, Addr: 12, Expr: &Expression{Op: game.EImm, Arg8: 1}}
	setv := &Statement{Op: game.OpSetVar16, Address: 7, NextAddress: 12, VarNo: 5, ValExprs: []*Expression{{Op: game.EImm, Arg8: 7}}}
	end := &Statement{Op: game.OpEnd, Address: 12, NextAddress: 13, IsJumpTarget: true}
	return []*Statement{jz, setv, end}
}

func TestBuildCFGSplitsBasicBlocksOnJumpTargets(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	toplevel, err := BuildCFG(ctx, buildIfNoElse())
	if err != nil {
		t.Fatalf("BuildCFG: %v", err)
	}
	if len(toplevel.Blocks) != 3 {
		t.Fatalf("got %d blocks, want 3", len(toplevel.Blocks))
	}
	b1, b2, b3 := toplevel.Blocks[0], toplevel.Blocks[1], toplevel.Blocks[2]
	if b1.End == nil || b1.End.Op != game.OpJz {
		t.Fatalf("block 0 should end in JZ, got %+v", b1.End)
	}
	if len(b2.Statements) != 1 || b2.Statements[0].Op != game.OpSetVar16 {
		t.Fatalf("block 1 should hold the SETV statement, got %+v", b2.Statements)
	}
	if b3.End == nil || b3.End.Op != game.OpEnd {
		t.Fatalf("block 2 should end in END, got %+v", b3.End)
	}
	if b1.Fallthrough != b2 || b1.JumpTarget != b3 {
		t.Fatalf("JZ block wiring: fallthrough=%v jumpTarget=%v, want b2/b3", b1.Fallthrough, b1.JumpTarget)
	}
	if b2.Fallthrough != b3 {
		t.Fatalf("SETV block should fall through to the END block")
	}
}

func TestBuildCFGDominance(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	toplevel, err := BuildCFG(ctx, buildIfNoElse())
	require.NoError(t, err)
	b1, b2, b3 := toplevel.Blocks[0], toplevel.Blocks[1], toplevel.Blocks[2]

	require.Len(t, b1.Dom, 3, "entry block should dominate all 3 blocks, including itself")
	domSet := map[*Block]bool{}
	for _, d := range b1.Dom {
		domSet[d] = true
	}
	require.True(t, domSet[b1] && domSet[b2] && domSet[b3], "entry block's Dom should contain b1, b2 and b3")

	require.Equal(t, []*Block{b3}, b2.DomFront, "the join point after an if with no else")
}

func TestBuildCFGRejectsMissingJumpTarget(t *testing.T) {
	ctx := game.NewContext(game.Yukinojou)
	jz := &Statement{Op: game.OpJz, Address: 0, NextAddress: 7, Addr: 999, Expr: &Expression{Op: game.EImm, Arg8: 1}}
	end := &Statement{Op: game.OpEnd, Address: 7, NextAddress: 8}
	_, err := BuildCFG(ctx, []*Statement{jz, end})
	require.Error(t, err, "expected an error for a jump target with no matching block")
}
