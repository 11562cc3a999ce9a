package mes

import "github.com/nunuhara/mesc/game"

// ExpressionSize returns the exact packed byte length of a top-level
// expression, including its terminating END byte. It must mirror
// Assembler's byte output exactly -- the text-substitution pass depends on
// this function to lay out addresses before any bytes are actually
// written.
func ExpressionSize(ctx game.Context, e *Expression) int {
	return innerExpressionSize(ctx, e) + 1 // + END byte
}

func innerExpressionSize(ctx game.Context, e *Expression) int {
	switch e.Op {
	case game.EImm:
		return 1
	case game.EVar16, game.EVar32:
		return 2
	case game.EArray16Get16, game.EArray16Get8, game.EArray32Get32, game.EArray32Get16, game.EArray32Get8:
		return 2 + innerExpressionSize(ctx, e.SubA)
	case game.ERand:
		if !ctx.RandIsPostfix {
			return 3 // op byte + inline u16
		}
		return 1 + innerExpressionSize(ctx, e.SubA)
	case game.EImm16, game.EReg16:
		return 3
	case game.EImm32:
		return 5
	case game.EReg8:
		return 1 + innerExpressionSize(ctx, e.SubA)
	default:
		if e.Op.IsBinary() {
			return 1 + innerExpressionSize(ctx, e.SubA) + innerExpressionSize(ctx, e.SubB)
		}
		return 1
	}
}

// ExpressionListSize sums expression_size+1 per expression (the trailing
// separator/terminator byte), matching expression_list_size. AIWIN lists
// have no separators, only the single closing 0xFF.
func ExpressionListSize(ctx game.Context, list []*Expression) int {
	n := 0
	for _, e := range list {
		n += ExpressionSize(ctx, e) + 1
	}
	if ctx.Variant == game.AiWin {
		return n - len(list) + 1
	}
	if len(list) == 0 {
		n++ // lone terminator byte for an empty AI5WIN list
	}
	return n
}

// stringBodySize counts escape-aware bytes: \X (6 source chars -> 2 bytes),
// \x (4 source chars -> 1 byte), other backslash escapes (2 source chars ->
// 1 byte), literal characters at their natural UTF-8/SJIS width.
func stringBodySize(text string) int {
	n := 0
	r := []byte(text)
	for i := 0; i < len(r); {
		if r[i] == '\\' && i+1 < len(r) {
			switch r[i+1] {
			case 'X':
				n += 2
				i += 6
				continue
			case 'x':
				n++
				i += 4
				continue
			case 'n', 't', '$', '\\':
				n++
				i += 2
				continue
			}
		}
		n++
		i++
	}
	return n
}

// ParameterListSize accounts for the type byte plus each payload plus the
// terminator. AIWIN expression parameters carry no type byte.
func ParameterListSize(ctx game.Context, params []*Parameter) int {
	n := 1 // terminator
	for _, p := range params {
		if p.Type == ParamString || ctx.Variant != game.AiWin {
			n++ // type tag
		}
		if p.Type == ParamString {
			n += stringBodySize(p.Str) + 1 // + NUL
		} else {
			n += ExpressionSize(ctx, p.Expr)
		}
	}
	return n
}

// StatementSize mirrors Assembler's field order exactly, including the
// Txt/Str "+1 if terminated, -1 if unprefixed" adjustment to the base
// op-byte-included length.
func StatementSize(ctx game.Context, s *Statement) int {
	switch s.Op {
	case game.OpEnd:
		return 1
	case game.OpTxt, game.OpStr:
		n := 1 + stringBodySize(s.Text)
		if s.Terminated {
			n++
		}
		if s.Unprefixed {
			n--
		}
		return n
	case game.OpSetFlagConst:
		return 1 + 2 + ExpressionListSize(ctx, s.ValExprs)
	case game.OpSetVar16, game.OpSetVar32:
		return 1 + 1 + ExpressionListSize(ctx, s.ValExprs)
	case game.OpSetFlagExpr:
		return 1 + ExpressionSize(ctx, s.VarExpr) + ExpressionListSize(ctx, s.ValExprs)
	case game.OpPtrSet8, game.OpPtrSet16, game.OpPtrSet32:
		return 1 + ExpressionSize(ctx, s.OffExpr) + 1 + ExpressionListSize(ctx, s.ValExprs)
	case game.OpJz:
		return 1 + ExpressionSize(ctx, s.Expr) + 4
	case game.OpJmp:
		return 1 + 4
	case game.OpSys:
		return 1 + ExpressionSize(ctx, s.Expr) + ParameterListSize(ctx, s.Params)
	case game.OpJmpMes, game.OpCallMes, game.OpCallProc, game.OpUtil:
		return 1 + ParameterListSize(ctx, s.Params)
	case game.OpDefMenu:
		return 1 + ParameterListSize(ctx, s.Params) + 4
	case game.OpDefProc:
		return 1 + ExpressionSize(ctx, s.Expr) + 4
	case game.OpLine:
		return 1 + 1
	case game.OpMenuExec:
		if ctx.IndexHeader == game.IndexNonomuraTable {
			return 1 + ParameterListSize(ctx, s.Params)
		}
		return 1
	default:
		return 1
	}
}

// TotalSize sums StatementSize over a statement list.
func TotalSize(ctx game.Context, stmts []*Statement) int {
	n := 0
	for _, s := range stmts {
		n += StatementSize(ctx, s)
	}
	return n
}
