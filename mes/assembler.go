package mes

import (
	"encoding/binary"
	"fmt"

	"github.com/nunuhara/mesc/game"
)

// Assemble packs a statement list back to its on-disk byte representation.
// Jump-target resolution is not the assembler's job: every Jz/Jmp/
// DefMenu.SkipAddr/DefProc.SkipAddr must already hold the correct address
// by the time Assemble runs (see the text-substitution pipeline for how
// addresses are kept correct across content changes).
func Assemble(ctx game.Context, stmts []*Statement) ([]byte, error) {
	var buf []byte
	for _, s := range stmts {
		var err error
		buf, err = packStatement(ctx, buf, s)
		if err != nil {
			return nil, err
		}
	}
	return applyEpilogue(ctx, buf, stmts), nil
}

// statementByte returns the exact on-disk opcode byte for s, preferring the
// byte it was originally parsed with (guaranteeing round-trip fidelity even
// where the opcode table collapses more than one on-disk byte to the same
// virtual op) and falling back to the table for synthesized statements.
func statementByte(ctx game.Context, s *Statement) (byte, error) {
	if s.Byte != 0 || s.Op == game.OpEnd {
		return s.Byte, nil
	}
	b, ok := ctx.StmtOpToByte(s.Op)
	if !ok {
		return 0, fmt.Errorf("no on-disk byte for statement op %v", s.Op)
	}
	return b, nil
}

func packStatement(ctx game.Context, buf []byte, s *Statement) ([]byte, error) {
	op, err := statementByte(ctx, s)
	if err != nil {
		return nil, err
	}

	switch s.Op {
	case game.OpEnd:
		return append(buf, op), nil
	case game.OpTxt, game.OpStr:
		if !s.Unprefixed {
			buf = append(buf, op)
		}
		return packString(buf, s.Text, s.Terminated), nil
	case game.OpSetFlagConst:
		buf = append(buf, op)
		buf = appendU16(buf, uint16(s.VarNo))
		return packExpressionList(ctx, buf, s.ValExprs)
	case game.OpSetVar16, game.OpSetVar32:
		buf = append(buf, op, byte(s.VarNo))
		return packExpressionList(ctx, buf, s.ValExprs)
	case game.OpSetFlagExpr:
		buf = append(buf, op)
		buf, err = packExpression(ctx, buf, s.VarExpr)
		if err != nil {
			return nil, err
		}
		return packExpressionList(ctx, buf, s.ValExprs)
	case game.OpPtrSet8, game.OpPtrSet16, game.OpPtrSet32:
		buf = append(buf, op)
		buf, err = packExpression(ctx, buf, s.OffExpr)
		if err != nil {
			return nil, err
		}
		buf = append(buf, byte(s.VarNo))
		return packExpressionList(ctx, buf, s.ValExprs)
	case game.OpJz:
		buf = append(buf, op)
		buf, err = packExpression(ctx, buf, s.Expr)
		if err != nil {
			return nil, err
		}
		return appendU32(buf, s.Addr), nil
	case game.OpJmp:
		buf = append(buf, op)
		return appendU32(buf, s.Addr), nil
	case game.OpSys:
		buf = append(buf, op)
		buf, err = packExpression(ctx, buf, s.Expr)
		if err != nil {
			return nil, err
		}
		return packParameterList(ctx, buf, s.Params)
	case game.OpJmpMes, game.OpCallMes, game.OpCallProc, game.OpUtil:
		buf = append(buf, op)
		return packParameterList(ctx, buf, s.Params)
	case game.OpDefMenu:
		buf = append(buf, op)
		buf, err = packParameterList(ctx, buf, s.Params)
		if err != nil {
			return nil, err
		}
		return appendU32(buf, s.SkipAddr), nil
	case game.OpDefProc:
		buf = append(buf, op)
		buf, err = packExpression(ctx, buf, s.Expr)
		if err != nil {
			return nil, err
		}
		return appendU32(buf, s.SkipAddr), nil
	case game.OpLine:
		return append(buf, op, s.Arg), nil
	case game.OpMenuExec:
		buf = append(buf, op)
		if ctx.IndexHeader == game.IndexNonomuraTable {
			return packParameterList(ctx, buf, s.Params)
		}
		return buf, nil
	default:
		return nil, fmt.Errorf("unhandled statement op %v", s.Op)
	}
}

// packExpression walks the tree post-order (sub_b then sub_a then self),
// producing the postfix byte stream the parser consumes, then appends the
// terminating END byte.
func packExpression(ctx game.Context, buf []byte, e *Expression) ([]byte, error) {
	buf, err := packInnerExpression(ctx, buf, e)
	if err != nil {
		return nil, err
	}
	return append(buf, 0xFF), nil
}

func packInnerExpression(ctx game.Context, buf []byte, e *Expression) ([]byte, error) {
	var err error
	// Synthesized expressions (e.g. from ParseAsmText) carry no byte; fall
	// back to the game's table, as statementByte does for statements.
	op := e.Byte
	if op == 0 && e.Op != game.EImm {
		op, _ = ctx.ExprOpToByte(e.Op)
	}
	switch e.Op {
	case game.EImm:
		return append(buf, e.Arg8), nil
	case game.EVar16, game.EVar32:
		return append(buf, op, e.Arg8), nil
	case game.EArray16Get16, game.EArray16Get8, game.EArray32Get32, game.EArray32Get16, game.EArray32Get8:
		buf, err = packInnerExpression(ctx, buf, e.SubA)
		if err != nil {
			return nil, err
		}
		return append(buf, op, e.Arg8), nil
	case game.ERand:
		if !ctx.RandIsPostfix {
			buf = append(buf, op)
			return appendU16(buf, e.Arg16), nil
		}
		buf, err = packInnerExpression(ctx, buf, e.SubA)
		if err != nil {
			return nil, err
		}
		return append(buf, op), nil
	case game.EImm16, game.EReg16:
		buf = append(buf, op)
		return appendU16(buf, e.Arg16), nil
	case game.EImm32:
		buf = append(buf, op)
		return appendU32(buf, e.Arg32), nil
	case game.EReg8:
		buf, err = packInnerExpression(ctx, buf, e.SubA)
		if err != nil {
			return nil, err
		}
		return append(buf, op), nil
	default:
		if e.Op.IsBinary() {
			buf, err = packInnerExpression(ctx, buf, e.SubB)
			if err != nil {
				return nil, err
			}
			buf, err = packInnerExpression(ctx, buf, e.SubA)
			if err != nil {
				return nil, err
			}
			return append(buf, op), nil
		}
		return nil, fmt.Errorf("unhandled expression op %v", e.Op)
	}
}

func packExpressionList(ctx game.Context, buf []byte, list []*Expression) ([]byte, error) {
	term := byte(0x00)
	if ctx.Variant == game.AiWin {
		term = 0xFF
	}
	if len(list) == 0 {
		return append(buf, term), nil
	}
	var err error
	for i, e := range list {
		buf, err = packExpression(ctx, buf, e)
		if err != nil {
			return nil, err
		}
		if ctx.Variant != game.AiWin {
			if i < len(list)-1 {
				buf = append(buf, 0x01)
			}
		}
	}
	return append(buf, term), nil
}

func packParameterList(ctx game.Context, buf []byte, params []*Parameter) ([]byte, error) {
	term := byte(0x00)
	strTag := byte(0x01)
	var err error
	if ctx.Variant == game.AiWin {
		term = 0xFF
		strTag = 0xF5
	}
	for _, p := range params {
		if p.Type == ParamString {
			buf = append(buf, strTag)
			buf = packString(buf, p.Str, true)
		} else {
			if ctx.Variant != game.AiWin {
				buf = append(buf, 0x02)
			}
			buf, err = packExpression(ctx, buf, p.Expr)
			if err != nil {
				return nil, err
			}
		}
	}
	return append(buf, term), nil
}

// packString inverts the parser's escape decoding exactly: \XHHHH -> two
// raw bytes, \xHH -> one byte, \n/\t/\\/\$ -> their literal byte, anything
// else is copied through as-is.
func packString(buf []byte, text string, terminated bool) []byte {
	r := []byte(text)
	for i := 0; i < len(r); {
		if r[i] == '\\' && i+1 < len(r) {
			switch r[i+1] {
			case 'X':
				if i+5 < len(r) {
					var b1, b2 byte
					fmt.Sscanf(string(r[i+2:i+4]), "%02X", &b1)
					fmt.Sscanf(string(r[i+4:i+6]), "%02X", &b2)
					buf = append(buf, b1, b2)
					i += 6
					continue
				}
			case 'x':
				if i+3 < len(r) {
					var b byte
					fmt.Sscanf(string(r[i+2:i+4]), "%02X", &b)
					buf = append(buf, b)
					i += 4
					continue
				}
			case 'n':
				buf = append(buf, '\n')
				i += 2
				continue
			case 't':
				buf = append(buf, '\t')
				i += 2
				continue
			case '\\':
				buf = append(buf, '\\')
				i += 2
				continue
			case '$':
				buf = append(buf, '$')
				i += 2
				continue
			}
		}
		buf = append(buf, r[i])
		i++
	}
	if terminated {
		buf = append(buf, 0x00)
	}
	return buf
}

func appendU16(buf []byte, v uint16) []byte {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	return append(buf, b[:]...)
}

func appendU32(buf []byte, v uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return append(buf, b[:]...)
}

// applyEpilogue implements the Nonomura address-table and Kawarazakike
// zero-header variant quirks. Nonomura's format is tested empirically
// only in the original; this mirrors it as observed without generalizing.
func applyEpilogue(ctx game.Context, buf []byte, stmts []*Statement) []byte {
	switch ctx.IndexHeader {
	case game.IndexNonomuraTable:
		var table []byte
		count := uint32(0)
		for _, s := range stmts {
			if s.Op == game.OpMenuExec {
				table = appendU32(table, s.Address)
				count++
			}
		}
		out := appendU32(nil, count)
		out = append(out, table...)
		return append(out, buf...)
	case game.IndexKawarazakikeHeader:
		out := appendU32(nil, 0)
		return append(out, buf...)
	default:
		return buf
	}
}
