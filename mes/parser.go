package mes

import (
	"encoding/binary"
	"fmt"

	"github.com/nunuhara/mesc/diag"
	"github.com/nunuhara/mesc/game"
)

// maxExprStack caps the explicit expression-evaluation stack to guard
// against pathological input running away with memory.
const maxExprStack = 4096

// parser walks a byte slice left to right, producing a flat, address-
// tagged statement list. The expression sub-parser keeps an explicit
// stack rather than recursing, since the wire format is postfix and the
// arity of each op varies -- an explicit stack keeps the underflow error
// at END a single, clear check instead of being implicit in call depth.
type parser struct {
	data  []byte
	pos   int
	ctx   game.Context
	diag  *diag.Handler
	stack []*Expression
}

// ParseStatements parses a complete .mes byte stream into a flat statement
// list and tags every jump target, per spec.md §4.1.
func ParseStatements(data []byte, ctx game.Context, h *diag.Handler) ([]*Statement, error) {
	p := &parser{data: data, ctx: ctx, diag: h}
	var stmts []*Statement
	for p.pos < len(p.data) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	if err := tagJumpTargets(stmts, h); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *parser) eof() bool { return p.pos >= len(p.data) }

func (p *parser) readByte() (byte, error) {
	if p.eof() {
		return 0, fmt.Errorf("unexpected end of input at offset %d", p.pos)
	}
	b := p.data[p.pos]
	p.pos++
	return b, nil
}

func (p *parser) peekByte() (byte, bool) {
	if p.eof() {
		return 0, false
	}
	return p.data[p.pos], true
}

func (p *parser) readU16() (uint16, error) {
	if p.pos+2 > len(p.data) {
		return 0, fmt.Errorf("unexpected end of input reading u16 at offset %d", p.pos)
	}
	v := binary.LittleEndian.Uint16(p.data[p.pos:])
	p.pos += 2
	return v, nil
}

func (p *parser) readU32() (uint32, error) {
	if p.pos+4 > len(p.data) {
		return 0, fmt.Errorf("unexpected end of input reading u32 at offset %d", p.pos)
	}
	v := binary.LittleEndian.Uint32(p.data[p.pos:])
	p.pos += 4
	return v, nil
}

// parseStatement records the address before reading the opcode byte, exactly
// as the original does, since that recorded address is what jump targets
// and dominance computation key off of.
func (p *parser) parseStatement() (*Statement, error) {
	addr := uint32(p.pos)
	b, err := p.readByte()
	if err != nil {
		return nil, err
	}

	op := p.ctx.ByteToStmtOp(b)
	if op == game.OpInvalid {
		// Tolerant recovery path: un-consume the opcode byte and
		// reinterpret it as the first byte of an (unprefixed) string.
		p.pos--
		peek, ok := p.peekByte()
		zenkaku := ok && isZenkakuLead(peek)
		p.diag.Warnf("unprefixed text at offset %d", addr)
		return p.parseTextStatement(addr, zenkaku, true, b)
	}

	stmt := &Statement{Op: op, Byte: b, Address: addr}
	if op == game.OpDefProc {
		if pb, ok := p.ctx.StmtOpToByte(op); ok && pb != b {
			stmt.Sub = true
		}
	}

	switch op {
	case game.OpEnd:
		// no payload
	case game.OpTxt:
		return p.parseTextStatement(addr, true, false, b)
	case game.OpStr:
		return p.parseTextStatement(addr, false, false, b)
	case game.OpSetFlagConst:
		v, err := p.readU16()
		if err != nil {
			return nil, err
		}
		stmt.VarNo = uint32(v)
		stmt.ValExprs, err = p.parseExpressionList()
		if err != nil {
			return nil, err
		}
	case game.OpSetVar16, game.OpSetVar32:
		v, err := p.readByte()
		if err != nil {
			return nil, err
		}
		stmt.VarNo = uint32(v)
		stmt.ValExprs, err = p.parseExpressionList()
		if err != nil {
			return nil, err
		}
	case game.OpSetFlagExpr:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.VarExpr = e
		stmt.ValExprs, err = p.parseExpressionList()
		if err != nil {
			return nil, err
		}
	case game.OpPtrSet8, game.OpPtrSet16, game.OpPtrSet32:
		off, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.OffExpr = off
		v, err := p.readByte()
		if err != nil {
			return nil, err
		}
		stmt.VarNo = uint32(v)
		stmt.ValExprs, err = p.parseExpressionList()
		if err != nil {
			return nil, err
		}
	case game.OpJz:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Expr = e
		a, err := p.readU32()
		if err != nil {
			return nil, err
		}
		stmt.Addr = a
	case game.OpJmp:
		a, err := p.readU32()
		if err != nil {
			return nil, err
		}
		stmt.Addr = a
	case game.OpSys:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Expr = e
		params, err := p.parseParameterList()
		if err != nil {
			return nil, err
		}
		stmt.Params = params
	case game.OpJmpMes, game.OpCallMes, game.OpCallProc, game.OpUtil:
		params, err := p.parseParameterList()
		if err != nil {
			return nil, err
		}
		stmt.Params = params
	case game.OpDefMenu:
		params, err := p.parseParameterList()
		if err != nil {
			return nil, err
		}
		stmt.Params = params
		a, err := p.readU32()
		if err != nil {
			return nil, err
		}
		stmt.SkipAddr = a
	case game.OpDefProc:
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		stmt.Expr = e
		a, err := p.readU32()
		if err != nil {
			return nil, err
		}
		stmt.SkipAddr = a
	case game.OpLine:
		v, err := p.readByte()
		if err != nil {
			return nil, err
		}
		stmt.Arg = v
	case game.OpMenuExec:
		if p.ctx.IndexHeader == game.IndexNonomuraTable {
			params, err := p.parseParameterList()
			if err != nil {
				return nil, err
			}
			stmt.Params = params
		}
	default:
		return nil, fmt.Errorf("unhandled statement op %v at offset %d", op, addr)
	}

	stmt.NextAddress = uint32(p.pos)
	return stmt, nil
}

func (p *parser) parseTextStatement(addr uint32, zenkaku, unprefixed bool, opByte byte) (*Statement, error) {
	text, terminated, err := p.parseStringBody(zenkaku)
	if err != nil {
		return nil, err
	}
	op := game.OpStr
	if zenkaku {
		op = game.OpTxt
	}
	stmt := &Statement{
		Op: op, Byte: opByte, Address: addr,
		Text: text, Terminated: terminated, Unprefixed: unprefixed,
	}
	stmt.NextAddress = uint32(p.pos)
	return stmt, nil
}

// parseStringBody decodes a run of characters terminated by 0x00; terminated
// is false only when the input ends before a 0x00. A byte that would decode
// as an opcode does not end the run: it stays part of the text, escaped
// where it is not a printable character.
func (p *parser) parseStringBody(zenkaku bool) (string, bool, error) {
	var out []byte
	for {
		b, ok := p.peekByte()
		if !ok {
			return string(out), false, nil
		}
		if b == 0x00 {
			p.pos++
			return string(out), true, nil
		}
		if zenkaku {
			if p.pos+1 >= len(p.data) {
				return string(out), false, nil
			}
			b2 := p.data[p.pos+1]
			if !isZenkaku(b, b2) {
				out = append(out, escapeZenkaku(b, b2)...)
				p.pos += 2
				continue
			}
			out = append(out, b, b2)
			p.pos += 2
			continue
		}
		if !isHankaku(b) {
			out = append(out, escapeHankaku(b)...)
			p.pos++
			continue
		}
		out = append(out, escapeHankakuChar(b)...)
		p.pos++
	}
}

// isHankaku reports whether b is in the printable single-byte Shift-JIS
// range (the original's is_hankaku range).
func isHankaku(b byte) bool {
	return b >= 0x20 && b < 0x80
}

// isZenkakuLead reports whether b could begin a two-byte Shift-JIS
// character, used only to classify the tolerant unprefixed-text recovery
// path.
func isZenkakuLead(b byte) bool {
	return (b >= 0x81 && b <= 0x9F) || (b >= 0xE0 && b <= 0xFC)
}

// isZenkaku reports whether the two-byte pair is a valid Shift-JIS
// character.
func isZenkaku(b1, b2 byte) bool {
	if !isZenkakuLead(b1) {
		return false
	}
	return (b2 >= 0x40 && b2 <= 0x7E) || (b2 >= 0x80 && b2 <= 0xFC)
}

func escapeZenkaku(b1, b2 byte) []byte {
	return []byte(fmt.Sprintf("\\X%02X%02X", b1, b2))
}

func escapeHankaku(b byte) []byte {
	return []byte(fmt.Sprintf("\\x%02X", b))
}

func escapeHankakuChar(b byte) []byte {
	switch b {
	case '\n':
		return []byte(`\n`)
	case '\t':
		return []byte(`\t`)
	case '\\':
		return []byte(`\\`)
	case '$':
		return []byte(`\$`)
	default:
		return []byte{b}
	}
}

// parseExpression parses one postfix expression tree ending in an END
// byte, using the explicit evaluation stack.
func (p *parser) parseExpression() (*Expression, error) {
	p.stack = p.stack[:0]
	for {
		b, err := p.readByte()
		if err != nil {
			return nil, err
		}
		if b == 0xFF {
			if len(p.stack) != 1 {
				return nil, fmt.Errorf("expression stack has %d values at END, expected 1", len(p.stack))
			}
			return p.stack[0], nil
		}
		if err := p.stepExpression(b); err != nil {
			return nil, err
		}
	}
}

func (p *parser) push(e *Expression) error {
	if len(p.stack) >= maxExprStack {
		return fmt.Errorf("expression stack overflow")
	}
	p.stack = append(p.stack, e)
	return nil
}

func (p *parser) pop() (*Expression, error) {
	if len(p.stack) == 0 {
		return nil, fmt.Errorf("expression stack underflow")
	}
	e := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return e, nil
}

func (p *parser) stepExpression(b byte) error {
	if b < 0x80 {
		return p.push(&Expression{Op: game.EImm, Byte: b, Arg8: b})
	}

	op, ok := p.ctx.ByteToExprOp(b)
	if !ok {
		return fmt.Errorf("unknown expression opcode byte 0x%02X", b)
	}

	switch op {
	case game.EVar16, game.EVar32:
		idx, err := p.readByte()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: op, Byte: b, Arg8: idx})
	case game.EArray16Get16, game.EArray16Get8, game.EArray32Get32, game.EArray32Get16, game.EArray32Get8:
		sub, err := p.pop()
		if err != nil {
			return err
		}
		idx, err := p.readByte()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: op, Byte: b, Arg8: idx, SubA: sub})
	case game.ERand:
		if !p.ctx.RandIsPostfix {
			v, err := p.readU16()
			if err != nil {
				return err
			}
			return p.push(&Expression{Op: game.ERand, Byte: b, Arg16: v})
		}
		sub, err := p.pop()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: game.ERand, Byte: b, SubA: sub})
	case game.EImm16:
		v, err := p.readU16()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: game.EImm16, Byte: b, Arg16: v})
	case game.EImm32:
		v, err := p.readU32()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: game.EImm32, Byte: b, Arg32: v})
	case game.EReg16:
		v, err := p.readU16()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: game.EReg16, Byte: b, Arg16: v})
	case game.EReg8:
		sub, err := p.pop()
		if err != nil {
			return err
		}
		return p.push(&Expression{Op: game.EReg8, Byte: b, SubA: sub})
	default:
		if op.IsBinary() {
			subA, err := p.pop()
			if err != nil {
				return err
			}
			subB, err := p.pop()
			if err != nil {
				return err
			}
			return p.push(&Expression{Op: op, Byte: b, SubA: subA, SubB: subB})
		}
		return fmt.Errorf("unhandled expression opcode %v", op)
	}
}

// parseExpressionList parses expressions separated by 0x01 and terminated
// by 0x00 (AI5WIN) or 0xFF (AIWIN).
func (p *parser) parseExpressionList() ([]*Expression, error) {
	term := byte(0x00)
	if p.ctx.Variant == game.AiWin {
		term = 0xFF
	}
	var list []*Expression
	for {
		b, err := p.readByte()
		if err != nil {
			return nil, err
		}
		if b == term {
			return list, nil
		}
		p.pos--
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if p.ctx.Variant != game.AiWin {
			// AI5WIN reads a trailing continuation byte (0x01 = more, 0x00 = done)
			cont, err := p.readByte()
			if err != nil {
				return nil, err
			}
			if cont == 0x00 {
				return list, nil
			}
		}
	}
}

// parseParameterList parses a {type, payload} list terminated by 0x00
// (AI5WIN) or 0xFF (AIWIN). String parameters warn past 22 characters and
// error past 62, matching the original engine's buffer limits.
func (p *parser) parseParameterList() ([]*Parameter, error) {
	term := byte(0x00)
	strTag := byte(0x01)
	exprTag := byte(0x02)
	if p.ctx.Variant == game.AiWin {
		term = 0xFF
		strTag = 0xF5
	}
	var params []*Parameter
	for {
		tag, err := p.readByte()
		if err != nil {
			return nil, err
		}
		if tag == term {
			return params, nil
		}
		switch {
		case tag == strTag:
			str, terminated, err := p.parseStringBody(false)
			_ = terminated
			if err != nil {
				return nil, err
			}
			if n := len(str); n > 62 {
				return nil, fmt.Errorf("string parameter overflow: %d characters", n)
			} else if n > 22 {
				p.diag.Warnf("string parameter truncation risk: %d characters", n)
			}
			params = append(params, &Parameter{Type: ParamString, Str: str})
		case tag == exprTag || (p.ctx.Variant == game.AiWin && tag != strTag):
			if p.ctx.Variant == game.AiWin {
				p.pos--
			}
			e, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			params = append(params, &Parameter{Type: ParamExpr, Expr: e})
		default:
			return nil, fmt.Errorf("invalid parameter type tag 0x%02X", tag)
		}
	}
}

// tagJumpTargets runs a second pass over the flat statement list, building
// an address -> statement table and setting IsJumpTarget on every
// statement any Jz/Jmp/DefMenu/DefProc addresses. A missing target is
// fatal: it would otherwise surface as a dangling CFG edge much later,
// with a far less useful error.
func tagJumpTargets(stmts []*Statement, h *diag.Handler) error {
	byAddr := make(map[uint32]*Statement, len(stmts))
	for _, s := range stmts {
		if _, dup := byAddr[s.Address]; dup {
			return h.Fatalf("duplicate statement address 0x%08X", s.Address)
		}
		byAddr[s.Address] = s
	}
	tag := func(addr uint32) error {
		target, ok := byAddr[addr]
		if !ok {
			return h.Fatalf("jump target 0x%08X does not match any statement", addr)
		}
		target.IsJumpTarget = true
		return nil
	}
	for _, s := range stmts {
		switch s.Op {
		case game.OpJz, game.OpJmp:
			if err := tag(s.Addr); err != nil {
				return err
			}
		case game.OpDefMenu, game.OpDefProc:
			if err := tag(s.SkipAddr); err != nil {
				return err
			}
		}
	}
	return nil
}
