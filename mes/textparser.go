package mes

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nunuhara/mesc/game"
)

// ParseAsmText re-parses the flat, one-statement-per-line text
// PrintAsmStatement produces back into a statement list. There is no
// direct original analog for this: the original tool's own text format is
// strictly one-directional (decompile only). This re-parser exists so a
// translator or tool author can hand-edit the flat dump and reassemble it,
// grounded in the original's own output grammar (print.c) read backwards
// and in the teacher's line-oriented parseLines/splitOperands style
// (assembler/assembler.go).
//
// Jump targets are resolved by label identity (the "L_xxxxxxxx" token),
// not by the printed hex value, since edited source can change every
// statement's length and address -- matching the teacher's own two-phase
// size-then-resolve approach.
//
// Known limitation: printPtrSet's "System.<name>" and "System.var16[...]"
// forms do not encode word-vs-byte width, so re-parsing such a line
// defaults to the 16-bit (PtrSet16) form; this mirrors an ambiguity
// already present in the original's own print format, not one introduced
// here. Doukyuusei's non-postfix rand() is not round-trippable through
// this text form (see ERand handling below). Other printed forms are also
// shared by more than one encoding and re-parse to one of them: SETV
// (SetVar16), CALL (CallMes), SUBD (keeps Sub but gets the PROC byte),
// small constants (8-bit immediates) and a literal var4[n] index. Named
// System.<name>(...) syscall lines are not recognized.
func ParseAsmText(ctx game.Context, r io.Reader) ([]*Statement, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, strings.TrimSpace(sc.Text()))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading asm text: %w", err)
	}

	var stmts []*Statement
	var fixups []fixupRef
	labelOf := make(map[*Statement]string)
	pendingLabel := ""

	for i, line := range lines {
		if line == "" {
			continue
		}
		if label, ok := asmLabelLine(line); ok {
			pendingLabel = label
			continue
		}
		stmt, fx, err := parseStatementLine(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		if pendingLabel != "" {
			stmt.IsJumpTarget = true
			labelOf[stmt] = pendingLabel
			pendingLabel = ""
		}
		fixups = append(fixups, fx...)
		stmts = append(stmts, stmt)
	}

	addr := uint32(0)
	labelAddr := make(map[string]uint32, len(labelOf))
	for _, s := range stmts {
		s.Address = addr
		if l, ok := labelOf[s]; ok {
			labelAddr[l] = addr
		}
		addr += uint32(StatementSize(ctx, s))
	}
	for _, s := range stmts {
		s.NextAddress = s.Address + uint32(StatementSize(ctx, s))
	}
	for _, fx := range fixups {
		target, ok := labelAddr[fx.label]
		if !ok {
			return nil, fmt.Errorf("undefined label %s", fx.label)
		}
		switch fx.field {
		case "addr":
			fx.stmt.Addr = target
		case "skip":
			fx.stmt.SkipAddr = target
		}
	}
	return stmts, nil
}

func asmLabelLine(line string) (string, bool) {
	if !strings.HasPrefix(line, "L_") || !strings.HasSuffix(line, ":") {
		return "", false
	}
	label := line[:len(line)-1]
	hex := label[2:]
	if len(hex) != 8 {
		return "", false
	}
	for _, c := range hex {
		if !isHexDigit(byte(c)) {
			return "", false
		}
	}
	return label, true
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// fixupRef records a not-yet-resolved jump target: field is "addr" for
// Jz/Jmp or "skip" for DefMenu/DefProc.
type fixupRef struct {
	stmt  *Statement
	label string
	field string
}

// lexTokens splits one statement line into identifier/number/string/
// punctuation tokens; multi-character operators are matched greedily.
func lexTokens(s string) []string {
	var toks []string
	n := len(s)
	for i := 0; i < n; {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '"':
			j := i + 1
			for j < n && s[j] != '"' {
				j++
			}
			if j < n {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		case isIdentStart(c) || (c >= '0' && c <= '9'):
			j := i
			for j < n && isIdentPart(s[j]) {
				j++
			}
			toks = append(toks, s[i:j])
			i = j
		default:
			if i+1 < n {
				switch s[i : i+2] {
				case "&&", "||", "==", "!=", "<=", ">=", "->":
					toks = append(toks, s[i:i+2])
					i += 2
					continue
				}
			}
			toks = append(toks, string(c))
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func unquote(tok string) (string, error) {
	if len(tok) < 2 || tok[0] != '"' || tok[len(tok)-1] != '"' {
		return "", fmt.Errorf("expected quoted string, got %q", tok)
	}
	return tok[1 : len(tok)-1], nil
}

func parseIntToken(tok string) (uint64, error) {
	return strconv.ParseUint(tok, 0, 64)
}

// tokStream is a cursor over one line's tokens, shared by the expression
// parser and the statement dispatcher.
type tokStream struct {
	toks []string
	pos  int
}

func (p *tokStream) peek() (string, bool) {
	if p.pos >= len(p.toks) {
		return "", false
	}
	return p.toks[p.pos], true
}

func (p *tokStream) peekAt(off int) (string, bool) {
	i := p.pos + off
	if i >= len(p.toks) {
		return "", false
	}
	return p.toks[i], true
}

func (p *tokStream) next() (string, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *tokStream) expect(tok string) error {
	got, ok := p.next()
	if !ok || got != tok {
		return fmt.Errorf("expected %q, got %q", tok, got)
	}
	return nil
}

var binPrecedence = map[string]int{
	"||": 1, "&&": 2,
	"|": 3, "^": 3, "&": 3,
	"<": 4, ">": 4, "<=": 4, ">=": 4, "==": 4, "!=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

var binOpOf = map[string]game.ExprOp{
	"||": game.EOr, "&&": game.EAnd,
	"|": game.EBitIor, "^": game.EBitXor, "&": game.EBitAnd,
	"<": game.ELt, ">": game.EGt, "<=": game.ELte, ">=": game.EGte, "==": game.EEq, "!=": game.ENeq,
	"+": game.EPlus, "-": game.EMinus,
	"*": game.EMul, "/": game.EDiv, "%": game.EMod,
}

// parseExpr parses one infix expression using precedence climbing; the
// operand order (SubA/SubB) is built to match what PrintExpression would
// emit, i.e. SubB holds the left-printed operand and SubA the right one,
// mirroring the postfix evaluation order the real parser builds.
func parseExpr(p *tokStream) (*Expression, error) {
	return parseBinary(p, 0)
}

func parseBinary(p *tokStream, minPrec int) (*Expression, error) {
	lhs, err := parsePrimary(p)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.peek()
		if !ok {
			break
		}
		prec, isOp := binPrecedence[tok]
		if !isOp || prec < minPrec {
			break
		}
		p.next()
		rhs, err := parseBinary(p, prec+1)
		if err != nil {
			return nil, err
		}
		lhs = &Expression{Op: binOpOf[tok], SubA: rhs, SubB: lhs}
	}
	return lhs, nil
}

func parsePrimary(p *tokStream) (*Expression, error) {
	tok, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of expression")
	}
	switch {
	case tok == "(":
		p.next()
		e, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return e, nil
	case tok == "rand":
		p.next()
		if err := p.expect("("); err != nil {
			return nil, err
		}
		sub, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		if err := p.expect(")"); err != nil {
			return nil, err
		}
		return &Expression{Op: game.ERand, SubA: sub}, nil
	case tok == "System":
		return parseSystemRef(p)
	case tok == "var16" || tok == "var32":
		return parseVarRef(p, tok)
	case tok == "var4":
		return parseVar4Ref(p)
	case tok[0] >= '0' && tok[0] <= '9':
		p.next()
		return parseNumberExpr(tok)
	default:
		return nil, fmt.Errorf("unexpected token %q", tok)
	}
}

func parseSystemRef(p *tokStream) (*Expression, error) {
	p.next() // System
	if err := p.expect("."); err != nil {
		return nil, err
	}
	name, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("expected name after System.")
	}
	if name == "var16" || name == "var32" {
		if err := p.expect("["); err != nil {
			return nil, err
		}
		idx, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		op := game.EArray16Get16
		if name == "var32" {
			op = game.EArray32Get32
		}
		return &Expression{Op: op, SubA: idx}, nil
	}
	if idx, ok := findSystemVar16Index(name); ok {
		return &Expression{Op: game.EArray16Get16, SubA: &Expression{Op: game.EImm, Arg8: idx}}, nil
	}
	if idx, ok := findSystemVar32Index(name); ok {
		return &Expression{Op: game.EArray32Get32, SubA: &Expression{Op: game.EImm, Arg8: idx}}, nil
	}
	return nil, fmt.Errorf("unknown system variable %q", name)
}

func parseVarRef(p *tokStream, base string) (*Expression, error) {
	p.next() // var16/var32
	if err := p.expect("["); err != nil {
		return nil, err
	}
	nTok, ok := p.next()
	if !ok {
		return nil, fmt.Errorf("expected index")
	}
	n, err := parseIntToken(nTok)
	if err != nil {
		return nil, err
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok && tok == "->" {
		p.next()
		field, ok := p.next()
		if !ok {
			return nil, fmt.Errorf("expected field name")
		}
		if err := p.expect("["); err != nil {
			return nil, err
		}
		idx, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, err
		}
		switch {
		case base == "var16" && field == "byte":
			return &Expression{Op: game.EArray16Get8, Arg8: byte(n), SubA: idx}, nil
		case base == "var16" && field == "word":
			return &Expression{Op: game.EArray16Get16, Arg8: byte(n + 1), SubA: idx}, nil
		case base == "var32" && field == "word":
			return &Expression{Op: game.EArray32Get16, Arg8: byte(n + 1), SubA: idx}, nil
		case base == "var32" && field == "byte":
			return &Expression{Op: game.EArray32Get8, Arg8: byte(n + 1), SubA: idx}, nil
		case base == "var32" && field == "dword":
			return &Expression{Op: game.EArray32Get32, Arg8: byte(n + 1), SubA: idx}, nil
		default:
			return nil, fmt.Errorf("unsupported %s->%s reference", base, field)
		}
	}
	if base == "var16" {
		return &Expression{Op: game.EVar16, Arg8: byte(n)}, nil
	}
	return &Expression{Op: game.EVar32, Arg8: byte(n)}, nil
}

func parseVar4Ref(p *tokStream) (*Expression, error) {
	p.next() // var4
	if err := p.expect("["); err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok && tok[0] >= '0' && tok[0] <= '9' {
		if nextTok, ok2 := p.peekAt(1); ok2 && nextTok == "]" {
			p.next()
			n, err := parseIntToken(tok)
			if err != nil {
				return nil, err
			}
			p.next() // ]
			return &Expression{Op: game.EReg16, Arg16: uint16(n)}, nil
		}
	}
	sub, err := parseExpr(p)
	if err != nil {
		return nil, err
	}
	if err := p.expect("]"); err != nil {
		return nil, err
	}
	return &Expression{Op: game.EReg8, SubA: sub}, nil
}

func parseNumberExpr(tok string) (*Expression, error) {
	v, err := parseIntToken(tok)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q: %w", tok, err)
	}
	switch {
	case v < 0x80:
		return &Expression{Op: game.EImm, Arg8: byte(v)}, nil
	case v <= 0xFFFF:
		return &Expression{Op: game.EImm16, Arg16: uint16(v)}, nil
	default:
		return &Expression{Op: game.EImm32, Arg32: uint32(v)}, nil
	}
}

func parseExprList(p *tokStream, terminator string) ([]*Expression, error) {
	var list []*Expression
	if tok, ok := p.peek(); ok && tok == terminator {
		return list, nil
	}
	for {
		e, err := parseExpr(p)
		if err != nil {
			return nil, err
		}
		list = append(list, e)
		if tok, ok := p.peek(); ok && tok == "," {
			p.next()
			continue
		}
		break
	}
	return list, nil
}

func parseParams(p *tokStream) ([]*Parameter, error) {
	if err := p.expect("("); err != nil {
		return nil, err
	}
	var params []*Parameter
	if tok, ok := p.peek(); ok && tok == ")" {
		p.next()
		return params, nil
	}
	for {
		tok, ok := p.peek()
		if !ok {
			return nil, fmt.Errorf("unexpected end of parameter list")
		}
		if strings.HasPrefix(tok, `"`) {
			p.next()
			s, err := unquote(tok)
			if err != nil {
				return nil, err
			}
			params = append(params, &Parameter{Type: ParamString, Str: s})
		} else {
			e, err := parseExpr(p)
			if err != nil {
				return nil, err
			}
			params = append(params, &Parameter{Type: ParamExpr, Expr: e})
		}
		if tok2, ok := p.peek(); ok && tok2 == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expect(")"); err != nil {
		return nil, err
	}
	return params, nil
}

// parseRefAssignTarget parses a PtrSet{8,16,32} left-hand side, returning
// the statement op, the 1-based pointer-array slot (0 for "System"), and
// the offset expression.
func parseRefAssignTarget(p *tokStream) (game.StmtOp, uint32, *Expression, error) {
	tok, _ := p.peek()
	if tok == "System" {
		p.next()
		if err := p.expect("."); err != nil {
			return 0, 0, nil, err
		}
		name, ok := p.next()
		if !ok {
			return 0, 0, nil, fmt.Errorf("expected name after System.")
		}
		if name == "var16" {
			if err := p.expect("["); err != nil {
				return 0, 0, nil, err
			}
			off, err := parseExpr(p)
			if err != nil {
				return 0, 0, nil, err
			}
			if err := p.expect("]"); err != nil {
				return 0, 0, nil, err
			}
			return game.OpPtrSet16, 0, off, nil
		}
		if name == "var32" {
			if err := p.expect("["); err != nil {
				return 0, 0, nil, err
			}
			off, err := parseExpr(p)
			if err != nil {
				return 0, 0, nil, err
			}
			if err := p.expect("]"); err != nil {
				return 0, 0, nil, err
			}
			return game.OpPtrSet32, 0, off, nil
		}
		if idx, ok := findSystemVar32Index(name); ok {
			return game.OpPtrSet32, 0, &Expression{Op: game.EImm, Arg8: idx}, nil
		}
		if idx, ok := findSystemVar16Index(name); ok {
			return game.OpPtrSet16, 0, &Expression{Op: game.EImm, Arg8: idx}, nil
		}
		return 0, 0, nil, fmt.Errorf("unknown system variable %q", name)
	}
	if tok == "var16" || tok == "var32" {
		p.next()
		if err := p.expect("["); err != nil {
			return 0, 0, nil, err
		}
		nTok, ok := p.next()
		if !ok {
			return 0, 0, nil, fmt.Errorf("expected index")
		}
		n, err := parseIntToken(nTok)
		if err != nil {
			return 0, 0, nil, err
		}
		if err := p.expect("]"); err != nil {
			return 0, 0, nil, err
		}
		if err := p.expect("->"); err != nil {
			return 0, 0, nil, err
		}
		field, ok := p.next()
		if !ok {
			return 0, 0, nil, fmt.Errorf("expected field name")
		}
		if err := p.expect("["); err != nil {
			return 0, 0, nil, err
		}
		off, err := parseExpr(p)
		if err != nil {
			return 0, 0, nil, err
		}
		if err := p.expect("]"); err != nil {
			return 0, 0, nil, err
		}
		var op game.StmtOp
		switch {
		case tok == "var16" && field == "byte":
			op = game.OpPtrSet8
		case tok == "var16" && field == "word":
			op = game.OpPtrSet16
		case tok == "var32" && field == "dword":
			op = game.OpPtrSet32
		default:
			return 0, 0, nil, fmt.Errorf("unsupported %s->%s assignment target", tok, field)
		}
		return op, uint32(n) + 1, off, nil
	}
	return 0, 0, nil, fmt.Errorf("unrecognized assignment target starting at %q", tok)
}

// parseStatementLine dispatches on the line's leading keyword/token,
// mirroring printStatementBody's switch in reverse.
func parseStatementLine(ctx game.Context, line string) (*Statement, []fixupRef, error) {
	toks := lexTokens(line)
	if len(toks) == 0 {
		return nil, nil, fmt.Errorf("empty statement line")
	}
	p := &tokStream{toks: toks}
	head := toks[0]

	switch head {
	case "END":
		b, _ := ctx.StmtOpToByte(game.OpEnd)
		return &Statement{Op: game.OpEnd, Byte: b}, nil, nil
	case "TXT", "STR":
		p.next()
		strTok, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected string literal")
		}
		text, err := unquote(strTok)
		if err != nil {
			return nil, nil, err
		}
		op := game.OpStr
		if head == "TXT" {
			op = game.OpTxt
		}
		b, _ := ctx.StmtOpToByte(op)
		return &Statement{Op: op, Byte: b, Text: text, Terminated: true}, nil, nil
	case "SETRBC":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, nil, err
		}
		nTok, _ := p.next()
		n, err := parseIntToken(nTok)
		if err != nil {
			return nil, nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, nil, err
		}
		vals, err := parseExprList(p, ";")
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpSetFlagConst)
		return &Statement{Op: game.OpSetFlagConst, Byte: b, VarNo: uint32(n), ValExprs: vals}, nil, nil
	case "SETV":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, nil, err
		}
		nTok, _ := p.next()
		n, err := parseIntToken(nTok)
		if err != nil {
			return nil, nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, nil, err
		}
		vals, err := parseExprList(p, ";")
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpSetVar16)
		return &Statement{Op: game.OpSetVar16, Byte: b, VarNo: uint32(n), ValExprs: vals}, nil, nil
	case "SETRBE":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, nil, err
		}
		varExpr, err := parseExpr(p)
		if err != nil {
			return nil, nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, nil, err
		}
		vals, err := parseExprList(p, ";")
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpSetFlagExpr)
		return &Statement{Op: game.OpSetFlagExpr, Byte: b, VarExpr: varExpr, ValExprs: vals}, nil, nil
	case "System", "var16", "var32":
		op, varNo, off, err := parseRefAssignTarget(p)
		if err != nil {
			return nil, nil, err
		}
		if err := p.expect("="); err != nil {
			return nil, nil, err
		}
		vals, err := parseExprList(p, ";")
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(op)
		return &Statement{Op: op, Byte: b, VarNo: varNo, OffExpr: off, ValExprs: vals}, nil, nil
	case "JZ":
		p.next()
		cond, err := parseExpr(p)
		if err != nil {
			return nil, nil, err
		}
		label, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected jump label")
		}
		b, _ := ctx.StmtOpToByte(game.OpJz)
		s := &Statement{Op: game.OpJz, Byte: b, Expr: cond}
		return s, []fixupRef{{stmt: s, label: label, field: "addr"}}, nil
	case "JMP":
		p.next()
		label, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected jump label")
		}
		b, _ := ctx.StmtOpToByte(game.OpJmp)
		s := &Statement{Op: game.OpJmp, Byte: b}
		return s, []fixupRef{{stmt: s, label: label, field: "addr"}}, nil
	case "SYS":
		p.next()
		if err := p.expect("["); err != nil {
			return nil, nil, err
		}
		cmd, err := parseExpr(p)
		if err != nil {
			return nil, nil, err
		}
		if err := p.expect("]"); err != nil {
			return nil, nil, err
		}
		params, err := parseParams(p)
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpSys)
		return &Statement{Op: game.OpSys, Byte: b, Expr: cmd, Params: params}, nil, nil
	case "GOTO":
		p.next()
		params, err := parseParams(p)
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpJmpMes)
		return &Statement{Op: game.OpJmpMes, Byte: b, Params: params}, nil, nil
	case "CALL":
		p.next()
		params, err := parseParams(p)
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpCallMes)
		return &Statement{Op: game.OpCallMes, Byte: b, Params: params}, nil, nil
	case "MENUI":
		p.next()
		params, err := parseParams(p)
		if err != nil {
			return nil, nil, err
		}
		label, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected menu-entry skip label")
		}
		b, _ := ctx.StmtOpToByte(game.OpDefMenu)
		s := &Statement{Op: game.OpDefMenu, Byte: b, Params: params}
		return s, []fixupRef{{stmt: s, label: label, field: "skip"}}, nil
	case "PROCD", "SUBD":
		p.next()
		numExpr, err := parseExpr(p)
		if err != nil {
			return nil, nil, err
		}
		label, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected procedure skip label")
		}
		b, _ := ctx.StmtOpToByte(game.OpDefProc)
		s := &Statement{Op: game.OpDefProc, Byte: b, Expr: numExpr, Sub: head == "SUBD"}
		return s, []fixupRef{{stmt: s, label: label, field: "skip"}}, nil
	case "UTIL":
		p.next()
		params, err := parseParams(p)
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpUtil)
		return &Statement{Op: game.OpUtil, Byte: b, Params: params}, nil, nil
	case "LINE":
		p.next()
		nTok, ok := p.next()
		if !ok {
			return nil, nil, fmt.Errorf("expected line number")
		}
		n, err := parseIntToken(nTok)
		if err != nil {
			return nil, nil, err
		}
		b, _ := ctx.StmtOpToByte(game.OpLine)
		return &Statement{Op: game.OpLine, Byte: b, Arg: uint8(n)}, nil, nil
	case "MENUS":
		b, _ := ctx.StmtOpToByte(game.OpMenuExec)
		return &Statement{Op: game.OpMenuExec, Byte: b}, nil, nil
	default:
		if strings.HasPrefix(head, `"`) {
			text, err := unquote(head)
			if err != nil {
				return nil, nil, err
			}
			op := game.OpStr
			zenkaku := false
			for _, r := range text {
				if r > 0xFF {
					zenkaku = true
					break
				}
			}
			if zenkaku {
				op = game.OpTxt
			}
			b, _ := ctx.StmtOpToByte(op)
			return &Statement{Op: op, Byte: b, Text: text, Terminated: true}, nil, nil
		}
		return nil, nil, fmt.Errorf("unrecognized statement: %q", line)
	}
}
