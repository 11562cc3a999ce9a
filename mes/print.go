package mes

import (
	"fmt"
	"strings"

	"github.com/nunuhara/mesc/game"
)

// PrintExpression renders one expression tree using the same infix,
// minimally-parenthesized syntax the original engine's own disassembler
// output uses.
func PrintExpression(e *Expression, out *strings.Builder) {
	switch e.Op {
	case game.EImm:
		printNumber(uint32(e.Arg8), out)
	case game.EVar16:
		fmt.Fprintf(out, "var16[%d]", e.Arg8)
	case game.EArray16Get16:
		printArrayGet(out, "var16", "word", 16, e)
	case game.EArray16Get8:
		fmt.Fprintf(out, "var16[%d]->byte[", e.Arg8)
		PrintExpression(e.SubA, out)
		out.WriteByte(']')
	case game.ERand:
		out.WriteString("rand(")
		if e.SubA != nil {
			PrintExpression(e.SubA, out)
		} else {
			printNumber(uint32(e.Arg16), out)
		}
		out.WriteByte(')')
	case game.EImm16:
		printNumber(uint32(e.Arg16), out)
	case game.EImm32:
		printNumber(e.Arg32, out)
	case game.EReg16:
		fmt.Fprintf(out, "var4[%d]", e.Arg16)
	case game.EReg8:
		out.WriteString("var4[")
		PrintExpression(e.SubA, out)
		out.WriteByte(']')
	case game.EArray32Get32:
		printArrayGet(out, "var32", "dword", 32, e)
	case game.EArray32Get16:
		fmt.Fprintf(out, "var32[%d]->word[", int(e.Arg8)-1)
		PrintExpression(e.SubA, out)
		out.WriteByte(']')
	case game.EArray32Get8:
		fmt.Fprintf(out, "var32[%d]->byte[", int(e.Arg8)-1)
		PrintExpression(e.SubA, out)
		out.WriteByte(']')
	case game.EVar32:
		fmt.Fprintf(out, "var32[%d]", e.Arg8)
	default:
		if e.Op.IsBinary() {
			printBinary(e.Op, e.SubA, e.SubB, out)
			return
		}
		fmt.Fprintf(out, "<unprintable expr %v>", e.Op)
	}
}

// printArrayGet renders the System.<name> / System.varN[...] / varN[n]->wordN[...]
// three-way special case shared by ARRAY16_GET16 and ARRAY32_GET32: index 0
// addresses a named or raw system variable, any other index is a pointer
// dereference at that 1-based array slot.
func printArrayGet(out *strings.Builder, arrName, field string, width int, e *Expression) {
	if e.Arg8 == 0 {
		if e.SubA.Op == game.EImm {
			var name string
			if width == 16 {
				name = systemVar16Name(e.SubA.Arg8)
			} else {
				name = systemVar32Name(e.SubA.Arg8)
			}
			if name != "" {
				fmt.Fprintf(out, "System.%s", name)
				return
			}
		}
		fmt.Fprintf(out, "System.%s[", arrName)
		PrintExpression(e.SubA, out)
		out.WriteByte(']')
		return
	}
	fmt.Fprintf(out, "%s[%d]->%s[", arrName, e.Arg8-1, field)
	PrintExpression(e.SubA, out)
	out.WriteByte(']')
}

func binaryOpString(op game.ExprOp) string {
	switch op {
	case game.EPlus:
		return "+"
	case game.EMinus:
		return "-"
	case game.EMul:
		return "*"
	case game.EDiv:
		return "/"
	case game.EMod:
		return "%"
	case game.EAnd:
		return "&&"
	case game.EOr:
		return "||"
	case game.EBitAnd:
		return "&"
	case game.EBitIor:
		return "|"
	case game.EBitXor:
		return "^"
	case game.ELt:
		return "<"
	case game.EGt:
		return ">"
	case game.ELte:
		return "<="
	case game.EGte:
		return ">="
	case game.EEq:
		return "=="
	case game.ENeq:
		return "!="
	default:
		return "?"
	}
}

// binaryParensRequired decides whether sub needs parenthesizing as an
// operand of op, mirroring the original's exact per-operator-category
// precedence table rather than a generic numeric precedence level.
func binaryParensRequired(op game.ExprOp, sub *Expression) bool {
	if !sub.Op.IsBinary() {
		return false
	}
	switch op {
	case game.EMul, game.EDiv, game.EMod:
		return true
	case game.EPlus, game.EMinus:
		switch sub.Op {
		case game.EMul, game.EDiv, game.EMod:
			return false
		default:
			return true
		}
	case game.ELt, game.EGt, game.EGte, game.ELte, game.EEq, game.ENeq:
		switch sub.Op {
		case game.EPlus, game.EMinus, game.EMul, game.EDiv, game.EMod:
			return false
		default:
			return true
		}
	case game.EBitAnd, game.EBitIor, game.EBitXor:
		return true
	case game.EAnd, game.EOr:
		switch sub.Op {
		case game.EAnd, game.EOr:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

func printBinary(op game.ExprOp, lhs, rhs *Expression, out *strings.Builder) {
	if binaryParensRequired(op, rhs) {
		out.WriteByte('(')
		PrintExpression(rhs, out)
		out.WriteByte(')')
	} else {
		PrintExpression(rhs, out)
	}
	fmt.Fprintf(out, " %s ", binaryOpString(op))
	if binaryParensRequired(op, lhs) {
		out.WriteByte('(')
		PrintExpression(lhs, out)
		out.WriteByte(')')
	} else {
		PrintExpression(lhs, out)
	}
}

// printNumber renders small values and clean bit masks (2^n or 2^n-1) as
// the original's disassembler does, so round-tripped output stays
// readable for flag masks instead of dumping every constant in decimal.
func printNumber(n uint32, out *strings.Builder) {
	switch {
	case n < 255:
		fmt.Fprintf(out, "%d", n)
	case n&(n-1) == 0 || (n+1)&n == 0:
		fmt.Fprintf(out, "0x%x", n)
	default:
		fmt.Fprintf(out, "%d", n)
	}
}

func printParameterList(params []*Parameter, out *strings.Builder) {
	out.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			out.WriteByte(',')
		}
		if p.Type == ParamString {
			out.WriteByte('"')
			out.WriteString(p.Str)
			out.WriteByte('"')
		} else {
			PrintExpression(p.Expr, out)
		}
	}
	out.WriteByte(')')
}

func printExpressionList(list []*Expression, out *strings.Builder) {
	for i, e := range list {
		if i > 0 {
			out.WriteByte(',')
		}
		PrintExpression(e, out)
	}
}

func getIntParameter(params []*Parameter, i int) (int, bool) {
	if i >= len(params) {
		return 0, false
	}
	p := params[i]
	if p.Type != ParamExpr || p.Expr.Op != game.EImm {
		return 0, false
	}
	return int(p.Expr.Arg8), true
}

// printSysCall names the common SYS[] subcommands the way the original
// prints them (System.Cursor.load, System.SaveData.save, ...); an
// unrecognized or non-immediate command number falls back to the raw
// SYS[n](...) form.
func printSysCall(s *Statement, out *strings.Builder) bool {
	if s.Expr.Op != game.EImm {
		return false
	}
	cmd0 := func(name string) bool {
		out.WriteString(name)
		printParameterList(s.Params, out)
		return true
	}
	sub := func(prefix string, names map[int]string) bool {
		n, ok := getIntParameter(s.Params, 0)
		if !ok {
			return false
		}
		if name, ok := names[n]; ok {
			out.WriteString(prefix + "." + name)
		} else {
			fmt.Fprintf(out, "%s.function[%d]", prefix, n)
		}
		printParameterList(s.Params[1:], out)
		return true
	}
	switch s.Expr.Arg8 {
	case 0:
		return cmd0("System.set_font_size")
	case 2:
		return sub("System.Cursor", map[int]string{0: "load", 1: "refresh", 2: "save_pos", 3: "set_pos", 4: "open"})
	case 4:
		return sub("System.SaveData", map[int]string{
			1: "save", 2: "load", 3: "save_except_mes_name", 4: "load_var4",
			5: "write_var4", 6: "save_union_var4", 7: "load_var4_slice",
			8: "save_var4_slice", 9: "copy", 13: "set_mes_name",
		})
	case 5:
		return sub("System.Audio", nil)
	case 7:
		return sub("System.File", map[int]string{0: "read", 1: "write"})
	case 8:
		return cmd0("System.load_image")
	case 9:
		return sub("System.Palette", nil)
	case 10:
		return sub("System.Image", nil)
	case 12:
		return cmd0("System.set_text_colors")
	case 13:
		return cmd0("System.farcall")
	default:
		return false
	}
}

// PrintAsmStatement renders one statement in the flat, indented, label-
// annotated "assembly" form used for debugging and for round-trip test
// fixtures -- every statement on its own line, jump targets preceded by an
// L_<address> label.
func PrintAsmStatement(s *Statement, out *strings.Builder, indent int) {
	if s.IsJumpTarget {
		writeIndent(out, indent-1)
		fmt.Fprintf(out, "L_%08x:\n", s.Address)
	}
	writeIndent(out, indent)
	printStatementBody(s, out)
}

func writeIndent(out *strings.Builder, n int) {
	for i := 0; i < n; i++ {
		out.WriteByte('\t')
	}
}

func printStatementBody(s *Statement, out *strings.Builder) {
	switch s.Op {
	case game.OpEnd:
		out.WriteString("END;\n")
	case game.OpTxt, game.OpStr:
		name := "STR"
		if s.Op == game.OpTxt {
			name = "TXT"
		}
		fmt.Fprintf(out, "%s \"%s\";\n", name, s.Text)
	case game.OpSetFlagConst:
		fmt.Fprintf(out, "SETRBC[%d] = ", s.VarNo)
		printExpressionList(s.ValExprs, out)
		out.WriteString(";\n")
	case game.OpSetVar16, game.OpSetVar32:
		fmt.Fprintf(out, "SETV[%d] = ", s.VarNo)
		printExpressionList(s.ValExprs, out)
		out.WriteString(";\n")
	case game.OpSetFlagExpr:
		out.WriteString("SETRBE[")
		PrintExpression(s.VarExpr, out)
		out.WriteString("] = ")
		printExpressionList(s.ValExprs, out)
		out.WriteString(";\n")
	case game.OpPtrSet8, game.OpPtrSet16, game.OpPtrSet32:
		printPtrSet(s, out)
	case game.OpJz:
		out.WriteString("JZ ")
		PrintExpression(s.Expr, out)
		fmt.Fprintf(out, " L_%08x;\n", s.Addr)
	case game.OpJmp:
		fmt.Fprintf(out, "JMP L_%08x;\n", s.Addr)
	case game.OpSys:
		if printSysCall(s, out) {
			out.WriteString(";\n")
			return
		}
		out.WriteString("SYS[")
		PrintExpression(s.Expr, out)
		out.WriteByte(']')
		printParameterList(s.Params, out)
		out.WriteString(";\n")
	case game.OpJmpMes:
		out.WriteString("GOTO")
		printParameterList(s.Params, out)
		out.WriteString(";\n")
	case game.OpCallMes, game.OpCallProc:
		out.WriteString("CALL")
		printParameterList(s.Params, out)
		out.WriteString(";\n")
	case game.OpDefMenu:
		out.WriteString("MENUI")
		printParameterList(s.Params, out)
		fmt.Fprintf(out, " L_%08x;\n", s.SkipAddr)
	case game.OpDefProc:
		if s.Sub {
			out.WriteString("SUBD ")
		} else {
			out.WriteString("PROCD ")
		}
		PrintExpression(s.Expr, out)
		fmt.Fprintf(out, " L_%08x;\n", s.SkipAddr)
	case game.OpUtil:
		out.WriteString("UTIL")
		printParameterList(s.Params, out)
		out.WriteString(";\n")
	case game.OpLine:
		fmt.Fprintf(out, "LINE %d;\n", s.Arg)
	case game.OpMenuExec:
		out.WriteString("MENUS;\n")
	default:
		fmt.Fprintf(out, "<unprintable statement %v>\n", s.Op)
	}
}

func printPtrSet(s *Statement, out *strings.Builder) {
	width := map[game.StmtOp]struct {
		arr, field string
	}{
		game.OpPtrSet8:  {"var16", "byte"},
		game.OpPtrSet16: {"var16", "word"},
		game.OpPtrSet32: {"var32", "dword"},
	}[s.Op]

	var name string
	if s.VarNo == 0 && s.OffExpr.Op == game.EImm {
		if s.Op == game.OpPtrSet32 {
			name = systemVar32Name(s.OffExpr.Arg8)
		} else {
			name = systemVar16Name(s.OffExpr.Arg8)
		}
	}
	switch {
	case s.VarNo == 0 && name != "":
		fmt.Fprintf(out, "System.%s", name)
	case s.VarNo == 0:
		fmt.Fprintf(out, "System.%s[", width.arr)
		PrintExpression(s.OffExpr, out)
		out.WriteByte(']')
	default:
		fmt.Fprintf(out, "%s[%d]->%s[", width.arr, s.VarNo-1, width.field)
		PrintExpression(s.OffExpr, out)
		out.WriteByte(']')
	}
	out.WriteString(" = ")
	printExpressionList(s.ValExprs, out)
	out.WriteString(";\n")
}

// PrintAST renders a reconstructed AST block as structured, C-like source:
// if/else, while, procedure/sub/menu-entry bodies, continue/break, and
// goto labels for any node the simplifier could not eliminate. Consecutive
// TXT/STR statements (and embedded CallProc($n) calls) are merged into one
// quoted string literal, exactly as the original disassembler does.
func PrintAST(block []*Node, out *strings.Builder, indent int) {
	for _, node := range block {
		printASTNode(node, out, indent)
	}
}

func printASTNode(node *Node, out *strings.Builder, indent int) {
	if node.IsGotoTarget {
		writeIndent(out, indent-1)
		fmt.Fprintf(out, "L_%08x:\n", node.Address)
	}
	switch node.Type {
	case NodeStatements:
		printMergedStatements(node.Statements, out, indent)
	case NodeCond:
		writeIndent(out, indent)
		printCond(node, out, indent)
	case NodeLoop:
		writeIndent(out, indent)
		out.WriteString("while (")
		PrintExpression(node.Condition, out)
		out.WriteString(") {\n")
		PrintAST(node.Body, out, indent+1)
		writeIndent(out, indent)
		out.WriteString("}\n")
	case NodeProcedure:
		out.WriteByte('\n')
		writeIndent(out, indent)
		out.WriteString("procedure[")
		PrintExpression(node.NumExpr, out)
		out.WriteString("] = {\n")
		PrintAST(node.Body, out, indent+1)
		writeIndent(out, indent)
		out.WriteString("};\n")
	case NodeSub:
		out.WriteByte('\n')
		writeIndent(out, indent)
		out.WriteString("sub[")
		PrintExpression(node.NumExpr, out)
		out.WriteString("] = {\n")
		PrintAST(node.Body, out, indent+1)
		writeIndent(out, indent)
		out.WriteString("};\n")
	case NodeMenuEntry:
		writeIndent(out, indent)
		out.WriteString("menu[")
		printParameterList(node.Params, out)
		out.WriteString("] = {\n")
		PrintAST(node.Body, out, indent+1)
		writeIndent(out, indent)
		out.WriteString("};\n")
	case NodeContinue:
		writeIndent(out, indent)
		out.WriteString("continue;\n")
	case NodeBreak:
		writeIndent(out, indent)
		out.WriteString("break;\n")
	}
}

func printCond(node *Node, out *strings.Builder, indent int) {
	out.WriteString("if (")
	PrintExpression(node.Condition, out)
	out.WriteString(") {\n")
	PrintAST(node.Consequent, out, indent+1)
	if len(node.Alternative) > 0 {
		writeIndent(out, indent)
		if len(node.Alternative) == 1 && node.Alternative[0].Type == NodeCond {
			out.WriteString("} else ")
			printCond(node.Alternative[0], out, indent)
			return
		}
		out.WriteString("} else {\n")
		PrintAST(node.Alternative, out, indent+1)
	}
	writeIndent(out, indent)
	out.WriteString("}\n")
}

func stmtIsNormalText(s *Statement) bool {
	return (s.Op == game.OpTxt || s.Op == game.OpStr) && s.Terminated && !s.Unprefixed
}

func printMergedStatements(stmts []*Statement, out *strings.Builder, indent int) {
	var text strings.Builder
	haveText := false
	flush := func() {
		if haveText {
			writeIndent(out, indent)
			fmt.Fprintf(out, "\"%s\";\n", text.String())
			text.Reset()
			haveText = false
		}
	}
	for i, s := range stmts {
		var next *Statement
		if i+1 < len(stmts) {
			next = stmts[i+1]
		}
		if stmtIsNormalText(s) {
			text.WriteString(s.Text)
			haveText = true
			continue
		}
		if haveText && s.Op == game.OpCallProc && next != nil && stmtIsNormalText(next) {
			if f, ok := getIntParameter(s.Params, 0); ok {
				fmt.Fprintf(&text, "$%d", f)
				continue
			}
		}
		flush()
		writeIndent(out, indent)
		printStatementBody(s, out)
	}
	flush()
}
