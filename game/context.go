package game

// Context is the explicit, threaded configuration spec.md's design notes
// call for in place of the original implementation's module-level global:
// it must be set before any parse/assemble call and must not change during
// a single decompile or substitution run.
type Context struct {
	Variant       Variant
	ID            ID
	RandIsPostfix bool
	IndexHeader   IndexHeader

	stmtByteToOp map[byte]StmtOp
	stmtOpToByte map[StmtOp]byte
	exprByteToOp map[byte]ExprOp
	exprOpToByte map[ExprOp]byte
}

// NewContext builds the opcode tables for a concrete game. Doukyuusei is
// the sole game with non-postfix Rand; Nonomura and Kawarazakike select
// their address-table/header epilogues; all other games use the AI5WIN
// default table unless they are the AIWIN-variant games.
func NewContext(id ID) Context {
	ctx := Context{ID: id}

	switch id {
	case Yuno, Beyond, AiShimai, AllStars, Shuusaku, Shangrlia, Shangrlia2:
		ctx.Variant = AiWin
	default:
		ctx.Variant = Ai5Win
	}

	ctx.RandIsPostfix = id != Doukyuusei

	switch id {
	case Nonomura:
		ctx.IndexHeader = IndexNonomuraTable
	case Kawarazakike:
		ctx.IndexHeader = IndexKawarazakikeHeader
	default:
		ctx.IndexHeader = IndexNone
	}

	if ctx.Variant == AiWin {
		ctx.stmtByteToOp, ctx.stmtOpToByte = aiwStmtTables()
		ctx.exprByteToOp, ctx.exprOpToByte = aiwExprTables()
	} else if id == ElfClassics {
		ctx.stmtByteToOp, ctx.stmtOpToByte = classicsStmtTables()
		ctx.exprByteToOp, ctx.exprOpToByte = classicsExprTables()
	} else {
		ctx.stmtByteToOp, ctx.stmtOpToByte = defaultStmtTables()
		ctx.exprByteToOp, ctx.exprOpToByte = defaultExprTables()
	}
	return ctx
}

// ByteToStmtOp looks up the virtual statement op for an on-disk byte.
// OpInvalid signals an unmapped byte, which the parser treats as the
// tolerant unprefixed-text recovery path rather than a hard error.
func (c Context) ByteToStmtOp(b byte) StmtOp {
	if op, ok := c.stmtByteToOp[b]; ok {
		return op
	}
	return OpInvalid
}

// StmtOpToByte returns the canonical on-disk byte for a virtual statement
// op. Used only when synthesizing a brand new statement (e.g. text
// substitution); statements parsed from a real file carry their own
// Statement.Byte and bypass this table on reassembly, guaranteeing
// byte-exact round trip even where two on-disk bytes collapse to the same
// virtual op in a given table.
func (c Context) StmtOpToByte(op StmtOp) (byte, bool) {
	b, ok := c.stmtOpToByte[op]
	return b, ok
}

func (c Context) ByteToExprOp(b byte) (ExprOp, bool) {
	op, ok := c.exprByteToOp[b]
	return op, ok
}

func (c Context) ExprOpToByte(op ExprOp) (byte, bool) {
	b, ok := c.exprOpToByte[op]
	return b, ok
}

// VOpOf collapses a concrete statement opcode to the five-category CFG
// structural view. A DefProc-shaped header collapses to VOpDefProc whether
// it was the "PROC" opcode or the AI5WIN "PROCD" (sub-procedure) opcode;
// VOpOf does not report which -- Statement.Sub records that.
func (c Context) VOpOf(op StmtOp) VOp {
	switch op {
	case OpEnd:
		return VOpEnd
	case OpJz:
		return VOpJz
	case OpJmp:
		return VOpJmp
	case OpDefProc:
		return VOpDefProc
	case OpDefMenu:
		return VOpDefMenu
	default:
		return VOpOther
	}
}

// defaultStmtTables is the AI5WIN table used by every non-Classics AI5WIN
// game: SETAW/SETAB (the Classics alternate pointer-array encodings) are
// unused, which leaves JZ..SETRD two bytes lower than in classicsStmtTables.
// SETAC/SETA_AT/SETAD still carry the three pointer-width operations, same
// as Classics.
func defaultStmtTables() (map[byte]StmtOp, map[StmtOp]byte) {
	byteToOp := map[byte]StmtOp{
		0x00: OpEnd,
		0x01: OpTxt,
		0x02: OpStr,
		0x03: OpSetFlagConst,
		0x04: OpSetVar16,
		0x05: OpSetFlagExpr,
		0x06: OpPtrSet8,
		0x07: OpPtrSet16, // SETA_AT
		0x08: OpPtrSet32,
		0x09: OpJz,
		0x0A: OpJmp,
		0x0B: OpSys,
		0x0C: OpJmpMes,
		0x0D: OpCallMes,
		0x0E: OpDefMenu,
		0x0F: OpDefProc,
		0x10: OpUtil,
		0x11: OpLine,
		0x12: OpDefProc, // PROCD, sub-procedure: folded into DefProc, see Statement.Sub
		0x13: OpMenuExec,
		0x14: OpSetVar32,
	}
	opToByte := map[StmtOp]byte{
		OpEnd: 0x00, OpTxt: 0x01, OpStr: 0x02, OpSetFlagConst: 0x03,
		OpSetVar16: 0x04, OpSetFlagExpr: 0x05, OpPtrSet8: 0x06,
		OpPtrSet16: 0x07, OpPtrSet32: 0x08, OpJz: 0x09, OpJmp: 0x0A,
		OpSys: 0x0B, OpJmpMes: 0x0C, OpCallMes: 0x0D, OpDefMenu: 0x0E,
		OpDefProc: 0x0F, OpUtil: 0x10, OpLine: 0x11, OpMenuExec: 0x13,
		OpSetVar32: 0x14,
	}
	return byteToOp, opToByte
}

// classicsStmtTables shifts JZ..SETRD up by two bytes relative to
// defaultStmtTables, to make room for the SETAW/SETAB alternate
// pointer-array encodings at 0x09/0x0A (both unused in the default table).
func classicsStmtTables() (map[byte]StmtOp, map[StmtOp]byte) {
	byteToOp := map[byte]StmtOp{
		0x00: OpEnd,
		0x01: OpTxt,
		0x02: OpStr,
		0x03: OpSetFlagConst,
		0x04: OpSetVar16,
		0x05: OpSetFlagExpr,
		0x06: OpPtrSet8,
		0x07: OpPtrSet16, // SETA_AT
		0x08: OpPtrSet32,
		0x09: OpPtrSet16, // SETAW, alternate encoding of the same virtual op
		0x0A: OpPtrSet8,  // SETAB, alternate encoding of the same virtual op
		0x0B: OpJz,
		0x0C: OpJmp,
		0x0D: OpSys,
		0x0E: OpJmpMes,
		0x0F: OpCallMes,
		0x10: OpDefMenu,
		0x11: OpDefProc,
		0x12: OpUtil,
		0x13: OpLine,
		0x14: OpDefProc,
		0x15: OpMenuExec,
		0x16: OpSetVar32,
	}
	opToByte := map[StmtOp]byte{
		OpEnd: 0x00, OpTxt: 0x01, OpStr: 0x02, OpSetFlagConst: 0x03,
		OpSetVar16: 0x04, OpSetFlagExpr: 0x05, OpPtrSet8: 0x06,
		OpPtrSet32: 0x08, OpPtrSet16: 0x09, OpJz: 0x0B, OpJmp: 0x0C,
		OpSys: 0x0D, OpJmpMes: 0x0E, OpCallMes: 0x0F, OpDefMenu: 0x10,
		OpDefProc: 0x11, OpUtil: 0x12, OpLine: 0x13, OpMenuExec: 0x15,
		OpSetVar32: 0x16,
	}
	return byteToOp, opToByte
}

// defaultExprTables is the AI5WIN expression table used by every
// non-Classics AI5WIN game. Unlike Classics, it has no ARRAY32_GET16/GET8
// entries at all -- only Classics' wider opcode_tables.expr_op_to_int
// array makes room for them -- so 0xF6 goes directly to VAR32.
func defaultExprTables() (map[byte]ExprOp, map[ExprOp]byte) {
	byteToOp := map[byte]ExprOp{
		0x80: EVar16,
		0xA0: EArray16Get16,
		0xC0: EArray16Get8,
		0xE0: EPlus,
		0xE1: EMinus,
		0xE2: EMul,
		0xE3: EDiv,
		0xE4: EMod,
		0xE5: ERand,
		0xE6: EAnd,
		0xE7: EOr,
		0xE8: EBitAnd,
		0xE9: EBitIor,
		0xEA: EBitXor,
		0xEB: ELt,
		0xEC: EGt,
		0xED: ELte,
		0xEE: EGte,
		0xEF: EEq,
		0xF0: ENeq,
		0xF1: EImm16,
		0xF2: EImm32,
		0xF3: EReg16,
		0xF4: EReg8,
		0xF5: EArray32Get32,
		0xF6: EVar32,
		0xFF: EEnd,
	}
	opToByte := make(map[ExprOp]byte, len(byteToOp))
	for b, op := range byteToOp {
		opToByte[op] = b
	}
	return byteToOp, opToByte
}

// classicsExprTables shifts VAR32 up by two bytes to make room for the
// ARRAY32_GET16/GET8 entries Classics adds.
func classicsExprTables() (map[byte]ExprOp, map[ExprOp]byte) {
	byteToOp := map[byte]ExprOp{
		0x80: EVar16,
		0xA0: EArray16Get16,
		0xC0: EArray16Get8,
		0xE0: EPlus,
		0xE1: EMinus,
		0xE2: EMul,
		0xE3: EDiv,
		0xE4: EMod,
		0xE5: ERand,
		0xE6: EAnd,
		0xE7: EOr,
		0xE8: EBitAnd,
		0xE9: EBitIor,
		0xEA: EBitXor,
		0xEB: ELt,
		0xEC: EGt,
		0xED: ELte,
		0xEE: EGte,
		0xEF: EEq,
		0xF0: ENeq,
		0xF1: EImm16,
		0xF2: EImm32,
		0xF3: EReg16,
		0xF4: EReg8,
		0xF5: EArray32Get32,
		0xF6: EArray32Get16,
		0xF7: EArray32Get8,
		0xF8: EVar32,
		0xFF: EEnd,
	}
	opToByte := make(map[ExprOp]byte, len(byteToOp))
	for b, op := range byteToOp {
		opToByte[op] = b
	}
	return byteToOp, opToByte
}

// aiwStmtTables is deliberately small: only the opcodes this module's
// supported scenarios exercise are mapped; unmapped bytes fall back to the
// tolerant unprefixed-text path like any other unknown byte.
func aiwStmtTables() (map[byte]StmtOp, map[StmtOp]byte) {
	byteToOp := map[byte]StmtOp{
		0x00: OpEnd,
		0x01: OpTxt,
		0x03: OpSetFlagConst,
		0x05: OpSetFlagExpr,
		0x06: OpSetVar32,
		0x0A: OpPtrSet8,
		0x0B: OpPtrSet16,
		0x20: OpJz,
		0x21: OpJmp,
		0x22: OpUtil,
		0x23: OpJmpMes,
		0x24: OpCallMes,
		0x2E: OpCallProc,
		0x30: OpDefProc,
		0x31: OpDefMenu,
		0x32: OpMenuExec,
	}
	opToByte := make(map[StmtOp]byte, len(byteToOp))
	for b, op := range byteToOp {
		opToByte[op] = b
	}
	return byteToOp, opToByte
}

func aiwExprTables() (map[byte]ExprOp, map[ExprOp]byte) {
	byteToOp := map[byte]ExprOp{
		0x00: EImm,
		0x01: EImm16,
		0x02: EImm32,
		0x80: EVar16,
		0xA0: EVar32,
		0xE0: EPlus,
		0xE1: EMinus,
		0xE2: EMul,
		0xE3: EDiv,
		0xE4: EMod,
		0xE5: ERand,
		0xE6: EAnd,
		0xE7: EOr,
		0xE8: EBitAnd,
		0xE9: EBitIor,
		0xEA: EBitXor,
		0xEB: ELt,
		0xEC: EGt,
		0xED: ELte,
		0xEE: EGte,
		0xEF: EEq,
		0xF0: ENeq,
		0xFF: EEnd,
	}
	opToByte := make(map[ExprOp]byte, len(byteToOp))
	for b, op := range byteToOp {
		opToByte[op] = b
	}
	return byteToOp, opToByte
}
