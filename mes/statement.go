package mes

import "github.com/nunuhara/mesc/game"

// SentinelAddr marks a statement synthesized during AST reconstruction
// (e.g. an elided fallthrough jump) that never had a real on-disk address.
const SentinelAddr uint32 = 0xFFFFFFFF

// ParamType discriminates a call parameter's payload.
type ParamType int

const (
	ParamString ParamType = 1
	ParamExpr   ParamType = 2
)

// Parameter is one entry of a Sys/JmpMes/CallMes/CallProc/Util/DefMenu
// parameter list.
type Parameter struct {
	Type ParamType
	Str  string
	Expr *Expression
}

// Statement is a single bytecode instruction. Only the fields relevant to
// Op are populated; this flattens the original's tagged C union into one
// Go struct, per spec.md's Design Notes ("the discriminant and payload
// should be one type in the implementation language").
type Statement struct {
	Op          game.StmtOp
	Byte        byte // raw on-disk opcode byte, used directly by the assembler for exact round-trip
	Address     uint32
	NextAddress uint32
	IsJumpTarget bool

	// Sub distinguishes the AI5WIN "PROCD" (sub-procedure) concrete opcode
	// from "PROC" when Op == OpDefProc; both collapse to the same
	// structural VOpDefProc category for CFG purposes (see DESIGN.md).
	Sub bool

	// Txt / Str
	Text       string
	Terminated bool
	Unprefixed bool

	// SetFlagConst / SetVar16 / SetVar32 / PtrSet{8,16,32}
	VarNo    uint32
	ValExprs []*Expression

	// SetFlagExpr
	VarExpr *Expression

	// PtrSet{8,16,32}
	OffExpr *Expression

	// Jz / Sys / DefProc
	Expr *Expression

	// Jz / Jmp
	Addr uint32

	// DefMenu / DefProc
	SkipAddr uint32

	// Sys / JmpMes / CallMes / CallProc / Util / DefMenu
	Params []*Parameter

	// Line
	Arg uint8
}

// Clone returns a shallow copy of the statement. The CFG builder and the
// text-substitution pass do not use it: both work on the original
// statements, and substitution rewrites their Address fields in place.
func (s *Statement) Clone() *Statement {
	c := *s
	return &c
}
