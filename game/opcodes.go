// Package game defines the per-engine-variant opcode tables that the mes
// package's parser and assembler consult to translate between virtual
// opcodes and on-disk bytes.
package game

// Variant distinguishes the two incompatible bytecode dialects the engine
// family shipped: the original AI5WIN interpreter and its AIWIN successor.
type Variant int

const (
	Ai5Win Variant = iota
	AiWin
)

// ID names a concrete game whose opcode table this package can build.
type ID int

const (
	ElfClassics ID = iota
	Yukinojou
	Yuno
	Beyond
	AiShimai
	Koihime
	Doukyuusei
	Kakyuusei
	Isaku
	Nonomura
	Kawarazakike
	AllStars
	Shuusaku
	Shangrlia
	Shangrlia2
)

// StmtOp is a virtual statement opcode: stable across games even though the
// on-disk byte for the same operation differs between them.
type StmtOp int

const (
	OpInvalid StmtOp = iota
	OpEnd
	OpTxt
	OpStr
	OpSetFlagConst
	OpSetVar16
	OpSetFlagExpr
	OpPtrSet8
	OpPtrSet16
	OpPtrSet32
	OpJz
	OpJmp
	OpSys
	OpJmpMes
	OpCallMes
	OpDefMenu
	OpDefProc
	OpUtil
	OpLine
	OpMenuExec
	OpCallProc
	OpSetVar32
)

// ExprOp is a virtual expression opcode.
type ExprOp int

const (
	EInvalid ExprOp = iota
	EImm
	EVar16
	EArray16Get16
	EArray16Get8
	EPlus
	EMinus
	EMul
	EDiv
	EMod
	ERand
	EAnd
	EOr
	EBitAnd
	EBitIor
	EBitXor
	ELt
	EGt
	ELte
	EGte
	EEq
	ENeq
	EImm16
	EImm32
	EReg16
	EReg8
	EArray32Get32
	EArray32Get16
	EArray32Get8
	EVar32
	EEnd
)

// VOp collapses both statement opcode namespaces into the five structural
// categories the CFG builder cares about.
type VOp int

const (
	VOpOther VOp = iota
	VOpEnd
	VOpJz
	VOpJmp
	VOpDefProc
	VOpDefMenu
)

// IndexHeader selects a variant-specific epilogue the assembler must emit.
type IndexHeader int

const (
	IndexNone IndexHeader = iota
	IndexNonomuraTable
	IndexKawarazakikeHeader
)

var idNames = map[string]ID{
	"elf-classics": ElfClassics,
	"yukinojou":    Yukinojou,
	"yuno":         Yuno,
	"beyond":       Beyond,
	"ai-shimai":    AiShimai,
	"koihime":      Koihime,
	"doukyuusei":   Doukyuusei,
	"kakyuusei":    Kakyuusei,
	"isaku":        Isaku,
	"nonomura":     Nonomura,
	"kawarazakike": Kawarazakike,
	"allstars":     AllStars,
	"shuusaku":     Shuusaku,
	"shangrlia":    Shangrlia,
	"shangrlia2":   Shangrlia2,
}

// ParseID maps a game's CLI-facing slug to its ID.
func ParseID(name string) (ID, bool) {
	id, ok := idNames[name]
	return id, ok
}

// IsBinary reports whether an expression opcode is a two-operand operator.
func (op ExprOp) IsBinary() bool {
	switch op {
	case EPlus, EMinus, EMul, EDiv, EMod, EAnd, EOr, EBitAnd, EBitIor, EBitXor,
		ELt, EGt, ELte, EGte, EEq, ENeq:
		return true
	default:
		return false
	}
}
