package mes

import (
	"testing"

	"github.com/nunuhara/mesc/game"
)

func TestImmConstructors(t *testing.T) {
	e := Imm(42)
	if e.Op != game.EImm || e.Arg8 != 42 {
		t.Errorf("Imm(42) = %+v", e)
	}
	e16 := Imm16(4200)
	if e16.Op != game.EImm16 || e16.Arg16 != 4200 {
		t.Errorf("Imm16(4200) = %+v", e16)
	}
}
