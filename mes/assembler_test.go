package mes

import (
	"bytes"
	"testing"

	"github.com/nunuhara/mesc/game"
)

func assembleAndMatchHex(t *testing.T, ctx game.Context, data []byte) {
	t.Helper()
	stmts, err := ParseStatements(data, ctx, silentDiag())
	if err != nil {
		t.Fatalf("ParseStatements(% X): %v", data, err)
	}
	out, err := Assemble(ctx, stmts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("round trip mismatch:\n got: % X\nwant: % X", out, data)
	}
}

func TestAssembleRoundTripEnd(t *testing.T) {
	assembleAndMatchHex(t, game.NewContext(game.Yukinojou), []byte{0x00})
}

func TestAssembleRoundTripSetVar16(t *testing.T) {
	assembleAndMatchHex(t, game.NewContext(game.Yukinojou),
		[]byte{0x04, 0x05, 0x07, 0xFF, 0x00, 0x00})
}

func TestAssembleRoundTripJz(t *testing.T) {
	assembleAndMatchHex(t, game.NewContext(game.Yukinojou),
		[]byte{0x09, 0x01, 0xFF, 0x07, 0x00, 0x00, 0x00, 0x00})
}

func TestAssembleRoundTripDoukyuuseiRand(t *testing.T) {
	assembleAndMatchHex(t, game.NewContext(game.Doukyuusei),
		[]byte{0x03, 0x00, 0x00, 0xE5, 0x0A, 0x00, 0xFF, 0x00, 0x00})
}

func TestAssembleRoundTripClassicsPtrSet(t *testing.T) {
	// ELF Classics SETA_AT (0x07, -> OpPtrSet16): var16[0]->word[0] = 3; END
	ctx := game.NewContext(game.ElfClassics)
	data := []byte{0x07, 0x00, 0xFF, 0x01, 0x03, 0xFF, 0x00, 0x00}
	assembleAndMatchHex(t, ctx, data)
}
