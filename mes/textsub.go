package mes

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nunuhara/mesc/diag"
	"github.com/nunuhara/mesc/game"
)

// TextLine is one rendered replacement line for a substitution, tagged with
// its on-screen column count so encodeSubstitution can decide when a
// Line(0) statement is needed to keep shorter lines from running together.
type TextLine struct {
	Text    string
	Columns int
}

// TextSubstitution is one numbered replacement read from a .txt
// substitution file: No indexes the Nth text run encountered in program
// order, From documents the original text for the translator's reference,
// To holds the (possibly multi-line) replacement.
type TextSubstitution struct {
	No      int
	From    string
	To      []TextLine
	Columns int
}

// ParseTextSubstitutions reads the substitution-file grammar: "#columns =
// N" config lines, "## ..." comments, "#<no> \"<from>\"" headers each
// followed by replacement lines up to the next blank line.
func ParseTextSubstitutions(r io.Reader, h *diag.Handler) ([]*TextSubstitution, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading text substitution file: %w", err)
	}

	var subs []*TextSubstitution
	columns := 0
	i := 0
	for i < len(lines) {
		var sub *TextSubstitution
		for i < len(lines) {
			for i < len(lines) && lines[i] == "" {
				i++
			}
			if i >= len(lines) {
				break
			}
			lineNo := i + 1
			comment, newColumns, hasColumns, no, from, hasSub, err := parseControlLine(lines[i])
			i++
			if err != nil {
				return nil, h.Fatalf("line %d: %v", lineNo, err)
			}
			if comment {
				continue
			}
			if hasColumns {
				columns = newColumns
				continue
			}
			if hasSub {
				sub = &TextSubstitution{No: no, From: from, Columns: columns}
				break
			}
		}
		if sub == nil {
			break
		}
		for i < len(lines) {
			line := lines[i]
			if strings.HasPrefix(line, "##") {
				i++
				continue
			}
			cols := strCols(line)
			i++
			if line == "" {
				break
			}
			sub.To = append(sub.To, TextLine{Text: line, Columns: cols})
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// parseControlLine parses one "#..." line into one of: a "## " comment, a
// "#columns = N" config line, or a "#<no> \"<from>\"" substitution header.
func parseControlLine(line string) (comment bool, columns int, hasColumns bool, no int, from string, hasSub bool, err error) {
	if !strings.HasPrefix(line, "#") {
		return false, 0, false, 0, "", false, fmt.Errorf("expected '#': got %q", line)
	}
	rest := line[1:]
	if strings.HasPrefix(rest, "#") {
		return true, 0, false, 0, "", false, nil
	}
	rest = strings.TrimLeft(rest, " \t")
	if strings.HasPrefix(rest, "columns") {
		rest = strings.TrimLeft(rest[len("columns"):], " \t")
		if !strings.HasPrefix(rest, "=") {
			return false, 0, false, 0, "", false, fmt.Errorf("expected '=' in columns header: %q", line)
		}
		rest = strings.TrimSpace(rest[1:])
		n, convErr := strconv.Atoi(rest)
		if convErr != nil || n < 0 {
			return false, 0, false, 0, "", false, fmt.Errorf("invalid columns value: %q", rest)
		}
		return false, n, true, 0, "", false, nil
	}

	j := 0
	for j < len(rest) && rest[j] >= '0' && rest[j] <= '9' {
		j++
	}
	if j == 0 {
		return false, 0, false, 0, "", false, fmt.Errorf("expected integer: %q", rest)
	}
	n, _ := strconv.Atoi(rest[:j])
	rest = strings.TrimLeft(rest[j:], " \t")
	str, strErr := parseQuotedString(rest)
	if strErr != nil {
		return false, 0, false, 0, "", false, strErr
	}
	return false, 0, false, n, str, true, nil
}

func parseQuotedString(s string) (string, error) {
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return "", fmt.Errorf("expected quoted string: %q", s)
	}
	return s[1 : len(s)-1], nil
}

// strCols counts the on-screen column width of one replacement line,
// mirroring text_parser.c's strcols: each backslash escape counts as the
// width of the character it encodes rather than its source length.
func strCols(s string) int {
	cols := 0
	r := []rune(s)
	for i := 0; i < len(r); {
		if r[i] == '\\' && i+1 < len(r) {
			switch r[i+1] {
			case 'X':
				cols += 2
				i += 6
				continue
			case 'x':
				cols++
				i += 4
				continue
			case 'n', 't', '$', '\\':
				cols++
				i += 2
				continue
			}
		}
		if r[i] > 0xFF {
			cols += 2
		} else {
			cols++
		}
		i++
	}
	return cols
}

// textLocation is one numbered run of consecutive text statements (and any
// embedded CallProc the printer would merge into it), in original program
// order -- substitution numbers index this list positionally.
type textLocation struct {
	start int
	count int
}

// findTextLocations groups runs the same way printMergedStatements renders
// them, since a substitution file numbers exactly the runs a reader would
// see as one merged string literal in the pretty-printed output.
func findTextLocations(stmts []*Statement) []textLocation {
	var locs []textLocation
	i := 0
	for i < len(stmts) {
		if !stmtIsNormalText(stmts[i]) {
			i++
			continue
		}
		start := i
		i++
		for i < len(stmts) {
			if stmtIsNormalText(stmts[i]) {
				i++
				continue
			}
			if stmts[i].Op == game.OpCallProc && i+1 < len(stmts) && stmtIsNormalText(stmts[i+1]) {
				if _, ok := getIntParameter(stmts[i].Params, 0); ok {
					i++
					continue
				}
			}
			break
		}
		locs = append(locs, textLocation{start: start, count: i - start})
	}
	return locs
}

// SubstituteText replaces the Nth numbered text run with new content from
// subs, re-addressing every statement in the output and translating jump
// targets through an old-address -> new-statement table, per
// text_parser.c's mes_substitute_text.
func SubstituteText(ctx game.Context, stmts []*Statement, subs []*TextSubstitution, h *diag.Handler) ([]*Statement, error) {
	locs := findTextLocations(stmts)

	byNo := make(map[int]*TextSubstitution, len(subs))
	for _, s := range subs {
		if s.No < 0 || s.No >= len(locs) {
			return nil, h.Fatalf("invalid substitution number %d (file has %d text locations)", s.No, len(locs))
		}
		byNo[s.No] = s
	}

	addrTable := make(map[uint32]*Statement)
	var out []*Statement
	addr := uint32(0)

	pushStmt := func(s *Statement) {
		s.Address = addr
		addr += uint32(StatementSize(ctx, s))
		out = append(out, s)
	}
	copyStmt := func(s *Statement) {
		if s.IsJumpTarget {
			addrTable[s.Address] = s
		}
		pushStmt(s)
	}

	pos := 0
	missing := 0
	for no := 0; no < len(locs); no++ {
		sub, ok := byNo[no]
		if !ok {
			continue
		}
		loc := locs[no]
		for pos < loc.start {
			copyStmt(stmts[pos])
			pos++
		}
		firstOut := len(out)
		encoded, found := encodeSubstitution(ctx, sub)
		if !found {
			missing++
		}
		for _, e := range encoded {
			pushStmt(e)
		}
		if stmts[loc.start].IsJumpTarget {
			if firstOut >= len(out) {
				return nil, h.Fatalf("substitution %d produced no statements but %08X is a jump target", no, stmts[loc.start].Address)
			}
			addrTable[stmts[loc.start].Address] = out[firstOut]
		}
		pos += loc.count
	}
	for pos < len(stmts) {
		copyStmt(stmts[pos])
		pos++
	}

	if err := updateAddresses(out, addrTable); err != nil {
		return nil, err
	}
	if missing > 0 {
		h.Warnf("%d line(s) without substitutions", missing)
	}
	return out, nil
}

// encodeSubstitution splits a substitution's replacement text into
// hankaku/zenkaku runs, embedded "$(n)" procedure calls, and (for
// multi-line replacements) Line(0) separators, mirroring
// text_parser.c:encode_substitution. found is false when sub has no
// replacement lines at all, in which case the original text is re-encoded
// unchanged.
func encodeSubstitution(ctx game.Context, sub *TextSubstitution) ([]*Statement, bool) {
	if len(sub.To) == 0 {
		return encodeText(ctx, sub.From, stringIsZenkakuLead(sub.From)), false
	}

	var out []*Statement
	lineNo := 0
	line := sub.To[0]
	r := []rune(line.Text)
	pos := 0
	start := 0
	zenkaku := false

	flush := func(end int) {
		if end > start {
			out = append(out, encodeText(ctx, string(r[start:end]), zenkaku)...)
		}
	}

	for {
		if pos >= len(r) {
			flush(pos)
			lineNo++
			if lineNo >= len(sub.To) {
				break
			}
			if line.Columns < sub.Columns {
				if le := encodeLine(ctx); le != nil {
					out = append(out, le)
				}
			}
			line = sub.To[lineNo]
			r = []rune(line.Text)
			pos, start = 0, 0
			continue
		}
		if r[pos] == '$' && pos+1 < len(r) && r[pos+1] == '(' {
			end := pos + 2
			for end < len(r) && r[end] != ')' {
				end++
			}
			if end < len(r) {
				if n, err := strconv.Atoi(string(r[pos+2 : end])); err == nil && n >= 0 {
					flush(pos)
					out = append(out, encodeCall(ctx, n))
					pos = end + 1
					start = pos
					continue
				}
			}
		}
		var nextZenkaku bool
		var next int
		if r[pos] == '\\' && pos+1 < len(r) {
			switch r[pos+1] {
			case 'X':
				nextZenkaku, next = true, pos+6
			case 'x':
				nextZenkaku, next = false, pos+4
			case 'n', 't', '$', '\\':
				nextZenkaku, next = false, pos+2
			default:
				nextZenkaku, next = false, pos+1
			}
		} else {
			nextZenkaku, next = r[pos] > 0xFF, pos+1
		}
		if next > len(r) {
			next = len(r)
		}
		if pos > start && zenkaku != nextZenkaku {
			flush(pos)
			start = pos
		}
		zenkaku = nextZenkaku
		pos = next
	}
	return out, true
}

// encodeText builds the Txt/Str statement for one hankaku/zenkaku run.
// AIWIN's single TXT op pads an odd-length hankaku run with a trailing
// '0', matching aiw_encode_text.
func encodeText(ctx game.Context, text string, zenkaku bool) []*Statement {
	if ctx.Variant == game.AiWin {
		if !zenkaku && len(text)%2 != 0 {
			text += "0"
		}
		b, _ := ctx.StmtOpToByte(game.OpTxt)
		return []*Statement{{Op: game.OpTxt, Byte: b, Text: text, Terminated: true}}
	}
	op := game.OpStr
	if zenkaku {
		op = game.OpTxt
	}
	b, _ := ctx.StmtOpToByte(op)
	return []*Statement{{Op: op, Byte: b, Text: text, Terminated: true}}
}

// encodeLine builds a Line(0) statement; AIWIN has no such op, matching
// aiw_encode_line's NULL return.
func encodeLine(ctx game.Context) *Statement {
	if ctx.Variant == game.AiWin {
		return nil
	}
	b, _ := ctx.StmtOpToByte(game.OpLine)
	return &Statement{Op: game.OpLine, Byte: b, Arg: 0}
}

// encodeCall builds a CallProc(n) statement for an embedded "$(n)" call.
func encodeCall(ctx game.Context, n int) *Statement {
	b, _ := ctx.StmtOpToByte(game.OpCallProc)
	return &Statement{
		Op: game.OpCallProc, Byte: b,
		Params: []*Parameter{{Type: ParamExpr, Expr: &Expression{Op: game.EImm, Arg8: byte(n)}}},
	}
}

// stringIsZenkakuLead approximates the original's utf8_sjis_char_length
// check for the no-replacement fallback path: any non-ASCII leading rune
// is treated as a two-byte (zenkaku) character.
func stringIsZenkakuLead(s string) bool {
	r := []rune(s)
	return len(r) > 0 && r[0] > 0xFF
}

// updateAddresses rewrites every Jz/Jmp/DefMenu/DefProc target address from
// its pre-substitution value to the corresponding statement's new address,
// unifying text_parser.c's ai5_update_addresses/aiw_update_addresses since
// this module's virtual-op table already collapses both namespaces.
func updateAddresses(stmts []*Statement, table map[uint32]*Statement) error {
	for _, s := range stmts {
		var addr *uint32
		switch s.Op {
		case game.OpJz, game.OpJmp:
			addr = &s.Addr
		case game.OpDefMenu, game.OpDefProc:
			addr = &s.SkipAddr
		default:
			continue
		}
		target, ok := table[*addr]
		if !ok {
			return fmt.Errorf("jump target address 0x%08X not found after substitution", *addr)
		}
		*addr = target.Address
	}
	return nil
}
