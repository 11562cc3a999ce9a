package mes

import (
	"fmt"

	"github.com/nunuhara/mesc/game"
)

// BlockType discriminates a Block's two shapes: a straight-line run of
// statements, or a procedure/sub/menu-entry body containing its own
// sub-graph of blocks.
type BlockType int

const (
	BlockBasic BlockType = iota
	BlockCompound
)

// Block is one node of the control-flow graph built over a flat statement
// list. As with Statement, the two shapes are flattened into one struct
// rather than split across an interface, so the CFG passes can mutate a
// block in place without a type switch at every step.
type Block struct {
	Type    BlockType
	Address uint32

	// set by the dominance pass; -1 until visited, used as a dense index
	// into the pass's immediate-dominator array rather than pointer
	// identity so intersection can run as a simple integer comparison
	// (post order number).
	Post  int
	InAst bool

	Parent *Block
	Pred   []*Block
	Succ   []*Block
	Dom    []*Block
	DomFront []*Block

	// BlockBasic
	Statements  []*Statement
	End         *Statement
	Fallthrough *Block
	JumpTarget  *Block

	// BlockCompound
	Head        *Statement
	Blocks      []*Block
	EndAddress  uint32
	Next        *Block
}

func newBasicBlock(stmts []*Statement, end *Statement) *Block {
	b := &Block{Type: BlockBasic, Post: -1, Statements: stmts, End: end}
	if len(stmts) > 0 {
		b.Address = stmts[0].Address
	} else if end != nil {
		b.Address = end.Address
	}
	return b
}

func newCompoundBlock(ctx game.Context, head *Statement) *Block {
	// DefMenu and DefProc share the same flattened SkipAddr field.
	return &Block{Type: BlockCompound, Post: -1, Address: head.Address, Head: head, EndAddress: head.SkipAddr - 1}
}

func addChild(parent, child *Block) {
	child.Parent = parent
	parent.Blocks = append(parent.Blocks, child)
}

func pushStatements(ctx game.Context, current *[]*Statement, block *Block) {
	if len(*current) == 0 {
		return
	}
	addChild(block, newBasicBlock(*current, nil))
	*current = nil
}

// BuildCFG runs all five construction passes over a flat statement list and
// returns the toplevel compound block.
func BuildCFG(ctx game.Context, stmts []*Statement) (*Block, error) {
	toplevel := &Block{Type: BlockCompound, Post: -1}
	if err := createCompoundBlocks(ctx, toplevel, stmts); err != nil {
		return nil, err
	}
	createBasicBlocks(ctx, toplevel)
	if err := createGraph(toplevel); err != nil {
		return nil, err
	}
	if len(toplevel.Blocks) > 0 {
		computeDominance(toplevel)
	}
	for _, b := range toplevel.Blocks {
		if err := checkBlock(b, toplevel); err != nil {
			return nil, err
		}
	}
	return toplevel, nil
}

// createCompoundBlocks is pass 1: group statements belonging to procedures
// and menu entries into their own compound blocks, using an explicit stack
// since DefProc/DefMenu bodies can nest.
func createCompoundBlocks(ctx game.Context, toplevel *Block, stmts []*Statement) error {
	if len(stmts) == 0 {
		return nil
	}

	stack := []*Block{toplevel}
	var current []*Statement

	last := stmts[len(stmts)-1]
	toplevel.EndAddress = last.Address
	if ctx.VOpOf(last.Op) != game.VOpEnd {
		return fmt.Errorf("mes file is not terminated by an END statement")
	}

	for _, stmt := range stmts {
		top := stack[len(stack)-1]
		switch {
		case stmt.Address == top.EndAddress:
			if ctx.VOpOf(stmt.Op) != game.VOpEnd {
				return fmt.Errorf("expected END statement at %08x", stmt.Address)
			}
			current = append(current, stmt)
			pushStatements(ctx, &current, top)
			stack = stack[:len(stack)-1]
		case isCompoundHead(ctx, stmt):
			pushStatements(ctx, &current, top)
			nb := newCompoundBlock(ctx, stmt)
			addChild(top, nb)
			stack = append(stack, nb)
		default:
			current = append(current, stmt)
		}
	}
	if len(stack) != 0 {
		return fmt.Errorf("unbalanced procedure/menu-entry nesting")
	}
	return nil
}

func isCompoundHead(ctx game.Context, s *Statement) bool {
	v := ctx.VOpOf(s.Op)
	return v == game.VOpDefMenu || v == game.VOpDefProc
}

// createBasicBlocks is pass 2: split each compound block's flat statement
// run into basic blocks -- a jump target starts a new block, and a
// Jz/Jmp/End statement closes one.
func createBasicBlocks(ctx game.Context, parent *Block) {
	in := parent.Blocks
	parent.Blocks = nil

	for _, block := range in {
		if block.Type == BlockBasic {
			statementsToBasicBlocks(ctx, block.Statements, parent)
		} else {
			createBasicBlocks(ctx, block)
			addChild(parent, block)
		}
	}
}

func statementsToBasicBlocks(ctx game.Context, stmts []*Statement, parent *Block) {
	var current []*Statement
	for _, stmt := range stmts {
		if stmt.IsJumpTarget && len(current) > 0 {
			addChild(parent, newBasicBlock(current, nil))
			current = nil
		}
		v := ctx.VOpOf(stmt.Op)
		if v == game.VOpJz || v == game.VOpJmp || v == game.VOpEnd {
			addChild(parent, newBasicBlock(current, stmt))
			current = nil
		} else {
			current = append(current, stmt)
		}
	}
	if len(current) > 0 {
		addChild(parent, newBasicBlock(current, nil))
	}
}

// createGraph is pass 3: wire predecessor/successor edges by looking up
// jump/fallthrough targets in an address-keyed table built over every
// block at every nesting level.
func createGraph(toplevel *Block) error {
	table := make(map[uint32]*Block)
	if err := indexBlocks(toplevel.Blocks, table); err != nil {
		return err
	}
	return createEdges(toplevel, table)
}

func indexBlocks(blocks []*Block, table map[uint32]*Block) error {
	for _, b := range blocks {
		var addr uint32
		if b.Type == BlockBasic {
			if len(b.Statements) > 0 {
				addr = b.Statements[0].Address
			} else if b.End != nil {
				addr = b.End.Address
			} else {
				return fmt.Errorf("empty basic block with no end statement")
			}
		} else {
			addr = b.Head.Address
			if err := indexBlocks(b.Blocks, table); err != nil {
				return err
			}
		}
		if _, dup := table[addr]; dup {
			return fmt.Errorf("multiple blocks with same address 0x%08X", addr)
		}
		table[addr] = b
	}
	return nil
}

func createEdge(src, dst *Block) {
	src.Succ = append(src.Succ, dst)
	dst.Pred = append(dst.Pred, src)
}

func createEdges(parent *Block, table map[uint32]*Block) error {
	blocks := parent.Blocks
	for i, block := range blocks {
		var next *Block
		if i+1 < len(blocks) {
			next = blocks[i+1]
		}
		if block.Type == BlockBasic {
			end := block.End
			switch {
			case end != nil && end.Op == game.OpJz:
				block.Fallthrough = next
				if next != nil {
					createEdge(block, next)
				}
				target, ok := table[end.Addr]
				if !ok {
					return fmt.Errorf("jump target lookup failed for 0x%08X", end.Addr)
				}
				block.JumpTarget = target
				createEdge(block, target)
			case end != nil && end.Op == game.OpJmp:
				target, ok := table[end.Addr]
				if !ok {
					return fmt.Errorf("jump target lookup failed for 0x%08X", end.Addr)
				}
				block.JumpTarget = target
				createEdge(block, target)
			case end != nil && end.Op == game.OpEnd:
				// terminal block, no outgoing edge
			default:
				block.Fallthrough = next
				if next != nil {
					createEdge(block, next)
				}
			}
		} else {
			block.Next = next
			if next != nil {
				createEdge(block, next)
			}
			if err := createEdges(block, table); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeDominance is pass 4: the Cooper/Harvey/Kennedy iterative
// dominance algorithm, run independently over each compound block's
// sub-graph (a jump can never cross a procedure/menu-entry boundary, so
// each compound's blocks form their own closed graph).
func computeDominance(compound *Block) {
	if len(compound.Blocks) == 0 {
		return
	}
	start := compound.Blocks[0]
	var post []*Block
	postorder(start, &post)

	n := len(post)
	doms := make([]int, n)
	for i := range doms {
		doms[i] = -1
	}
	doms[start.Post] = start.Post

	changed := true
	for changed {
		changed = false
		for _, b := range post {
			if b == start {
				continue
			}
			newIdom := -1
			for _, p := range b.Pred {
				if p.Post < 0 || doms[p.Post] == -1 {
					continue
				}
				if newIdom < 0 {
					newIdom = p.Post
					continue
				}
				newIdom = domIntersect(doms, p.Post, newIdom)
			}
			if doms[b.Post] != newIdom {
				doms[b.Post] = newIdom
				changed = true
			}
		}
	}

	for _, b := range post {
		if len(b.Pred) < 2 {
			continue
		}
		for _, p := range b.Pred {
			if p.Post < 0 {
				continue
			}
			runner := p.Post
			for runner != doms[b.Post] {
				addToDomFront(post[runner], b)
				runner = doms[runner]
			}
		}
	}

	for _, b := range compound.Blocks {
		if b.Post >= 0 && b.Type == BlockCompound {
			computeDominance(b)
		}
	}

	for i, dominated := range post {
		for j := i; ; j = doms[j] {
			post[j].Dom = append(post[j].Dom, dominated)
			if doms[j] == j {
				break
			}
		}
	}
}

func postorder(block *Block, list *[]*Block) {
	block.Post = 9999 // provisional, guards against cycles while visiting
	for _, succ := range block.Succ {
		if succ.Post >= 0 {
			continue
		}
		postorder(succ, list)
	}
	block.Post = len(*list)
	*list = append(*list, block)
}

func domIntersect(doms []int, b1, b2 int) int {
	f1, f2 := b1, b2
	for f1 != f2 {
		for f1 < f2 {
			f1 = doms[f1]
		}
		for f2 < f1 {
			f2 = doms[f2]
		}
	}
	return f1
}

func addToDomFront(block, front *Block) {
	for _, b := range block.DomFront {
		if b == front {
			return
		}
	}
	block.DomFront = append(block.DomFront, front)
}

// checkBlock is pass 5: verify that no jump escapes the procedure/menu-entry
// scope it was parsed in.
func checkBlock(block, parent *Block) error {
	if block.Type == BlockCompound {
		for _, child := range block.Blocks {
			if err := checkBlock(child, block); err != nil {
				return err
			}
		}
		return nil
	}
	if block.End == nil {
		return nil
	}
	return checkJump(block.End, parent)
}

func checkJump(stmt *Statement, parent *Block) error {
	var addr uint32
	switch stmt.Op {
	case game.OpJz, game.OpJmp:
		addr = stmt.Addr
	default:
		return nil
	}

	for _, block := range parent.Blocks {
		if block.Type == BlockCompound {
			if addr == block.Head.Address {
				return nil
			}
			continue
		}
		var start, end uint32
		if len(block.Statements) > 0 {
			start = block.Statements[0].Address
		} else if block.End != nil {
			start = block.End.Address
		}
		if block.End != nil {
			end = block.End.Address
		} else if n := len(block.Statements); n > 0 {
			end = block.Statements[n-1].NextAddress
		}
		if addr >= start && addr <= end {
			return nil
		}
	}
	return fmt.Errorf("jump escapes local scope at 0x%08X -> 0x%08X", stmt.Address, addr)
}
