package mes

import (
	"fmt"

	"github.com/nunuhara/mesc/game"
)

// NodeType discriminates an AST node's shape. As with Statement and Block,
// every node uses one flattened struct rather than per-kind types.
type NodeType int

const (
	NodeStatements NodeType = iota
	NodeCond
	NodeLoop
	NodeProcedure
	NodeSub
	NodeMenuEntry
	NodeContinue
	NodeBreak
)

// syntheticAddress marks a node (an inserted fallthrough JMP) that never
// corresponded to a real on-disk statement, so the simplifier's address
// table and goto-target detection both skip it.
const syntheticAddress = SentinelAddr

// Node is one element of a reconstructed AST block. Only the fields
// relevant to Type are populated, per the same flattened-struct approach
// used by Statement and Block.
type Node struct {
	Type    NodeType
	Address uint32

	// NodeStatements
	Statements []*Statement

	// NodeCond / NodeLoop
	Condition   *Expression
	Consequent  []*Node
	Alternative []*Node

	// NodeLoop / NodeProcedure / NodeSub / NodeMenuEntry
	Body []*Node

	// NodeProcedure / NodeSub
	NumExpr *Expression

	// NodeMenuEntry
	Params []*Parameter

	IsGotoTarget bool
}

// BuildAST walks the dominance tree produced by BuildCFG and reconstructs
// structured control flow (if/else, while, procedure and menu-entry
// bodies) from it, per spec.md §4.5.
func BuildAST(ctx game.Context, toplevel *Block) ([]*Node, error) {
	if len(toplevel.Blocks) == 0 {
		return nil, nil
	}
	head := &Block{
		Type:        BlockBasic,
		Post:        -1,
		Fallthrough: toplevel.Blocks[0],
	}
	var out []*Node
	if err := createBlockAST(ctx, &out, toplevel, head); err != nil {
		return nil, err
	}
	return out, nil
}

func blockListContains(list []*Block, b *Block) bool {
	for _, x := range list {
		if x == b {
			return true
		}
	}
	return false
}

// converge finds the point at which the consequent and alternative
// branches of a conditional rejoin, subtracting the parent scope's own
// dominance frontier from each branch's frontier first -- without that
// subtraction a break/continue inside one branch can make the frontiers
// diverge in a way that looks like an ambiguous converge point when it is
// not.
func converge(a, b *Block, front []*Block) (*Block, error) {
	var aFront, bFront []*Block
	for _, blk := range a.DomFront {
		if blk.Post == a.Post || blockListContains(front, blk) {
			continue
		}
		aFront = append(aFront, blk)
	}
	for _, blk := range b.DomFront {
		if blk.Post == b.Post || blockListContains(front, blk) {
			continue
		}
		bFront = append(bFront, blk)
	}

	switch {
	case len(aFront) == 0 && len(bFront) == 0:
		return nil, nil
	case len(aFront) == 1 && len(bFront) < 2:
		return aFront[0], nil
	case len(bFront) == 1 && len(aFront) < 2:
		return bFront[0], nil
	default:
		return nil, fmt.Errorf("ambiguous converge point for blocks at post %d and %d", a.Post, b.Post)
	}
}

// createNode consumes one block -- and, for a compound or branching block,
// everything nested beneath it -- appends the resulting node(s) to out,
// and returns the CFG block execution continues at afterward (nil at a
// genuine dead end: a return or an unconditional goto).
func createNode(ctx game.Context, out *[]*Node, parent *Block, head *Block, frontier []*Block) (*Block, error) {
	if head.InAst {
		return nil, fmt.Errorf("control-flow loop detected at block %d", head.Post)
	}
	head.InAst = true

	if head.Type == BlockCompound {
		var node *Node
		v := ctx.VOpOf(head.Head.Op)
		switch {
		case v == game.VOpDefProc && head.Head.Sub:
			node = &Node{Type: NodeSub, Address: head.Address, NumExpr: head.Head.Expr}
		case v == game.VOpDefProc:
			node = &Node{Type: NodeProcedure, Address: head.Address, NumExpr: head.Head.Expr}
		default:
			node = &Node{Type: NodeMenuEntry, Address: head.Address, Params: head.Head.Params}
		}
		*out = append(*out, node)
		if len(head.Blocks) > 0 {
			if err := createBlockAST(ctx, &node.Body, head, head.Blocks[0]); err != nil {
				return nil, err
			}
		}
		return head.Next, nil
	}

	if len(head.Statements) > 0 {
		*out = append(*out, &Node{Type: NodeStatements, Address: head.Address, Statements: head.Statements})
	}

	if head.End == nil {
		// Insert a synthetic fallthrough JMP so blocks can be freely
		// reordered; the simplifier removes almost all of these as
		// redundant.
		if head.Fallthrough != nil {
			end := &Statement{Op: game.OpJmp, Address: syntheticAddress, Addr: head.Fallthrough.Address}
			*out = append(*out, &Node{Type: NodeStatements, Address: syntheticAddress, Statements: []*Statement{end}})
		}
		return head.Fallthrough, nil
	}

	switch head.End.Op {
	case game.OpJz:
		if head.JumpTarget == nil || head.Fallthrough == nil {
			return nil, fmt.Errorf("conditional block missing jump target or fallthrough")
		}
		if blockListContains(head.DomFront, head) {
			node := &Node{Type: NodeLoop, Address: head.End.Address, Condition: head.End.Expr}
			*out = append(*out, node)
			if err := createBlockAST(ctx, &node.Body, parent, head.Fallthrough); err != nil {
				return nil, err
			}
			return head.JumpTarget, nil
		}
		node := &Node{Type: NodeCond, Address: head.End.Address, Condition: head.End.Expr}
		*out = append(*out, node)
		if head.JumpTarget == head.Fallthrough {
			return head.Fallthrough, nil
		}
		if err := createBlockAST(ctx, &node.Consequent, parent, head.Fallthrough); err != nil {
			return nil, err
		}
		if blockListContains(head.Fallthrough.DomFront, head.JumpTarget) || blockListContains(frontier, head.JumpTarget) {
			return head.JumpTarget, nil
		}
		if err := createBlockAST(ctx, &node.Alternative, parent, head.JumpTarget); err != nil {
			return nil, err
		}
		return converge(head.Fallthrough, head.JumpTarget, frontier)
	case game.OpJmp, game.OpEnd:
		*out = append(*out, &Node{Type: NodeStatements, Address: head.End.Address, Statements: []*Statement{head.End}})
		return nil, nil
	default:
		return nil, fmt.Errorf("unexpected statement as CFG edge: %v", head.End.Op)
	}
}

// walkFrom repeatedly calls createNode starting at head until the block it
// returns is nil or has entered the given frontier.
func walkFrom(ctx game.Context, out *[]*Node, parent *Block, head *Block, frontier []*Block) error {
	cur := head
	for {
		next, err := createNode(ctx, out, parent, cur, frontier)
		if err != nil {
			return err
		}
		if next == nil || blockListContains(frontier, next) {
			return nil
		}
		cur = next
	}
}

// createBlockAST walks from head until it reaches a block already in
// head's own dominance frontier, then appends any block head dominates
// that wasn't reached that way -- dead code or an irreducible tail --
// at the end, so nothing nested is silently dropped.
func createBlockAST(ctx game.Context, out *[]*Node, parent *Block, head *Block) error {
	frontier := head.DomFront
	if err := walkFrom(ctx, out, parent, head, frontier); err != nil {
		return err
	}
	for _, p := range head.Dom {
		if !p.InAst {
			if err := walkFrom(ctx, out, parent, p, frontier); err != nil {
				return err
			}
		}
	}
	return nil
}

// astTable maps a statement address to the AST node that begins there,
// used by the simplifier to resolve goto targets and mark them so the
// printer knows to emit a label.
type astTable map[uint32]*Node

func initAstTable(table astTable, block []*Node) error {
	for _, node := range block {
		if node.Address != syntheticAddress {
			if _, dup := table[node.Address]; dup {
				return fmt.Errorf("multiple AST nodes with same address 0x%08X", node.Address)
			}
			table[node.Address] = node
		}
		switch node.Type {
		case NodeCond:
			if err := initAstTable(table, node.Consequent); err != nil {
				return err
			}
			if err := initAstTable(table, node.Alternative); err != nil {
				return err
			}
		case NodeLoop, NodeProcedure, NodeSub, NodeMenuEntry:
			if err := initAstTable(table, node.Body); err != nil {
				return err
			}
		}
	}
	return nil
}

// SimplifyAST rewrites trailing JMP/END statement nodes into their
// structural equivalents: an eliminated fallthrough jump, a `continue`,
// a `break`, or (when none of those match) a goto whose target node is
// flagged so the printer can emit a label for it.
func SimplifyAST(toplevel []*Node) error {
	table := make(astTable)
	if err := initAstTable(table, toplevel); err != nil {
		return err
	}
	return simplifyBlock(table, toplevel, nil, nil, nil)
}

func simplifyBlock(table astTable, block []*Node, continuation, loopHead, loopBreak *Node) error {
	for i, node := range block {
		var next *Node
		if i+1 < len(block) {
			next = block[i+1]
		} else {
			next = continuation
		}
		if err := simplifyNode(table, node, next, loopHead, loopBreak); err != nil {
			return err
		}
	}
	return nil
}

func simplifyNode(table astTable, node *Node, continuation, loopHead, loopBreak *Node) error {
	switch node.Type {
	case NodeStatements:
		if len(node.Statements) == 0 {
			return fmt.Errorf("empty statements node")
		}
		stmt := node.Statements[len(node.Statements)-1]
		if stmt.Op == game.OpJmp {
			return simplifyJmp(table, node, stmt, continuation, loopHead, loopBreak)
		}
		if stmt.Op == game.OpEnd && continuation == nil {
			node.Statements = node.Statements[:len(node.Statements)-1]
		}
	case NodeCond:
		if err := simplifyBlock(table, node.Consequent, continuation, loopHead, loopBreak); err != nil {
			return err
		}
		return simplifyBlock(table, node.Alternative, continuation, loopHead, loopBreak)
	case NodeLoop:
		return simplifyBlock(table, node.Body, node, node, continuation)
	case NodeProcedure, NodeSub:
		return simplifyBlock(table, node.Body, nil, nil, nil)
	case NodeMenuEntry:
		return simplifyBlock(table, node.Body, nil, nil, nil)
	}
	return nil
}

func simplifyJmp(table astTable, node *Node, stmt *Statement, continuation, loopHead, loopBreak *Node) error {
	switch {
	case continuation != nil && stmt.Addr == continuation.Address:
		node.Statements = node.Statements[:len(node.Statements)-1]
	case loopHead != nil && stmt.Addr == loopHead.Address:
		node.Statements = nil
		node.Type = NodeContinue
	case loopBreak != nil && stmt.Addr == loopBreak.Address:
		node.Statements = nil
		node.Type = NodeBreak
	default:
		target, ok := table[stmt.Addr]
		if !ok {
			return fmt.Errorf("AST node lookup failed for 0x%08X", stmt.Addr)
		}
		target.IsGotoTarget = true
	}
	return nil
}
