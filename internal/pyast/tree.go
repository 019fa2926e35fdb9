// Package pyast turns Python source into a read-only syntax tree that the
// analysis passes walk.
//
// Nodes live in a single arena indexed by NodeID. IDs are handed out in
// pre-order, so every subtree occupies the contiguous range [id, End] and
// comparing two IDs tells which node starts first. Each node records the ID
// of its parent, which replaces parent pointers on the nodes themselves.
package pyast

import "fmt"

// NodeID indexes Tree.Nodes.
type NodeID int32

// NoNode marks an absent child or the parent of the module.
const NoNode NodeID = -1

// Kind tags the variant a Node represents and decides which slots are set.
type Kind int

const (
	KindModule Kind = iota
	KindFunctionDef
	KindClassDef
	KindAssign
	KindAnnAssign
	KindAugAssign
	KindDelete
	KindExpr
	KindReturn
	KindBreak
	KindContinue
	KindPass
	KindRaise
	KindIf
	KindFor
	KindWhile
	KindTry
	KindExceptHandler
	KindWith
	KindCall
	KindName
	KindAttribute
	KindSubscript
	KindList
	KindDict
	KindSet
	KindTuple
	KindConstant
	KindLambda
	KindOther

	kindCount
)

var kindNames = [kindCount]string{
	KindModule:        "Module",
	KindFunctionDef:   "FunctionDef",
	KindClassDef:      "ClassDef",
	KindAssign:        "Assign",
	KindAnnAssign:     "AnnAssign",
	KindAugAssign:     "AugAssign",
	KindDelete:        "Delete",
	KindExpr:          "Expr",
	KindReturn:        "Return",
	KindBreak:         "Break",
	KindContinue:      "Continue",
	KindPass:          "Pass",
	KindRaise:         "Raise",
	KindIf:            "If",
	KindFor:           "For",
	KindWhile:         "While",
	KindTry:           "Try",
	KindExceptHandler: "ExceptHandler",
	KindWith:          "With",
	KindCall:          "Call",
	KindName:          "Name",
	KindAttribute:     "Attribute",
	KindSubscript:     "Subscript",
	KindList:          "List",
	KindDict:          "Dict",
	KindSet:           "Set",
	KindTuple:         "Tuple",
	KindConstant:      "Constant",
	KindLambda:        "Lambda",
	KindOther:         "Other",
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// IsStatement reports whether nodes of this kind appear in statement lists.
func (k Kind) IsStatement() bool {
	switch k {
	case KindFunctionDef, KindClassDef, KindAssign, KindAnnAssign, KindAugAssign,
		KindDelete, KindExpr, KindReturn, KindBreak, KindContinue, KindPass,
		KindRaise, KindIf, KindFor, KindWhile, KindTry, KindWith:
		return true
	default:
		return false
	}
}

// ParamKind separates the slots of a parameter list.
type ParamKind int

const (
	ParamPositional ParamKind = iota
	ParamVarArgs
	ParamKeywordOnly
	ParamKwArgs
)

// Param is one entry of a function's parameter list.
type Param struct {
	Name    string
	Kind    ParamKind
	Line    int
	Default NodeID
}

// Node is one syntax tree node. Which slots are meaningful depends on Kind:
//
//	FunctionDef   Name, Params, Body
//	Lambda        Params (names only)
//	ClassDef      Name, Body
//	Assign        Targets, Value
//	AnnAssign     Targets (one), Value (may be NoNode)
//	AugAssign     Targets (one), Value
//	Delete        Targets
//	Expr          Value
//	If, While     Test, Body, Orelse
//	For           Targets (one), Value (iterable), Body, Orelse
//	Try           Body, Handlers, Orelse, Finally
//	ExceptHandler Type (NoNode for a bare except), Body
//	With          Body
//	Call          Func
//	Name          Name
//	Attribute     Object, Name (the attribute)
//	Subscript     Object
//	Constant      Name (literal text for True/False/None and numbers)
//	Other         Name (tree-sitter node type)
//
// Children lists every direct child in source order regardless of kind.
type Node struct {
	ID       NodeID
	Kind     Kind
	Line     int
	Column   int
	Parent   NodeID
	End      NodeID
	Children []NodeID

	Name     string
	Params   []Param
	Body     []NodeID
	Orelse   []NodeID
	Handlers []NodeID
	Finally  []NodeID
	Targets  []NodeID
	Value    NodeID
	Test     NodeID
	Func     NodeID
	Object   NodeID
	Type     NodeID
}

// Comment is a source comment with its 1-based line.
type Comment struct {
	Line int
	Text string
}

// Tree is an immutable parsed module. Nodes[0] is the module.
type Tree struct {
	Nodes    []Node
	Comments []Comment
	Source   []byte
}

// Root returns the module node ID.
func (t *Tree) Root() NodeID {
	return 0
}

// Node returns the node with the given ID.
func (t *Tree) Node(id NodeID) *Node {
	return &t.Nodes[id]
}

// Len returns the number of nodes in the tree.
func (t *Tree) Len() int {
	return len(t.Nodes)
}

// Contains reports whether inner lies in the subtree rooted at outer.
func (t *Tree) Contains(outer, inner NodeID) bool {
	if outer == NoNode || inner == NoNode {
		return false
	}
	return outer <= inner && inner <= t.Nodes[outer].End
}

// Inspect visits the subtree rooted at id in pre-order. Returning false from
// fn skips the children of that node.
func (t *Tree) Inspect(id NodeID, fn func(n *Node) bool) {
	if id == NoNode {
		return
	}
	end := t.Nodes[id].End
	for cur := id; cur <= end; {
		n := &t.Nodes[cur]
		if fn(n) {
			cur++
		} else {
			cur = n.End + 1
		}
	}
}

// InspectAll visits every node of every subtree in ids.
func (t *Tree) InspectAll(ids []NodeID, fn func(n *Node) bool) {
	for _, id := range ids {
		t.Inspect(id, fn)
	}
}

// Enclosing returns the nearest proper ancestor of id with one of the given
// kinds, or NoNode.
func (t *Tree) Enclosing(id NodeID, kinds ...Kind) NodeID {
	for cur := t.Nodes[id].Parent; cur != NoNode; cur = t.Nodes[cur].Parent {
		for _, k := range kinds {
			if t.Nodes[cur].Kind == k {
				return cur
			}
		}
	}
	return NoNode
}

// NameOf returns the identifier of a Name node, or "" for anything else.
func (t *Tree) NameOf(id NodeID) string {
	if id == NoNode {
		return ""
	}
	n := &t.Nodes[id]
	if n.Kind != KindName {
		return ""
	}
	return n.Name
}

// CalleeName returns the bare name a Call invokes, or "" when the callee is
// not a plain name.
func (t *Tree) CalleeName(call NodeID) string {
	n := &t.Nodes[call]
	if n.Kind != KindCall {
		return ""
	}
	return t.NameOf(n.Func)
}

// MethodCall splits a call of the form receiver.method(...) into the
// receiver's bare name and the method name. Either may be empty.
func (t *Tree) MethodCall(call NodeID) (receiver, method string) {
	n := &t.Nodes[call]
	if n.Kind != KindCall || n.Func == NoNode {
		return "", ""
	}
	fn := &t.Nodes[n.Func]
	if fn.Kind != KindAttribute {
		return "", ""
	}
	return t.NameOf(fn.Object), fn.Name
}

// IsTrue reports whether id is the literal True.
func (t *Tree) IsTrue(id NodeID) bool {
	if id == NoNode {
		return false
	}
	n := &t.Nodes[id]
	return n.Kind == KindConstant && n.Name == "True"
}
