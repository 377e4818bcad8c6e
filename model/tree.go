package model

import (
	"fmt"
	"strings"

	"github.com/rushteam/boostscore/core"
)

// ErrModelIntegrity 表示模型结构损坏：子节点 id 无法在树内解析、根节点缺失或存在环。
// 这是模型缺陷而不是数据问题，打分必须中止。
var ErrModelIntegrity = core.NewDomainError(core.ModuleModel, core.ErrorCodeModelIntegrity, "model: integrity error")

func integrityErrorf(format string, args ...any) error {
	return core.Errorf(core.ModuleModel, core.ErrorCodeModelIntegrity, "model: "+format, args...)
}

// Tree 是一棵不可变的提升树，节点以 arena 形式按 id 索引。
// 内部节点只保存三个子节点 id，在遍历时通过 index 以 O(1) 解析。
type Tree struct {
	root  int
	nodes []Node
	index map[int]int
}

// NewTree 以根节点 id 和节点集合构造一棵树。
// 重复 id 或根节点不存在返回 ErrModelIntegrity；子节点引用在 Validate / Evaluate 时检查。
func NewTree(rootID int, nodes ...Node) (*Tree, error) {
	t := &Tree{
		root:  rootID,
		nodes: make([]Node, 0, len(nodes)),
		index: make(map[int]int, len(nodes)),
	}
	for _, n := range nodes {
		if n.Kind != NodeSplit && n.Kind != NodeLeaf {
			return nil, integrityErrorf("node %d has unknown kind %v", n.ID, n.Kind)
		}
		if _, dup := t.index[n.ID]; dup {
			return nil, integrityErrorf("duplicate node id %d", n.ID)
		}
		t.index[n.ID] = len(t.nodes)
		t.nodes = append(t.nodes, n)
	}
	if _, ok := t.index[rootID]; !ok {
		return nil, integrityErrorf("root node %d not found", rootID)
	}
	return t, nil
}

// MustTree 与 NewTree 相同，出错时 panic。用于测试和静态构造的模型。
func MustTree(rootID int, nodes ...Node) *Tree {
	t, err := NewTree(rootID, nodes...)
	if err != nil {
		panic(err)
	}
	return t
}

// RootID 返回根节点 id。
func (t *Tree) RootID() int { return t.root }

// Len 返回树中节点数。
func (t *Tree) Len() int { return len(t.nodes) }

// Node 按 id 查找节点。
func (t *Tree) Node(id int) (Node, bool) {
	i, ok := t.index[id]
	if !ok {
		return Node{}, false
	}
	return t.nodes[i], true
}

// Evaluate 从根节点出发单次向下遍历，返回到达叶子的 Value。
//
// 规则：
//   - 特征存在且 v < Threshold → Yes；否则 → No（相等走 No）
//   - 特征不存在 → Missing，与阈值无关
//   - 子节点 id 无法解析 → ErrModelIntegrity，不会被当作叶子或跳过
//
// 单叶子的树不做任何比较直接返回。访问节点数超过树的大小说明存在环，同样视为模型损坏。
func (t *Tree) Evaluate(features map[string]float64) (float64, error) {
	i, ok := t.index[t.root]
	if !ok {
		return 0, integrityErrorf("root node %d not found", t.root)
	}
	for steps := 0; ; steps++ {
		n := &t.nodes[i]
		if n.Kind == NodeLeaf {
			return n.Value, nil
		}
		if steps >= len(t.nodes) {
			return 0, integrityErrorf("cycle detected at node %d", n.ID)
		}
		childID := n.next(features)
		i, ok = t.index[childID]
		if !ok {
			return 0, integrityErrorf("missing node id %d (referenced by node %d)", childID, n.ID)
		}
	}
}

// Validate 检查所有内部节点引用的子节点都能解析，且从根节点出发不存在环。
func (t *Tree) Validate() error {
	for i := range t.nodes {
		n := &t.nodes[i]
		if n.IsLeaf() {
			continue
		}
		for _, c := range n.children() {
			if _, ok := t.index[c]; !ok {
				return integrityErrorf("missing node id %d (referenced by node %d)", c, n.ID)
			}
		}
	}

	const (
		unseen = iota
		onPath
		done
	)
	state := make([]uint8, len(t.nodes))
	var visit func(i int) error
	visit = func(i int) error {
		switch state[i] {
		case onPath:
			return integrityErrorf("cycle detected at node %d", t.nodes[i].ID)
		case done:
			return nil
		}
		state[i] = onPath
		n := &t.nodes[i]
		if !n.IsLeaf() {
			for _, c := range n.children() {
				if err := visit(t.index[c]); err != nil {
					return err
				}
			}
		}
		state[i] = done
		return nil
	}
	return visit(t.index[t.root])
}

// Depth 返回从根到最深叶子的边数（单叶子树为 0）。调用方应先 Validate。
func (t *Tree) Depth() int {
	var depth func(i, budget int) int
	depth = func(i, budget int) int {
		n := &t.nodes[i]
		if n.IsLeaf() || budget == 0 {
			return 0
		}
		best := 0
		for _, c := range n.children() {
			ci, ok := t.index[c]
			if !ok {
				continue
			}
			if d := depth(ci, budget-1) + 1; d > best {
				best = d
			}
		}
		return best
	}
	return depth(t.index[t.root], len(t.nodes))
}

// String 按缩进打印树结构，便于调试。
func (t *Tree) String() string {
	var b strings.Builder
	var walk func(id, level, budget int)
	walk = func(id, level, budget int) {
		n, ok := t.Node(id)
		fmt.Fprintf(&b, "%s", strings.Repeat("\t", level))
		if !ok {
			fmt.Fprintf(&b, "%d:<missing>\n", id)
			return
		}
		fmt.Fprintf(&b, "%s\n", n.String())
		if n.IsLeaf() || budget == 0 {
			return
		}
		for _, c := range uniqueIDs(n.Yes, n.No, n.Missing) {
			walk(c, level+1, budget-1)
		}
	}
	walk(t.root, 0, len(t.nodes))
	return b.String()
}
