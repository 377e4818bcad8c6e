package model

import "fmt"

// NodeKind 区分节点的两种形态，构造时确定一次，遍历时不再探测字段。
type NodeKind uint8

const (
	NodeSplit NodeKind = iota + 1 // 内部节点：按 Feature < Threshold 分裂
	NodeLeaf                      // 叶子节点：输出 Value
)

func (k NodeKind) String() string {
	switch k {
	case NodeSplit:
		return "split"
	case NodeLeaf:
		return "leaf"
	default:
		return fmt.Sprintf("NodeKind(%d)", uint8(k))
	}
}

// Node 是树中的一个节点。id 仅在所在树内唯一。
//
// Split 节点使用 Feature / Threshold / Yes / No / Missing；
// Leaf 节点只使用 Value。
type Node struct {
	ID    int
	Kind  NodeKind
	Depth int // 来自模型文件，遍历不使用

	Feature   string
	Threshold float64
	Yes       int // feature < threshold
	No        int // feature >= threshold（含相等）
	Missing   int // feature 不存在

	Value float64
}

// Split 构造一个内部节点。
func Split(id int, feature string, threshold float64, yes, no, missing int) Node {
	return Node{
		ID:        id,
		Kind:      NodeSplit,
		Feature:   feature,
		Threshold: threshold,
		Yes:       yes,
		No:        no,
		Missing:   missing,
	}
}

// Leaf 构造一个叶子节点。
func Leaf(id int, value float64) Node {
	return Node{ID: id, Kind: NodeLeaf, Value: value}
}

// IsLeaf 返回节点是否为叶子。
func (n *Node) IsLeaf() bool { return n.Kind == NodeLeaf }

// children 返回内部节点引用的子节点 id（yes, no, missing）。
func (n *Node) children() [3]int {
	return [3]int{n.Yes, n.No, n.Missing}
}

// next 按特征值选择下一跳的子节点 id。
// 相等落入 No 分支；NaN 与任何阈值比较均为 false，同样落入 No。
func (n *Node) next(features map[string]float64) int {
	v, ok := features[n.Feature]
	if !ok {
		return n.Missing
	}
	if v < n.Threshold {
		return n.Yes
	}
	return n.No
}

func (n *Node) String() string {
	if n.IsLeaf() {
		return fmt.Sprintf("%d:leaf=%g", n.ID, n.Value)
	}
	return fmt.Sprintf("%d:[%s<%g] yes=%d,no=%d,missing=%d",
		n.ID, n.Feature, n.Threshold, n.Yes, n.No, n.Missing)
}
