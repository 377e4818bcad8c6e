package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rushteam/boostscore/core"
)

// xgbNode 对应 XGBoost dump_model(dump_format="json") 输出中的一个节点。
// 叶子只有 nodeid 和 leaf；内部节点的 children 内联了子树。
type xgbNode struct {
	NodeID         int        `json:"nodeid"`
	Depth          int        `json:"depth,omitempty"`
	Split          splitName  `json:"split,omitempty"`
	SplitCondition float64    `json:"split_condition,omitempty"`
	Yes            *int       `json:"yes,omitempty"`
	No             *int       `json:"no,omitempty"`
	Missing        *int       `json:"missing,omitempty"`
	Leaf           *float64   `json:"leaf,omitempty"`
	Children       []*xgbNode `json:"children,omitempty"`
}

// splitName 兼容 "split": "f3" 和 "split": 3 两种写法。
type splitName string

func (s *splitName) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = splitName(str)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("split must be a string or number: %w", err)
	}
	*s = splitName(n.String())
	return nil
}

func invalidModelf(format string, args ...any) error {
	return core.Errorf(core.ModuleModel, core.ErrorCodeInvalidInput, "model: "+format, args...)
}

// LoadXGBoost 从本地文件加载 XGBoost JSON dump。
//
// 用法：
//
//	ens, err := model.LoadXGBoost("python/model/xgb_dump.json")
//	if err != nil {
//	    return err
//	}
//	p, err := ens.Predict(map[string]float64{"ctr": 0.15})
func LoadXGBoost(path string) (*Ensemble, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()
	return ParseXGBoost(f)
}

// DecodeXGBoost 从内存中的 JSON 解析模型。
func DecodeXGBoost(data []byte) (*Ensemble, error) {
	return ParseXGBoost(bytes.NewReader(data))
}

// ParseXGBoost 解析一个 JSON 数组，每个元素为一棵树的根节点。
// 每棵树都会经过 Validate，结构损坏的模型在加载时即失败。
// 文档为 null 或数组后还有多余内容时返回 INVALID_INPUT；空数组是零棵树的合法模型。
func ParseXGBoost(r io.Reader) (*Ensemble, error) {
	var roots []*xgbNode
	dec := json.NewDecoder(r)
	if err := dec.Decode(&roots); err != nil {
		return nil, core.Wrap(core.ModuleModel, core.ErrorCodeInvalidInput, err, "model: decode xgboost json")
	}
	if roots == nil {
		return nil, invalidModelf("document must be an array of trees, got null")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, invalidModelf("unexpected data after tree array")
	}

	trees := make([]*Tree, 0, len(roots))
	for i, root := range roots {
		if root == nil {
			return nil, invalidModelf("tree %d: null root", i)
		}
		t, err := buildTree(root)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		trees = append(trees, t)
	}
	return NewEnsemble(trees...), nil
}

// buildTree 把内联的嵌套子树展开成按 id 索引的 arena。
// 同一 id 在嵌套结构中出现多次时内容必须一致。
func buildTree(root *xgbNode) (*Tree, error) {
	seen := make(map[int]Node)
	order := make([]int, 0, 8)

	var flatten func(x *xgbNode) error
	flatten = func(x *xgbNode) error {
		n, err := x.toNode()
		if err != nil {
			return err
		}
		if prev, ok := seen[n.ID]; ok {
			if prev != n {
				return integrityErrorf("conflicting definitions for node id %d", n.ID)
			}
		} else {
			seen[n.ID] = n
			order = append(order, n.ID)
		}
		for _, c := range x.Children {
			if c == nil {
				return invalidModelf("node %d: null child", x.NodeID)
			}
			if err := flatten(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := flatten(root); err != nil {
		return nil, err
	}

	nodes := make([]Node, 0, len(order))
	for _, id := range order {
		nodes = append(nodes, seen[id])
	}
	return NewTree(root.NodeID, nodes...)
}

func (x *xgbNode) toNode() (Node, error) {
	if x.Leaf != nil {
		n := Leaf(x.NodeID, *x.Leaf)
		n.Depth = x.Depth
		return n, nil
	}
	if x.Split == "" {
		return Node{}, invalidModelf("node %d: neither leaf nor split", x.NodeID)
	}
	if x.Yes == nil || x.No == nil || x.Missing == nil {
		return Node{}, invalidModelf("node %d: split node requires yes, no and missing", x.NodeID)
	}
	n := Split(x.NodeID, string(x.Split), x.SplitCondition, *x.Yes, *x.No, *x.Missing)
	n.Depth = x.Depth
	return n, nil
}

// MarshalJSON 以 XGBoost dump 的嵌套形式输出模型（children 只含直接子节点）。
func (e *Ensemble) MarshalJSON() ([]byte, error) {
	roots := make([]*xgbNode, 0, len(e.trees))
	for i, t := range e.trees {
		root, err := t.toXGB(t.root, len(t.nodes))
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		roots = append(roots, root)
	}
	return json.Marshal(roots)
}

func (t *Tree) toXGB(id, budget int) (*xgbNode, error) {
	n, ok := t.Node(id)
	if !ok {
		return nil, integrityErrorf("missing node id %d", id)
	}
	x := &xgbNode{NodeID: n.ID, Depth: n.Depth}
	if n.IsLeaf() {
		v := n.Value
		x.Leaf = &v
		return x, nil
	}
	if budget == 0 {
		return nil, integrityErrorf("cycle detected at node %d", n.ID)
	}
	yes, no, missing := n.Yes, n.No, n.Missing
	x.Split = splitName(n.Feature)
	x.SplitCondition = n.Threshold
	x.Yes, x.No, x.Missing = &yes, &no, &missing
	for _, c := range uniqueIDs(yes, no, missing) {
		child, err := t.toXGB(c, budget-1)
		if err != nil {
			return nil, err
		}
		x.Children = append(x.Children, child)
	}
	return x, nil
}

func uniqueIDs(ids ...int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		dup := false
		for _, o := range out {
			if o == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

// MarshalJSON 让 splitName 始终以字符串输出；纯数字名称同样输出为字符串。
func (s splitName) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}
