// Package feature 提供特征向量、特征索引（特征名 ↔ slot 双向映射）、
// 稀疏行格式翻译以及特征来源（Store、CEL 派生特征）。
package feature

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rushteam/boostscore/core"
)

// Vector 是特征名 → 特征值。某个特征缺失是合法状态，由树的 missing 分支处理。
type Vector = map[string]float64

// Index 是特征名与 slot（小的非负整数）之间的双射，构造后不可变。
// 仅用于把稀疏行格式（slot:value）翻译成按特征名索引的 Vector。
type Index struct {
	slots map[string]int
	names map[int]string
}

func configErrorf(format string, args ...any) error {
	return core.Errorf(core.ModuleFeature, core.ErrorCodeConfig, "feature: "+format, args...)
}

// NewIndex 由 特征名 → slot 映射构造索引，并一次性建立反向映射。
// slot 为负数或多个特征名映射到同一 slot 时返回 CONFIG 错误。
func NewIndex(nameToSlot map[string]int) (*Index, error) {
	idx := &Index{
		slots: make(map[string]int, len(nameToSlot)),
		names: make(map[int]string, len(nameToSlot)),
	}
	// 按名称排序，保证冲突报错信息稳定
	names := make([]string, 0, len(nameToSlot))
	for name := range nameToSlot {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		slot := nameToSlot[name]
		if slot < 0 {
			return nil, configErrorf("feature %q has negative slot %d", name, slot)
		}
		if other, dup := idx.names[slot]; dup {
			return nil, configErrorf("slot %d is mapped by both %q and %q", slot, other, name)
		}
		idx.slots[name] = slot
		idx.names[slot] = name
	}
	return idx, nil
}

// ParseIndex 解析 JSON 对象形式的特征索引，例如 {"age": 0, "income": 2}。
func ParseIndex(data []byte) (*Index, error) {
	var raw map[string]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeInvalidInput, err, "feature: decode feature index")
	}
	return NewIndex(raw)
}

// LoadIndex 从本地 JSON 文件加载特征索引。
func LoadIndex(path string) (*Index, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read feature index file: %w", err)
	}
	return ParseIndex(data)
}

// Len 返回特征数量。
func (idx *Index) Len() int { return len(idx.slots) }

// Slot 返回特征名对应的 slot。
func (idx *Index) Slot(name string) (int, bool) {
	s, ok := idx.slots[name]
	return s, ok
}

// Name 返回 slot 对应的特征名。
func (idx *Index) Name(slot int) (string, bool) {
	n, ok := idx.names[slot]
	return n, ok
}

// Names 按 slot 升序返回所有特征名。
func (idx *Index) Names() []string {
	slots := make([]int, 0, len(idx.names))
	for s := range idx.names {
		slots = append(slots, s)
	}
	sort.Ints(slots)
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = idx.names[s]
	}
	return out
}

// MarshalJSON 输出 特征名 → slot 的 JSON 对象。
func (idx *Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(idx.slots)
}
