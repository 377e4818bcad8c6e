package feature

import (
	"strconv"
	"strings"

	"github.com/rushteam/boostscore/core"
)

// TranslateLine 把一行稀疏格式翻译成 Vector。
//
// 行格式：以空白分隔的 token；第一个 token（label / id）被忽略，
// 其余每个 token 形如 slot:value，slot 通过索引翻译成特征名，value 解析为浮点数。
//
//	"+1 0:1.5 2:0.0"  + {0:"age", 2:"income"}  →  {age: 1.5, income: 0.0}
//
// slot 不在索引中是 CONFIG 错误（模型与索引不匹配，而非单行数据问题）；
// token 格式错误是 INVALID_INPUT 错误。NaN / Inf 按浮点数接受。
// 同一 slot 出现多次时后者覆盖前者。
func (idx *Index) TranslateLine(line string) (Vector, error) {
	tokens := strings.Fields(line)
	if len(tokens) <= 1 {
		return Vector{}, nil
	}
	fv := make(Vector, len(tokens)-1)
	for _, tok := range tokens[1:] {
		slotText, valueText, ok := strings.Cut(tok, ":")
		if !ok {
			return nil, core.Errorf(core.ModuleFeature, core.ErrorCodeInvalidInput,
				"feature: token %q is not slot:value", tok)
		}
		slot, err := strconv.Atoi(slotText)
		if err != nil {
			return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeInvalidInput, err,
				"feature: token %q has invalid slot", tok)
		}
		name, ok := idx.names[slot]
		if !ok {
			return nil, configErrorf("unknown feature slot %d", slot)
		}
		value, err := strconv.ParseFloat(valueText, 64)
		if err != nil {
			return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeInvalidInput, err,
				"feature: token %q has invalid value", tok)
		}
		fv[name] = value
	}
	return fv, nil
}

// FormatLine 是 TranslateLine 的逆操作：按 slot 升序输出 "label slot:value ..."。
// 不在索引中的特征被忽略。
func (idx *Index) FormatLine(label string, fv Vector) string {
	var b strings.Builder
	b.WriteString(label)
	for _, name := range idx.Names() {
		v, ok := fv[name]
		if !ok {
			continue
		}
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(idx.slots[name]))
		b.WriteByte(':')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}
