package feature

import "encoding/json"

// DecodeVector 把 JSON 对象解析为 Vector。
// 值为 null 的特征视为缺失（不写入向量），交给树的 missing 分支，不会被当成 0。
// 文档本身为 null 时返回空向量。
func DecodeVector(data []byte) (Vector, error) {
	var raw map[string]*float64
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return DropNulls(raw), nil
}

// DropNulls 去掉值为 nil 的条目，返回非 nil 的 Vector。
func DropNulls(raw map[string]*float64) Vector {
	fv := make(Vector, len(raw))
	for k, v := range raw {
		if v != nil {
			fv[k] = *v
		}
	}
	return fv
}
