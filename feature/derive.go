package feature

import (
	"sort"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/pkg/dsl"
)

// Deriver 在打分前按 CEL 表达式计算派生特征，写入特征向量的副本。
//
// 例如训练时使用了 ctr = clicks / impressions，而线上只有原始计数：
//
//	d, err := feature.NewDeriver(map[string]string{
//	    "ctr": "has(features.clicks) && has(features.impressions) ? features.clicks / features.impressions : 0.0",
//	})
//
// 表达式求值失败（例如引用了缺失的特征）时该派生特征不写入，保持缺失语义，交给树的 missing 分支。
// 派生特征按名称顺序计算，只能引用原始特征，不能引用其他派生特征。
type Deriver struct {
	names    []string
	programs []*dsl.Program
}

// NewDeriver 编译所有表达式；任何一个编译失败都返回 CONFIG 错误。
func NewDeriver(exprs map[string]string) (*Deriver, error) {
	names := make([]string, 0, len(exprs))
	for name := range exprs {
		names = append(names, name)
	}
	sort.Strings(names)

	d := &Deriver{names: names, programs: make([]*dsl.Program, len(names))}
	for i, name := range names {
		prg, err := dsl.Compile(exprs[name])
		if err != nil {
			return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeConfig, err, "feature: derived feature %q", name)
		}
		d.programs[i] = prg
	}
	return d, nil
}

// Len 返回派生特征数量。
func (d *Deriver) Len() int { return len(d.names) }

// Apply 返回包含派生特征的新向量，不修改输入。
// 返回值第二项为求值失败而被跳过的派生特征名。
func (d *Deriver) Apply(fv Vector) (Vector, []string) {
	if d == nil || len(d.names) == 0 {
		return fv, nil
	}
	out := make(Vector, len(fv)+len(d.names))
	for k, v := range fv {
		out[k] = v
	}
	var skipped []string
	for i, name := range d.names {
		v, err := d.programs[i].EvalFloat(fv)
		if err != nil {
			skipped = append(skipped, name)
			continue
		}
		out[name] = v
	}
	return out, skipped
}
