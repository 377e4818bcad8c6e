// Package loader 从不同位置读取模型（XGBoost JSON dump）与特征索引文档。
//
// 加载器只负责取回字节，解析交给 model / feature 包：
//
//	l := loader.NewHTTPLoader(5 * time.Second)
//	ens, err := loader.LoadEnsemble(ctx, l, "http://models.internal/ctr/v3/model.json")
package loader

import (
	"context"

	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/model"
)

// Loader 按引用（路径 / URL / 对象键 / store key）读取文档内容。
type Loader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Func 让普通函数实现 Loader。
type Func func(ctx context.Context, ref string) ([]byte, error)

func (f Func) Load(ctx context.Context, ref string) ([]byte, error) { return f(ctx, ref) }

// LoadEnsemble 读取并解析模型；每棵树在返回前都经过完整性校验。
func LoadEnsemble(ctx context.Context, l Loader, ref string) (*model.Ensemble, error) {
	data, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return model.DecodeXGBoost(data)
}

// LoadIndex 读取并解析特征索引。
func LoadIndex(ctx context.Context, l Loader, ref string) (*feature.Index, error) {
	data, err := l.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return feature.ParseIndex(data)
}
