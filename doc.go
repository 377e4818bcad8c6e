// Package boostscore 是梯度提升树（XGBoost JSON dump）的推理工具包。
//
// 设计要点：
// - Arena-first: 每棵树是按节点 id 索引的数组，子节点 O(1) 解析，结构损坏在加载时即报错
// - Missing-aware: 缺失特征走 missing 分支，阈值相等走 no 分支
// - 并发安全: 模型构造后不可变，同一个 Scorer 可被任意 goroutine 共享
package boostscore

import (
	"context"

	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/loader"
	"github.com/rushteam/boostscore/model"
	"github.com/rushteam/boostscore/scorer"
)

// 轻量 facade：便于用户直接 import "boostscore" 使用核心抽象。
type (
	Ensemble = model.Ensemble
	Vector   = feature.Vector
	Index    = feature.Index
	Scorer   = scorer.Scorer
)

// Open 从本地文件加载模型与（可选的）特征索引并创建打分器，indexPath 为空时不启用稀疏格式。
//
//	s, err := boostscore.Open(ctx, "model.json", "featmap.json", scorer.WithWorkers(4))
//	p, err := s.ScoreOne(boostscore.Vector{"age": 31})
func Open(ctx context.Context, modelPath, indexPath string, opts ...scorer.Option) (*Scorer, error) {
	l := loader.NewFileLoader("")
	ens, err := loader.LoadEnsemble(ctx, l, modelPath)
	if err != nil {
		return nil, err
	}
	if indexPath != "" {
		idx, err := loader.LoadIndex(ctx, l, indexPath)
		if err != nil {
			return nil, err
		}
		opts = append([]scorer.Option{scorer.WithFeatureIndex(idx)}, opts...)
	}
	return scorer.New(ens, opts...)
}
