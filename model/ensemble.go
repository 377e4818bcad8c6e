package model

import (
	"fmt"
	"math"
)

// Ensemble 是梯度提升树模型：有序的一组树，预测值为各树叶子值之和经 Sigmoid 变换后的概率。
//
// 预测原理：
// 1. 逐棵树遍历求叶子值: margin = sum(Tree_i(features))，初始值 0.0
// 2. Sigmoid 变换: P = 1 / (1 + exp(-margin))
//
// 树的顺序不影响结果，但会保留以便复现和调试。构造后不可变，可并发只读使用。
type Ensemble struct {
	trees []*Tree
}

// NewEnsemble 构造模型。零棵树是合法的，任何输入的预测值都是 0.5。
func NewEnsemble(trees ...*Tree) *Ensemble {
	cp := make([]*Tree, 0, len(trees))
	for _, t := range trees {
		if t != nil {
			cp = append(cp, t)
		}
	}
	return &Ensemble{trees: cp}
}

func (e *Ensemble) Name() string { return "gbdt" }

// Len 返回树的数量。
func (e *Ensemble) Len() int { return len(e.trees) }

// Tree 返回第 i 棵树。
func (e *Ensemble) Tree(i int) *Tree { return e.trees[i] }

// Validate 校验每棵树的结构。
func (e *Ensemble) Validate() error {
	for i, t := range e.trees {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}

// Margin 返回 Sigmoid 之前的原始分数（所有树叶子值之和）。
func (e *Ensemble) Margin(features map[string]float64) (float64, error) {
	sum := 0.0
	for i, t := range e.trees {
		v, err := t.Evaluate(features)
		if err != nil {
			return 0, fmt.Errorf("tree %d: %w", i, err)
		}
		sum += v
	}
	return sum, nil
}

// Predict 返回 (0,1) 之间的概率。NaN / Inf 按浮点语义传播，不视为错误。
func (e *Ensemble) Predict(features map[string]float64) (float64, error) {
	margin, err := e.Margin(features)
	if err != nil {
		return 0, err
	}
	return Sigmoid(margin), nil
}

// PredictLeaves 返回每棵树的叶子值，顺序与树一致，用于解释和调试。
func (e *Ensemble) PredictLeaves(features map[string]float64) ([]float64, error) {
	out := make([]float64, len(e.trees))
	for i, t := range e.trees {
		v, err := t.Evaluate(features)
		if err != nil {
			return nil, fmt.Errorf("tree %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// Sigmoid 是逻辑函数 1 / (1 + e^-x)。
func Sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

var _ RankModel = (*Ensemble)(nil)
