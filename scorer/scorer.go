// Package scorer 把 model.Ensemble 包装成打分器：单条打分、批量打分（可并发）、
// 以及按行读取稀疏格式输入的流式打分。
//
// 模型与特征索引在构造后不可变，同一个 Scorer 可被任意多个 goroutine 并发使用。
package scorer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/model"
)

// ErrNoFeatureIndex 表示在没有特征索引的打分器上请求了稀疏格式打分。
var ErrNoFeatureIndex = core.NewDomainError(core.ModuleScorer, core.ErrorCodeConfig,
	"scorer: sparse input requires a feature index")

// lineTranslator 把一行稀疏格式翻译成特征向量。
type lineTranslator interface {
	TranslateLine(line string) (feature.Vector, error)
}

// noIndex 是未配置特征索引时的翻译器，任何调用都返回 ErrNoFeatureIndex。
type noIndex struct{}

func (noIndex) TranslateLine(string) (feature.Vector, error) { return nil, ErrNoFeatureIndex }

// Scorer 是集成模型的打分器。
type Scorer struct {
	ens        *model.Ensemble
	translator lineTranslator
	deriver    *feature.Deriver
	workers    int
	logger     *slog.Logger
}

// Option 配置 Scorer
type Option func(*Scorer)

// WithFeatureIndex 安装特征索引，启用稀疏格式打分（ScoreStream / ScoreReader）。
func WithFeatureIndex(idx *feature.Index) Option {
	return func(s *Scorer) {
		if idx != nil {
			s.translator = idx
		}
	}
}

// WithWorkers 设置 ScoreMany 的并发度，<= 1 时顺序执行。
func WithWorkers(n int) Option {
	return func(s *Scorer) { s.workers = n }
}

// WithLogger 设置日志
func WithLogger(l *slog.Logger) Option {
	return func(s *Scorer) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDeriver 在打分前为每条特征向量计算派生特征。
func WithDeriver(d *feature.Deriver) Option {
	return func(s *Scorer) { s.deriver = d }
}

// New 创建打分器；ens 为 nil 时返回 CONFIG 错误。零棵树的模型合法，所有打分为 0.5。
//
// 用法：
//
//	ens, _ := model.LoadXGBoost("model.json")
//	idx, _ := feature.LoadIndex("featmap.json")
//	s, err := scorer.New(ens, scorer.WithFeatureIndex(idx), scorer.WithWorkers(4))
func New(ens *model.Ensemble, opts ...Option) (*Scorer, error) {
	if ens == nil {
		return nil, core.Errorf(core.ModuleScorer, core.ErrorCodeConfig, "scorer: ensemble is required")
	}
	s := &Scorer{
		ens:        ens,
		translator: noIndex{},
		workers:    1,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workers < 1 {
		s.workers = 1
	}
	return s, nil
}

// Ensemble 返回底层模型。
func (s *Scorer) Ensemble() *model.Ensemble { return s.ens }

// CanTranslate 报告是否配置了特征索引。
func (s *Scorer) CanTranslate() bool {
	_, stub := s.translator.(noIndex)
	return !stub
}

// Workers 返回批量打分的并发度。
func (s *Scorer) Workers() int { return s.workers }

// ScoreOne 对单条特征向量打分，返回 sigmoid(Σ 叶子值)。
func (s *Scorer) ScoreOne(fv feature.Vector) (float64, error) {
	return s.score(fv, modeOne)
}

func (s *Scorer) score(fv feature.Vector, mode string) (float64, error) {
	start := time.Now()
	if s.deriver != nil {
		var skipped []string
		fv, skipped = s.deriver.Apply(fv)
		if len(skipped) > 0 {
			s.logger.Debug("derived features skipped", "features", skipped)
		}
	}
	p, err := s.ens.Predict(fv)
	if err != nil {
		observeError(err)
		return 0, err
	}
	scoreLatency.Observe(time.Since(start).Seconds())
	instancesScored.WithLabelValues(mode).Inc()
	return p, nil
}

// ScoreMany 对一批特征向量打分，结果与输入一一对应、顺序一致。
// 任意一条失败时整批失败，不返回部分结果。
func (s *Scorer) ScoreMany(ctx context.Context, batch []feature.Vector) ([]float64, error) {
	out := make([]float64, len(batch))
	if len(batch) == 0 {
		return out, nil
	}

	if s.workers <= 1 || len(batch) == 1 {
		for i, fv := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			p, err := s.score(fv, modeBatch)
			if err != nil {
				return nil, fmt.Errorf("instance %d: %w", i, err)
			}
			out[i] = p
		}
		return out, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workers)
	for i, fv := range batch {
		i, fv := i, fv
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			p, err := s.score(fv, modeBatch)
			if err != nil {
				return fmt.Errorf("instance %d: %w", i, err)
			}
			out[i] = p
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Score 按输入类型分派：
//   - feature.Vector / map[string]float64：单条
//   - []feature.Vector / []map[string]float64：批量
//   - io.Reader：稀疏格式流
//
// 其他类型在打分前返回 INVALID_INPUT 错误。
func (s *Scorer) Score(ctx context.Context, input any) ([]float64, error) {
	switch in := input.(type) {
	case feature.Vector:
		p, err := s.ScoreOne(in)
		if err != nil {
			return nil, err
		}
		return []float64{p}, nil
	case []feature.Vector:
		return s.ScoreMany(ctx, in)
	case io.Reader:
		return s.ScoreReader(ctx, in)
	default:
		err := core.Errorf(core.ModuleScorer, core.ErrorCodeInvalidInput,
			"scorer: unsupported input type %T", input)
		observeError(err)
		return nil, err
	}
}
