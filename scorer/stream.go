package scorer

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// maxLineSize 是稀疏格式单行的最大长度。
const maxLineSize = 1 << 20

// ScoreStream 逐行读取稀疏格式输入，按到达顺序打分并回调 emit(行序号, 分数)。
//
// 未配置特征索引时在读取任何输入之前返回 ErrNoFeatureIndex。
// 任意一行翻译或打分失败（错误中带行号）、emit 返回错误或 ctx 取消时，流立即结束。
// 输入不会整体缓存，支持任意大的文件。
func (s *Scorer) ScoreStream(ctx context.Context, r io.Reader, emit func(i int, score float64) error) error {
	if !s.CanTranslate() {
		observeError(ErrNoFeatureIndex)
		return ErrNoFeatureIndex
	}
	if r == nil {
		return fmt.Errorf("scorer: nil reader")
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	i := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fv, err := s.translator.TranslateLine(sc.Text())
		if err != nil {
			observeError(err)
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		p, err := s.score(fv, modeStream)
		if err != nil {
			return fmt.Errorf("line %d: %w", i+1, err)
		}
		if err := emit(i, p); err != nil {
			return err
		}
		i++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scorer: read line %d: %w", i+1, err)
	}
	s.logger.Debug("stream scored", "instances", i)
	return nil
}

// ScoreReader 是收集全部结果的 ScoreStream。
func (s *Scorer) ScoreReader(ctx context.Context, r io.Reader) ([]float64, error) {
	var out []float64
	err := s.ScoreStream(ctx, r, func(_ int, score float64) error {
		out = append(out, score)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []float64{}
	}
	return out, nil
}
