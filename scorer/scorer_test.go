package scorer

import (
	"context"
	"errors"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/model"
)

func fixtureScorer(t *testing.T, opts ...Option) *Scorer {
	t.Helper()
	ens, err := model.LoadXGBoost("../model/testdata/model.json")
	require.NoError(t, err)
	s, err := New(ens, opts...)
	require.NoError(t, err)
	return s
}

func fixtureIndex(t *testing.T) *feature.Index {
	t.Helper()
	idx, err := feature.NewIndex(map[string]int{"age": 0, "income": 2})
	require.NoError(t, err)
	return idx
}

// countingReader 记录是否被读取过
type countingReader struct {
	reads int
}

func (r *countingReader) Read(p []byte) (int, error) {
	r.reads++
	return 0, io.EOF
}

func TestNew_NilEnsemble(t *testing.T) {
	_, err := New(nil)
	assert.True(t, core.IsConfig(err))
}

func TestScoreOne(t *testing.T) {
	s := fixtureScorer(t)
	p, err := s.ScoreOne(feature.Vector{"age": 1.5, "income": 0})
	require.NoError(t, err)
	assert.InDelta(t, model.Sigmoid(-0.4-0.2+0.05), p, 1e-12)

	// 全部缺失：tree0 missing→node1, income missing→0.1；tree1 missing→0.3
	p, err = s.ScoreOne(feature.Vector{})
	require.NoError(t, err)
	assert.InDelta(t, model.Sigmoid(0.1+0.3+0.05), p, 1e-12)
}

func TestScoreOne_ZeroTrees(t *testing.T) {
	s, err := New(model.NewEnsemble())
	require.NoError(t, err)
	p, err := s.ScoreOne(feature.Vector{"anything": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)
}

func TestScoreOne_Idempotent(t *testing.T) {
	s := fixtureScorer(t)
	fv := feature.Vector{"age": 42, "income": 999}
	first, err := s.ScoreOne(fv)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		p, err := s.ScoreOne(fv)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(first), math.Float64bits(p))
	}
}

func TestScoreMany_OrderAndLength(t *testing.T) {
	batch := make([]feature.Vector, 200)
	for i := range batch {
		batch[i] = feature.Vector{"age": float64(i % 60), "income": float64(i * 50)}
	}

	seq := fixtureScorer(t)
	par := fixtureScorer(t, WithWorkers(8))
	assert.Equal(t, 8, par.Workers())

	want, err := seq.ScoreMany(context.Background(), batch)
	require.NoError(t, err)
	got, err := par.ScoreMany(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, got, len(batch))
	for i, fv := range batch {
		p, err := seq.ScoreOne(fv)
		require.NoError(t, err)
		assert.Equal(t, p, want[i], "instance %d", i)
		assert.Equal(t, p, got[i], "instance %d", i)
	}
}

func TestScoreMany_Empty(t *testing.T) {
	s := fixtureScorer(t, WithWorkers(4))
	got, err := s.ScoreMany(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScoreMany_IntegrityErrorAbortsBatch(t *testing.T) {
	broken := model.MustTree(0, model.Split(0, "x", 1, 1, 9, 1), model.Leaf(1, 0.5))
	s, err := New(model.NewEnsemble(broken), WithWorkers(4))
	require.NoError(t, err)

	batch := []feature.Vector{{"x": 0}, {"x": 0}, {"x": 5}, {"x": 0}}
	got, err := s.ScoreMany(context.Background(), batch)
	assert.Nil(t, got)
	assert.True(t, core.IsModelIntegrity(err))
	assert.Contains(t, err.Error(), "instance 2")
}

func TestScoreMany_Cancelled(t *testing.T) {
	s := fixtureScorer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.ScoreMany(ctx, []feature.Vector{{}, {}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreStream_SparseLines(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))
	require.True(t, s.CanTranslate())

	input := "+1 0:1.5 2:0.0\n-1 0:45\n\n0 2:20000\n"
	got, err := s.ScoreReader(context.Background(), strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 4)

	want := []feature.Vector{
		{"age": 1.5, "income": 0},
		{"age": 45},
		{},
		{"income": 20000},
	}
	for i, fv := range want {
		p, err := s.ScoreOne(fv)
		require.NoError(t, err)
		assert.Equal(t, p, got[i], "line %d", i+1)
	}
}

func TestScoreStream_NoIndexFailsBeforeRead(t *testing.T) {
	s := fixtureScorer(t)
	assert.False(t, s.CanTranslate())

	r := &countingReader{}
	err := s.ScoreStream(context.Background(), r, func(int, float64) error {
		t.Fatal("emit must not be called")
		return nil
	})
	assert.ErrorIs(t, err, ErrNoFeatureIndex)
	assert.True(t, core.IsConfig(err))
	assert.Equal(t, 0, r.reads)
}

func TestScoreStream_UnknownSlotTerminates(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))

	var emitted []int
	err := s.ScoreStream(context.Background(),
		strings.NewReader("1 0:10\n1 7:3\n1 0:50\n"),
		func(i int, _ float64) error {
			emitted = append(emitted, i)
			return nil
		})
	require.Error(t, err)
	assert.True(t, core.IsConfig(err))
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "slot 7")
	assert.Equal(t, []int{0}, emitted)
}

func TestScoreStream_MalformedToken(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))
	_, err := s.ScoreReader(context.Background(), strings.NewReader("1 age=3\n"))
	assert.True(t, core.IsInvalidInput(err))
}

func TestScoreStream_EmitErrorStops(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))
	stop := errors.New("stop")
	calls := 0
	err := s.ScoreStream(context.Background(), strings.NewReader("1 0:1\n1 0:2\n1 0:3\n"),
		func(int, float64) error {
			calls++
			return stop
		})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestScoreStream_LineTooLong(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))
	line := "1" + strings.Repeat(" 0:1", maxLineSize/4+1)
	_, err := s.ScoreReader(context.Background(), strings.NewReader(line))
	assert.Error(t, err)
}

func TestScore_Dispatch(t *testing.T) {
	s := fixtureScorer(t, WithFeatureIndex(fixtureIndex(t)))
	ctx := context.Background()

	one, err := s.Score(ctx, map[string]float64{"age": 20})
	require.NoError(t, err)
	assert.Len(t, one, 1)

	many, err := s.Score(ctx, []map[string]float64{{"age": 20}, {"age": 40}})
	require.NoError(t, err)
	assert.Len(t, many, 2)

	stream, err := s.Score(ctx, strings.NewReader("1 0:20\n1 0:40\n"))
	require.NoError(t, err)
	assert.Equal(t, many, stream)

	for _, bad := range []any{nil, 42, "1 0:20", []float64{1}} {
		_, err := s.Score(ctx, bad)
		assert.True(t, core.IsInvalidInput(err), "input %#v", bad)
	}
}

func TestWithDeriver(t *testing.T) {
	d, err := feature.NewDeriver(map[string]string{
		"age": "has(features.age_months) ? features.age_months / 12.0 : 99.0",
	})
	require.NoError(t, err)
	s := fixtureScorer(t, WithDeriver(d))

	derived, err := s.ScoreOne(feature.Vector{"age_months": 240, "income": 0})
	require.NoError(t, err)
	plain := fixtureScorer(t)
	want, err := plain.ScoreOne(feature.Vector{"age": 20, "income": 0})
	require.NoError(t, err)
	assert.Equal(t, want, derived)
}
