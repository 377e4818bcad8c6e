package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/rushteam/boostscore/pkg/conv"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

// initCELEnv 初始化 CEL 环境：唯一的变量是 features（map<string, double>）
func initCELEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("features", cel.MapType(cel.StringType, cel.DoubleType)),
		cel.CrossTypeNumericComparisons(true),
	)
}

// getCELEnv 获取或创建 CEL 环境
func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = initCELEnv()
	})
	return celEnv, celEnvErr
}

// Program 是编译好的特征表达式，使用 CEL (Common Expression Language) 实现。
// 编译一次，之后可以被多个 goroutine 并发 Eval。
//
// 表达式语法（CEL 标准语法）：
//   - 算术：features.clicks / features.impressions
//   - 比较：features.age >= 18
//   - 存在性：has(features.income) 或 "income" in features
//   - 条件：has(features.income) ? features.income / 1000.0 : 0.0
//
// 表达式的结果类型必须是 double / int / uint / bool（bool 视为 1.0 / 0.0）。
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式并检查结果类型。
func Compile(expr string) (*Program, error) {
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("cel env: %w", err)
	}
	if expr == "" {
		return nil, fmt.Errorf("empty expression")
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile error: %w", issues.Err())
	}

	switch ast.OutputType().Kind() {
	case types.DoubleKind, types.IntKind, types.UintKind, types.BoolKind, types.DynKind:
	default:
		return nil, fmt.Errorf("expression must return a number or boolean, got %s", ast.OutputType())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("program error: %w", err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// String 返回原始表达式。
func (p *Program) String() string { return p.expr }

// EvalFloat 对特征求值，返回数值结果。
// 访问不存在的特征（例如 features.x 而 x 缺失）会返回错误，调用方可用 has() 先判断。
func (p *Program) EvalFloat(features map[string]float64) (float64, error) {
	if features == nil {
		features = map[string]float64{}
	}
	out, _, err := p.prg.Eval(map[string]any{"features": features})
	if err != nil {
		return 0, fmt.Errorf("eval error: %w", err)
	}
	v, ok := conv.ToFloat64(out.Value())
	if !ok {
		return 0, fmt.Errorf("expression must return a number or boolean, got %T", out.Value())
	}
	return v, nil
}

// EvalBool 对特征求值，返回布尔结果。
func (p *Program) EvalBool(features map[string]float64) (bool, error) {
	if features == nil {
		features = map[string]float64{}
	}
	out, _, err := p.prg.Eval(map[string]any{"features": features})
	if err != nil {
		return false, fmt.Errorf("eval error: %w", err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression must return boolean, got %T", out.Value())
	}
	return result, nil
}
