// Package feast 通过官方 Feast Go SDK 从 Feast Feature Server 读取在线特征，
// 转换成 feature.Vector 供打分器使用。
package feast

import (
	"context"
	"fmt"
	"strings"

	feastsdk "github.com/feast-dev/feast/sdk/go"
	"github.com/feast-dev/feast/sdk/go/protos/feast/types"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/pkg/conv"
)

// onlineClient 是 SDK 客户端中 Source 用到的部分，便于测试替换。
type onlineClient interface {
	GetOnlineFeatures(ctx context.Context, req *feastsdk.OnlineFeaturesRequest) (*feastsdk.OnlineFeaturesResponse, error)
}

// Source 是基于 Feast 的特征来源。
//
// 特征引用形如 "user_stats:age"；TrimView 为 true 时向量中的特征名去掉视图前缀（"age"），
// 与训练时 dump 出的模型特征名对齐。
type Source struct {
	client   onlineClient
	Project  string
	TrimView bool
}

// NewSource 连接 Feast Feature Server，port 为 0 时使用 6565。
//
// 用法：
//
//	src, err := feast.NewSource("localhost", 6565, "ranking")
//	vectors, err := src.Fetch(ctx, []string{"user_stats:age"}, []map[string]any{{"user_id": 1001}})
func NewSource(host string, port int, project string) (*Source, error) {
	if port == 0 {
		port = 6565 // 默认 gRPC 端口
	}
	client, err := feastsdk.NewGrpcClient(host, port)
	if err != nil {
		return nil, fmt.Errorf("创建 Feast gRPC 客户端失败: %w", err)
	}
	return &Source{client: client, Project: project, TrimView: true}, nil
}

func (s *Source) Name() string { return "feast" }

// Fetch 为每个实体行读取特征，返回值与 entityRows 一一对应。
// 非数值特征（字符串、字节）被丢弃；取不到的特征不出现在向量中，交给树的 missing 分支。
func (s *Source) Fetch(ctx context.Context, features []string, entityRows []map[string]any) ([]feature.Vector, error) {
	if len(features) == 0 {
		return nil, core.Errorf(core.ModuleFeature, core.ErrorCodeInvalidInput, "feast: features are required")
	}
	if len(entityRows) == 0 {
		return []feature.Vector{}, nil
	}
	if s.Project == "" {
		return nil, core.Errorf(core.ModuleFeature, core.ErrorCodeConfig, "feast: project is required")
	}

	rows := make([]feastsdk.Row, len(entityRows))
	for i, row := range entityRows {
		r := make(feastsdk.Row, len(row))
		for k, v := range row {
			r[k] = toSDKValue(v)
		}
		rows[i] = r
	}

	resp, err := s.client.GetOnlineFeatures(ctx, &feastsdk.OnlineFeaturesRequest{
		Features: features,
		Entities: rows,
		Project:  s.Project,
	})
	if err != nil {
		return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeUnavailable, err, "feast: get online features")
	}

	got := resp.Rows()
	if len(got) != len(entityRows) {
		return nil, fmt.Errorf("feast: response row count mismatch: expected %d, got %d", len(entityRows), len(got))
	}
	out := make([]feature.Vector, len(got))
	for i, row := range got {
		out[i] = s.toVector(row, features)
	}
	return out, nil
}

func (s *Source) toVector(row feastsdk.Row, features []string) feature.Vector {
	fv := make(feature.Vector, len(features))
	for _, ref := range features {
		v, ok := fromSDKValue(row[ref])
		if !ok {
			continue
		}
		name := ref
		if s.TrimView {
			if i := strings.LastIndexByte(ref, ':'); i >= 0 {
				name = ref[i+1:]
			}
		}
		fv[name] = v
	}
	return fv
}

// toSDKValue 将实体键转换为 SDK 的值类型
func toSDKValue(v any) *types.Value {
	switch val := v.(type) {
	case string:
		return feastsdk.StrVal(val)
	case int:
		return feastsdk.Int64Val(int64(val))
	case int64:
		return feastsdk.Int64Val(val)
	case int32:
		return feastsdk.Int32Val(val)
	case float64:
		return feastsdk.DoubleVal(val)
	case float32:
		return feastsdk.FloatVal(val)
	case bool:
		return feastsdk.BoolVal(val)
	case []byte:
		return feastsdk.BytesVal(val)
	default:
		return feastsdk.StrVal(fmt.Sprintf("%v", val))
	}
}

// fromSDKValue 提取数值特征；bool 视为 1.0/0.0，数值字符串按浮点数解析。
func fromSDKValue(v *types.Value) (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch val := v.GetVal().(type) {
	case *types.Value_DoubleVal:
		return val.DoubleVal, true
	case *types.Value_FloatVal:
		return float64(val.FloatVal), true
	case *types.Value_Int64Val:
		return float64(val.Int64Val), true
	case *types.Value_Int32Val:
		return float64(val.Int32Val), true
	case *types.Value_BoolVal:
		return conv.ToFloat64(val.BoolVal)
	case *types.Value_StringVal:
		return conv.ParseFloat(val.StringVal)
	default:
		return 0, false
	}
}

// EntityFetcher 把 Source 适配成 feature.Fetcher：每个 ID 作为 entityKey 的值组成一行实体。
type EntityFetcher struct {
	source    *Source
	entityKey string
	features  []string
}

// ForEntity 绑定实体键与特征列表，例如 ForEntity("user_id", []string{"user_stats:age"})。
func (s *Source) ForEntity(entityKey string, features []string) *EntityFetcher {
	return &EntityFetcher{source: s, entityKey: entityKey, features: features}
}

func (f *EntityFetcher) Fetch(ctx context.Context, ids []string) ([]feature.Vector, error) {
	rows := make([]map[string]any, len(ids))
	for i, id := range ids {
		rows[i] = map[string]any{f.entityKey: id}
	}
	return f.source.Fetch(ctx, f.features, rows)
}

var _ feature.Fetcher = (*EntityFetcher)(nil)
