package feature

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rushteam/boostscore/core"
)

// Fetcher 按实体 ID 批量取特征，返回值与 ids 一一对应；取不到的实体返回空向量。
// StoreSource 与 feast.EntityFetcher 实现此接口。
type Fetcher interface {
	Fetch(ctx context.Context, ids []string) ([]Vector, error)
}

// Serializer 是特征序列化接口，支持不同的序列化格式。
type Serializer interface {
	Serialize(fv Vector) ([]byte, error)
	Deserialize(data []byte) (Vector, error)
}

// JSONSerializer 是 JSON 序列化实现
type JSONSerializer struct{}

func (j *JSONSerializer) Serialize(fv Vector) ([]byte, error) {
	return json.Marshal(fv)
}

// Deserialize 中值为 null 的特征视为缺失。
func (j *JSONSerializer) Deserialize(data []byte) (Vector, error) {
	return DecodeVector(data)
}

// StoreSource 从 core.Store 读取实体特征（key = KeyPrefix + 实体 ID，value 为序列化后的 Vector），
// 用于按实体 ID 打分：线上只传 ID，特征由离线任务写入 Redis。
type StoreSource struct {
	store      core.Store
	keyPrefix  string
	serializer Serializer
}

// NewStoreSource 创建基于 Store 的特征来源，keyPrefix 为空时使用 "features:"。
func NewStoreSource(store core.Store, keyPrefix string) *StoreSource {
	if keyPrefix == "" {
		keyPrefix = "features:"
	}
	return &StoreSource{
		store:      store,
		keyPrefix:  keyPrefix,
		serializer: &JSONSerializer{},
	}
}

// WithSerializer 设置序列化器
func (s *StoreSource) WithSerializer(serializer Serializer) *StoreSource {
	s.serializer = serializer
	return s
}

func (s *StoreSource) Name() string {
	return fmt.Sprintf("store.%s", s.store.Name())
}

// Put 写入实体特征，ttl 单位为秒。
func (s *StoreSource) Put(ctx context.Context, id string, fv Vector, ttl ...int) error {
	data, err := s.serializer.Serialize(fv)
	if err != nil {
		return fmt.Errorf("serialize features for %s: %w", id, err)
	}
	return s.store.Set(ctx, s.keyPrefix+id, data, ttl...)
}

// Get 读取单个实体的特征；实体不存在返回空向量（所有特征走 missing 分支）。
func (s *StoreSource) Get(ctx context.Context, id string) (Vector, error) {
	data, err := s.store.Get(ctx, s.keyPrefix+id)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return Vector{}, nil
		}
		return nil, err
	}
	fv, err := s.serializer.Deserialize(data)
	if err != nil {
		return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeInvalidInput, err, "feature: decode features for %s", id)
	}
	return fv, nil
}

// Fetch 批量读取实体特征，返回值与 ids 一一对应。
// 反序列化失败会中止整批，不会静默丢弃。
func (s *StoreSource) Fetch(ctx context.Context, ids []string) ([]Vector, error) {
	if len(ids) == 0 {
		return []Vector{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.keyPrefix + id
	}

	dataMap, err := s.store.BatchGet(ctx, keys)
	if err != nil {
		return nil, err
	}

	out := make([]Vector, len(ids))
	for i, key := range keys {
		data, ok := dataMap[key]
		if !ok {
			out[i] = Vector{}
			continue
		}
		fv, err := s.serializer.Deserialize(data)
		if err != nil {
			return nil, core.Wrap(core.ModuleFeature, core.ErrorCodeInvalidInput, err, "feature: decode features for %s", ids[i])
		}
		out[i] = fv
	}
	return out, nil
}

var _ Fetcher = (*StoreSource)(nil)
