package loader

import (
	"context"

	"github.com/rushteam/boostscore/core"
)

// StoreLoader 从 core.Store 读取 blob（例如 Redis 中按版本存放的模型）。
type StoreLoader struct {
	store     core.Store
	keyPrefix string
}

// NewStoreLoader 创建基于 Store 的加载器，实际 key = keyPrefix + ref。
func NewStoreLoader(store core.Store, keyPrefix string) *StoreLoader {
	return &StoreLoader{store: store, keyPrefix: keyPrefix}
}

func (l *StoreLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	key := l.keyPrefix + ref
	data, err := l.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, core.Wrap(core.ModuleLoader, core.ErrorCodeNotFound, err, "loader: %s key %q", l.store.Name(), key)
		}
		return nil, err
	}
	return data, nil
}
