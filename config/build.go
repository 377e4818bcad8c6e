package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feast"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/loader"
	"github.com/rushteam/boostscore/scorer"
	"github.com/rushteam/boostscore/store"
)

// OpenStore 按配置创建存储；未配置 store 时返回 nil。
func (c *Config) OpenStore() (core.Store, error) {
	if c.Store == nil {
		return nil, nil
	}
	switch c.Store.Type {
	case "memory":
		return store.NewMemoryStore(), nil
	case "redis":
		rs, err := store.NewRedisStore(c.Store.Addr, c.Store.DB)
		if err != nil {
			return nil, err
		}
		return rs, nil
	case "badger":
		bs, err := store.NewBadgerStore(store.BadgerOptions{Path: c.Store.Path})
		if err != nil {
			return nil, err
		}
		return bs, nil
	default:
		return nil, configErrorf("unsupported store type %q", c.Store.Type)
	}
}

// Build 加载模型与特征索引并创建打分器。
//
// 用法：
//
//	cfg, _ := config.Load("boostscore.yaml")
//	st, _ := cfg.OpenStore()
//	s, err := config.Build(ctx, cfg, config.Deps{Store: st}, logger)
func Build(ctx context.Context, cfg *Config, deps Deps, logger *slog.Logger) (*scorer.Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	ml, err := NewLoader(cfg.Model.Loader, cfg.Model.Options, deps)
	if err != nil {
		return nil, err
	}
	ens, err := loader.LoadEnsemble(ctx, ml, cfg.Model.Ref)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", cfg.Model.Ref, err)
	}
	logger.Info("model loaded", "ref", cfg.Model.Ref, "loader", cfg.Model.Loader, "trees", ens.Len())

	opts := []scorer.Option{scorer.WithWorkers(cfg.Workers), scorer.WithLogger(logger)}

	if cfg.Index != nil {
		il, err := NewLoader(cfg.Index.Loader, cfg.Index.Options, deps)
		if err != nil {
			return nil, err
		}
		idx, err := loader.LoadIndex(ctx, il, cfg.Index.Ref)
		if err != nil {
			return nil, fmt.Errorf("load feature index %s: %w", cfg.Index.Ref, err)
		}
		logger.Info("feature index loaded", "ref", cfg.Index.Ref, "features", idx.Len())
		opts = append(opts, scorer.WithFeatureIndex(idx))
	}

	if len(cfg.Derived) > 0 {
		d, err := feature.NewDeriver(cfg.Derived)
		if err != nil {
			return nil, err
		}
		opts = append(opts, scorer.WithDeriver(d))
	}

	return scorer.New(ens, opts...)
}

// BuildFetcher 按 entities 配置创建按实体 ID 取特征的来源；未配置时返回 nil。
func BuildFetcher(cfg *Config, st core.Store) (feature.Fetcher, error) {
	if cfg.Entities == nil {
		return nil, nil
	}
	switch cfg.Entities.Source {
	case "store":
		if st == nil {
			return nil, configErrorf("entities.source=store requires a store")
		}
		return feature.NewStoreSource(st, cfg.Entities.KeyPrefix), nil
	case "feast":
		f := cfg.Entities.Feast
		if f == nil {
			return nil, configErrorf("entities.feast is required")
		}
		src, err := feast.NewSource(f.Host, f.Port, f.Project)
		if err != nil {
			return nil, err
		}
		return src.ForEntity(f.EntityKey, f.Features), nil
	default:
		return nil, configErrorf("unsupported entities source %q", cfg.Entities.Source)
	}
}
