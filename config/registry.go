package config

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/loader"
	"github.com/rushteam/boostscore/pkg/conv"
)

// Deps 是构建加载器时可用的外部依赖。
type Deps struct {
	Store core.Store      // store 加载器使用
	S3    loader.S3Client // s3 加载器使用，需由调用方注入
}

// LoaderBuilder 根据 options 构建加载器。
// 各扩展可在 init 中调用 Register(name, builder) 即可被配置驱动。
type LoaderBuilder func(opts map[string]any, deps Deps) (loader.Loader, error)

var (
	defaultBuilders   = make(map[string]LoaderBuilder)
	defaultBuildersMu sync.RWMutex
)

func init() {
	Register("file", buildFileLoader)
	Register("http", buildHTTPLoader)
	Register("store", buildStoreLoader)
	Register("s3", buildS3Loader)
}

// Register 注册一种加载器，同名覆盖。
func Register(name string, builder LoaderBuilder) {
	if name == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[name] = builder
}

// SupportedTypes 返回当前已注册的加载器类型列表（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

func hasLoader(name string) bool {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	_, ok := defaultBuilders[name]
	return ok
}

// NewLoader 按名称构建加载器。
func NewLoader(name string, opts map[string]any, deps Deps) (loader.Loader, error) {
	defaultBuildersMu.RLock()
	builder, ok := defaultBuilders[name]
	defaultBuildersMu.RUnlock()
	if !ok {
		return nil, configErrorf("unsupported loader %q (supported: %v)", name, SupportedTypes())
	}
	l, err := builder(opts, deps)
	if err != nil {
		return nil, fmt.Errorf("build loader %s: %w", name, err)
	}
	return l, nil
}

func buildFileLoader(opts map[string]any, _ Deps) (loader.Loader, error) {
	return loader.NewFileLoader(conv.ConfigGet(opts, "base_dir", "")), nil
}

func buildHTTPLoader(opts map[string]any, _ Deps) (loader.Loader, error) {
	ms := conv.ConfigGetInt64(opts, "timeout_ms", 0)
	return loader.NewHTTPLoader(time.Duration(ms) * time.Millisecond), nil
}

func buildStoreLoader(opts map[string]any, deps Deps) (loader.Loader, error) {
	if deps.Store == nil {
		return nil, configErrorf("store loader requires a store section")
	}
	return loader.NewStoreLoader(deps.Store, conv.ConfigGet(opts, "key_prefix", "")), nil
}

func buildS3Loader(opts map[string]any, deps Deps) (loader.Loader, error) {
	if deps.S3 == nil {
		return nil, configErrorf("s3 loader requires an injected S3 client")
	}
	bucket := conv.ConfigGet(opts, "bucket", "")
	if bucket == "" {
		return nil, configErrorf("s3 loader requires options.bucket")
	}
	return loader.NewS3Loader(deps.S3, bucket), nil
}
