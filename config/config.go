// Package config 从 YAML / JSON 文件读取运行配置，并据此装配打分器、存储与特征来源。
//
// 示例：
//
//	model:
//	  loader: file
//	  ref: testdata/model.json
//	index:
//	  loader: http
//	  ref: http://models.internal/ctr/v3/featmap.json
//	  options: {timeout_ms: 3000}
//	workers: 4
//	derived:
//	  ctr: "has(features.clicks) && has(features.impressions) ? features.clicks / features.impressions : 0.0"
//	store: {type: redis, addr: "localhost:6379", db: 0}
//	entities: {source: store, key_prefix: "features:"}
//	server: {addr: ":8080", rate_limit: 500, burst: 100}
//	watch: true
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/boostscore/core"
)

// Config 是服务的完整配置（支持 YAML/JSON）。
type Config struct {
	Model    SourceConfig      `yaml:"model" json:"model"`
	Index    *SourceConfig     `yaml:"index" json:"index"` // 可选，稀疏格式打分需要
	Workers  int               `yaml:"workers" json:"workers"`
	Derived  map[string]string `yaml:"derived" json:"derived"` // 派生特征名 → CEL 表达式
	Store    *StoreConfig      `yaml:"store" json:"store"`
	Entities *EntitiesConfig   `yaml:"entities" json:"entities"`
	Server   ServerConfig      `yaml:"server" json:"server"`
	Watch    bool              `yaml:"watch" json:"watch"` // file 加载器的模型/索引变更时热加载
}

// SourceConfig 描述一个文档（模型 / 特征索引）从哪里加载。
type SourceConfig struct {
	Loader  string         `yaml:"loader" json:"loader"` // file / http / store / s3
	Ref     string         `yaml:"ref" json:"ref"`       // 路径 / URL / key
	Options map[string]any `yaml:"options" json:"options"`
}

// StoreConfig 是 core.Store 的配置。
type StoreConfig struct {
	Type string `yaml:"type" json:"type"` // memory / redis / badger
	Addr string `yaml:"addr" json:"addr"`
	DB   int    `yaml:"db" json:"db"`
	Path string `yaml:"path" json:"path"` // badger 数据目录
}

// EntitiesConfig 配置按实体 ID 打分时的特征来源。
type EntitiesConfig struct {
	Source    string       `yaml:"source" json:"source"` // store / feast
	KeyPrefix string       `yaml:"key_prefix" json:"key_prefix"`
	Feast     *FeastConfig `yaml:"feast" json:"feast"`
}

// FeastConfig 是 Feast Feature Server 的连接配置。
type FeastConfig struct {
	Host      string   `yaml:"host" json:"host"`
	Port      int      `yaml:"port" json:"port"`
	Project   string   `yaml:"project" json:"project"`
	EntityKey string   `yaml:"entity_key" json:"entity_key"`
	Features  []string `yaml:"features" json:"features"`
}

// ServerConfig 是 HTTP 服务配置。
type ServerConfig struct {
	Addr      string  `yaml:"addr" json:"addr"`
	RateLimit float64 `yaml:"rate_limit" json:"rate_limit"` // 每秒请求数，0 表示不限流
	Burst     int     `yaml:"burst" json:"burst"`
}

func configErrorf(format string, args ...any) error {
	return core.Errorf(core.ModuleService, core.ErrorCodeConfig, "config: "+format, args...)
}

// Load 按扩展名加载配置：.json 走 JSON，其余按 YAML 解析。
func Load(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(path)
	}
	return LoadFromYAML(path)
}

// LoadFromYAML 从 YAML 文件加载配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.Wrap(core.ModuleService, core.ErrorCodeConfig, err, "parse yaml")
	}
	return cfg.withDefaults(), nil
}

// LoadFromJSON 从 JSON 文件加载配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.Wrap(core.ModuleService, core.ErrorCodeConfig, err, "parse json")
	}
	return cfg.withDefaults(), nil
}

func (c *Config) withDefaults() *Config {
	if c.Model.Loader == "" {
		c.Model.Loader = "file"
	}
	if c.Index != nil && c.Index.Loader == "" {
		c.Index.Loader = "file"
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Entities != nil && c.Entities.Source == "" {
		c.Entities.Source = "store"
	}
	return c
}

// Validate 校验配置的完整性，加载器类型须已注册。
func (c *Config) Validate() error {
	if c.Model.Ref == "" {
		return configErrorf("model.ref is required")
	}
	if err := validateLoader("model", c.Model.Loader); err != nil {
		return err
	}
	if c.Index != nil {
		if c.Index.Ref == "" {
			return configErrorf("index.ref is required")
		}
		if err := validateLoader("index", c.Index.Loader); err != nil {
			return err
		}
	}
	if c.Store != nil {
		switch c.Store.Type {
		case "memory":
		case "redis":
			if c.Store.Addr == "" {
				return configErrorf("store.addr is required for redis")
			}
		case "badger":
			if c.Store.Path == "" {
				return configErrorf("store.path is required for badger")
			}
		default:
			return configErrorf("unsupported store type %q (supported: [badger memory redis])", c.Store.Type)
		}
	}
	if c.Entities != nil {
		switch c.Entities.Source {
		case "store":
			if c.Store == nil {
				return configErrorf("entities.source=store requires a store section")
			}
		case "feast":
			f := c.Entities.Feast
			if f == nil || f.Host == "" || f.Project == "" || f.EntityKey == "" || len(f.Features) == 0 {
				return configErrorf("entities.feast requires host, project, entity_key and features")
			}
		default:
			return configErrorf("unsupported entities source %q (supported: [feast store])", c.Entities.Source)
		}
	}
	return nil
}

func validateLoader(section, name string) error {
	if !hasLoader(name) {
		return configErrorf("%s: unsupported loader %q (supported: %v)", section, name, SupportedTypes())
	}
	return nil
}
