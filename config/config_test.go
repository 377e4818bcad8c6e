package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/loader"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func modelPath(t *testing.T) string {
	t.Helper()
	p, err := filepath.Abs("../model/testdata/model.json")
	require.NoError(t, err)
	return p
}

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boostscore.yaml", `
model:
  ref: `+modelPath(t)+`
index:
  loader: http
  ref: http://localhost/featmap.json
  options:
    timeout_ms: 3000
workers: 4
derived:
  age_years: "features.age_months / 12.0"
store:
  type: memory
entities:
  key_prefix: "user:"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Model.Loader)
	assert.Equal(t, "http", cfg.Index.Loader)
	assert.Equal(t, 3000, cfg.Index.Options["timeout_ms"])
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "features.age_months / 12.0", cfg.Derived["age_years"])
	assert.Equal(t, "memory", cfg.Store.Type)
	assert.Equal(t, "store", cfg.Entities.Source)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_JSON(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "boostscore.json",
		`{"model":{"loader":"file","ref":"model.json","options":{"base_dir":"/srv/models"}},"server":{"addr":":9090"}}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/models", cfg.Model.Options["base_dir"])
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 1, cfg.Workers)
	assert.Nil(t, cfg.Index)
}

func TestLoad_Malformed(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(writeFile(t, dir, "bad.yaml", "model: [unterminated"))
	assert.True(t, core.IsConfig(err))

	_, err = Load(writeFile(t, dir, "bad.json", "{"))
	assert.True(t, core.IsConfig(err))

	_, err = Load(filepath.Join(dir, "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing model ref", Config{Model: SourceConfig{Loader: "file"}}},
		{"unknown loader", Config{Model: SourceConfig{Loader: "ftp", Ref: "m.json"}}},
		{"index without ref", Config{Model: SourceConfig{Loader: "file", Ref: "m.json"}, Index: &SourceConfig{Loader: "file"}}},
		{"unknown store", Config{Model: SourceConfig{Loader: "file", Ref: "m.json"}, Store: &StoreConfig{Type: "etcd"}}},
		{"redis without addr", Config{Model: SourceConfig{Loader: "file", Ref: "m.json"}, Store: &StoreConfig{Type: "redis"}}},
		{"entities store without store", Config{Model: SourceConfig{Loader: "file", Ref: "m.json"}, Entities: &EntitiesConfig{Source: "store"}}},
		{"feast incomplete", Config{Model: SourceConfig{Loader: "file", Ref: "m.json"}, Entities: &EntitiesConfig{Source: "feast", Feast: &FeastConfig{Host: "localhost"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			assert.True(t, core.IsConfig(err), "got %v", err)
		})
	}
}

func TestRegistry(t *testing.T) {
	assert.Subset(t, SupportedTypes(), []string{"file", "http", "s3", "store"})

	Register("inline", func(opts map[string]any, _ Deps) (loader.Loader, error) {
		body := opts["body"].(string)
		return loader.Func(func(context.Context, string) ([]byte, error) {
			return []byte(body), nil
		}), nil
	})
	assert.Contains(t, SupportedTypes(), "inline")

	cfg := &Config{
		Model: SourceConfig{Loader: "inline", Ref: "-", Options: map[string]any{
			"body": `[{"nodeid":0,"leaf":0.0}]`,
		}},
	}
	s, err := Build(context.Background(), cfg.withDefaults(), Deps{}, nil)
	require.NoError(t, err)
	p, err := s.ScoreOne(nil)
	require.NoError(t, err)
	assert.Equal(t, 0.5, p)

	_, err = NewLoader("nope", nil, Deps{})
	assert.True(t, core.IsConfig(err))
	_, err = NewLoader("s3", map[string]any{"bucket": "m"}, Deps{})
	assert.True(t, core.IsConfig(err))
	_, err = NewLoader("store", nil, Deps{})
	assert.True(t, core.IsConfig(err))
}

func TestBuild_StoreBacked(t *testing.T) {
	ctx := context.Background()
	data, err := os.ReadFile(modelPath(t))
	require.NoError(t, err)

	cfg := (&Config{
		Model:    SourceConfig{Loader: "store", Ref: "ctr:v3", Options: map[string]any{"key_prefix": "models:"}},
		Index:    &SourceConfig{Loader: "store", Ref: "ctr:v3:featmap", Options: map[string]any{"key_prefix": "models:"}},
		Workers:  2,
		Derived:  map[string]string{"age": "features.age_months / 12.0"},
		Store:    &StoreConfig{Type: "memory"},
		Entities: &EntitiesConfig{KeyPrefix: "user:"},
	}).withDefaults()

	st, err := cfg.OpenStore()
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.Set(ctx, "models:ctr:v3", data))
	require.NoError(t, st.Set(ctx, "models:ctr:v3:featmap", []byte(`{"age_months":0,"income":2}`)))

	s, err := Build(ctx, cfg, Deps{Store: st}, nil)
	require.NoError(t, err)
	assert.True(t, s.CanTranslate())
	assert.Equal(t, 2, s.Workers())

	got, err := s.ScoreOne(feature.Vector{"age_months": 240, "income": 0})
	require.NoError(t, err)
	want, err := s.Ensemble().Predict(map[string]float64{"age": 20, "income": 0})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	fetcher, err := BuildFetcher(cfg, st)
	require.NoError(t, err)
	src, ok := fetcher.(*feature.StoreSource)
	require.True(t, ok)
	require.NoError(t, src.Put(ctx, "u1", feature.Vector{"income": 7000}))
	vectors, err := fetcher.Fetch(ctx, []string{"u1", "u2"})
	require.NoError(t, err)
	assert.Equal(t, []feature.Vector{{"income": 7000}, {}}, vectors)
}

func TestBuild_MissingModel(t *testing.T) {
	cfg := (&Config{Model: SourceConfig{Ref: filepath.Join(t.TempDir(), "absent.json")}}).withDefaults()
	_, err := Build(context.Background(), cfg, Deps{}, nil)
	assert.Error(t, err)
}

func TestOpenStore_None(t *testing.T) {
	st, err := (&Config{}).OpenStore()
	require.NoError(t, err)
	assert.Nil(t, st)

	f, err := BuildFetcher(&Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, f)
}
