package loader

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/store"
)

const stumpModel = `[{"nodeid":0,"split":"x","split_condition":1.0,"yes":1,"no":2,"missing":1,
  "children":[{"nodeid":1,"leaf":-1.0},{"nodeid":2,"leaf":1.0}]}]`

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), []byte(stumpModel), 0o600))

	l := NewFileLoader(dir)
	ens, err := LoadEnsemble(context.Background(), l, "model.json")
	require.NoError(t, err)
	assert.Equal(t, 1, ens.Len())

	_, err = l.Load(context.Background(), "missing.json")
	assert.Error(t, err)
}

func TestHTTPLoader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/featmap.json":
			_, _ = w.Write([]byte(`{"age":0,"income":2}`))
		case "/broken":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	l := NewHTTPLoader(time.Second)
	idx, err := LoadIndex(context.Background(), l, srv.URL+"/featmap.json")
	require.NoError(t, err)
	name, ok := idx.Name(2)
	require.True(t, ok)
	assert.Equal(t, "income", name)

	_, err = l.Load(context.Background(), srv.URL+"/nope")
	assert.True(t, core.IsNotFound(err))

	_, err = l.Load(context.Background(), srv.URL+"/broken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=500")
	assert.Contains(t, err.Error(), "boom")
}

type fakeS3 struct {
	objects map[string]string
}

func (f *fakeS3) GetObject(_ context.Context, bucket, key string) (io.ReadCloser, error) {
	v, ok := f.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewBufferString(v)), nil
}

func TestS3Loader(t *testing.T) {
	client := &fakeS3{objects: map[string]string{"models/ctr/model.json": stumpModel}}
	l := NewS3Loader(client, "models")

	ens, err := LoadEnsemble(context.Background(), l, "ctr/model.json")
	require.NoError(t, err)
	p, err := ens.Predict(map[string]float64{"x": 2})
	require.NoError(t, err)
	assert.InDelta(t, 0.7310585786, p, 1e-9)

	_, err = l.Load(context.Background(), "ctr/other.json")
	assert.Error(t, err)

	_, err = NewS3Loader(nil, "models").Load(context.Background(), "ctr/model.json")
	assert.Error(t, err)
}

func TestStoreLoader(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	defer mem.Close()
	require.NoError(t, mem.Set(ctx, "models:ctr:v3", []byte(stumpModel)))

	l := NewStoreLoader(mem, "models:")
	ens, err := LoadEnsemble(ctx, l, "ctr:v3")
	require.NoError(t, err)
	assert.Equal(t, 1, ens.Len())

	_, err = l.Load(ctx, "ctr:v4")
	assert.True(t, core.IsNotFound(err))
	de := core.GetDomainError(err)
	require.NotNil(t, de)
	assert.Equal(t, core.ModuleLoader, de.Module)
}

func TestLoadEnsemble_CorruptModel(t *testing.T) {
	l := Func(func(context.Context, string) ([]byte, error) {
		return []byte(`[{"nodeid":0,"split":"x","split_condition":1,"yes":1,"no":7,"missing":1,
		  "children":[{"nodeid":1,"leaf":0.5}]}]`), nil
	})
	_, err := LoadEnsemble(context.Background(), l, "any")
	assert.True(t, core.IsModelIntegrity(err))
}
