package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/rushteam/boostscore/pkg/conv"
	"github.com/rushteam/boostscore/scorer"
)

// Watcher 监听 file 加载器引用的模型 / 特征索引文件，变更后重新 Build，
// 把新的打分器交给 onReload。新模型加载失败时保留旧模型，只记录日志。
type Watcher struct {
	cfg      *Config
	deps     Deps
	log      *slog.Logger
	onReload func(*scorer.Scorer)
	debounce time.Duration
	watcher  *fsnotify.Watcher
	files    map[string]struct{}
}

// NewWatcher 创建文件监听；模型与索引都不是 file 加载器时返回 CONFIG 错误。
func NewWatcher(cfg *Config, deps Deps, log *slog.Logger, onReload func(*scorer.Scorer)) (*Watcher, error) {
	if log == nil {
		log = slog.Default()
	}
	files := make(map[string]struct{})
	for _, src := range []*SourceConfig{&cfg.Model, cfg.Index} {
		if src == nil || src.Loader != "file" {
			continue
		}
		path := src.Ref
		if base := conv.ConfigGet(src.Options, "base_dir", ""); base != "" && !filepath.IsAbs(path) {
			path = filepath.Join(base, path)
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			return nil, err
		}
		files[abs] = struct{}{}
	}
	if len(files) == 0 {
		return nil, configErrorf("watch requires a file loader for model or index")
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// 监听目录而不是文件：原子替换（写临时文件再 rename）会使文件级 watch 失效
	dirs := make(map[string]struct{})
	for f := range files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for d := range dirs {
		if err := fw.Add(d); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}

	return &Watcher{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		onReload: onReload,
		debounce: 200 * time.Millisecond,
		watcher:  fw,
		files:    files,
	}, nil
}

// Run 阻塞直到 ctx 取消。
func (w *Watcher) Run(ctx context.Context) error {
	defer w.watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("model watcher error", "error", err)
		case <-fire:
			fire = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
		return false
	}
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}

func (w *Watcher) reload(ctx context.Context) {
	sc, err := Build(ctx, w.cfg, w.deps, w.log)
	if err != nil {
		w.log.Error("model reload failed, keeping current model", "error", err)
		return
	}
	w.log.Info("model reloaded", "trees", sc.Ensemble().Len())
	w.onReload(sc)
}
