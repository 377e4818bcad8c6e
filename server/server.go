// Package server 通过 HTTP 暴露打分器，协议与 model.RPCModel 一致。
package server

import (
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/scorer"
)

// maxBodyBytes 是请求体上限。
const maxBodyBytes = 64 << 20

// Server 是打分 HTTP 服务。
type Server struct {
	router   chi.Router
	scorer   atomic.Pointer[scorer.Scorer]
	entities feature.Fetcher
	limiter  *rate.Limiter
	log      *slog.Logger
}

// Option 配置 Server
type Option func(*Server)

// WithEntities 启用 POST /predict/entities：按实体 ID 取特征后打分。
func WithEntities(f feature.Fetcher) Option {
	return func(s *Server) { s.entities = f }
}

// WithRateLimit 限制打分接口的请求速率，超出时返回 429。rps <= 0 表示不限流。
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// New 创建服务并注册路由。
func New(sc *scorer.Scorer, log *slog.Logger, opts ...Option) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{log: log}
	s.scorer.Store(sc)
	for _, opt := range opts {
		opt(s)
	}
	s.setupRoutes()
	return s
}

// Swap 原子地替换打分器（模型热加载），进行中的请求继续使用旧模型。
func (s *Server) Swap(sc *scorer.Scorer) {
	if sc != nil {
		s.scorer.Store(sc)
	}
}

// Scorer 返回当前使用的打分器。
func (s *Server) Scorer() *scorer.Scorer { return s.scorer.Load() }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimit(s.limiter))
		}
		r.Post("/predict", s.handlePredict)
		r.Post("/predict/sparse", s.handlePredictSparse)
		if s.entities != nil {
			r.Post("/predict/entities", s.handlePredictEntities)
		}
	})

	s.router = r
}
