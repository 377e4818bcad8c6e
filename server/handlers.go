package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rushteam/boostscore/core"
	"github.com/rushteam/boostscore/feature"
	"github.com/rushteam/boostscore/model"
)

// EntitiesRequest 是 /predict/entities 的请求体。
type EntitiesRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"trees":  s.Scorer().Ensemble().Len(),
		"sparse": s.Scorer().CanTranslate(),
	})
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req model.PredictRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, core.Wrap(core.ModuleService, core.ErrorCodeInvalidInput, err, "decode request"))
		return
	}
	if req.FeaturesList == nil {
		s.writeError(w, r, core.Errorf(core.ModuleService, core.ErrorCodeInvalidInput, "features_list is required"))
		return
	}

	scores, err := s.Scorer().ScoreMany(r.Context(), req.FeaturesList)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PredictResponse{Scores: scores})
}

// handlePredictSparse 请求体为稀疏格式文本，每行一条。
func (s *Server) handlePredictSparse(w http.ResponseWriter, r *http.Request) {
	scores, err := s.Scorer().ScoreReader(r.Context(), http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PredictResponse{Scores: scores})
}

func (s *Server) handlePredictEntities(w http.ResponseWriter, r *http.Request) {
	var req EntitiesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		s.writeError(w, r, core.Wrap(core.ModuleService, core.ErrorCodeInvalidInput, err, "decode request"))
		return
	}

	vectors, err := s.entities.Fetch(r.Context(), req.IDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if vectors == nil {
		vectors = []feature.Vector{}
	}
	scores, err := s.Scorer().ScoreMany(r.Context(), vectors)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.PredictResponse{Scores: scores})
}

// statusFor 把领域错误码映射为 HTTP 状态码。
func statusFor(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	de := core.GetDomainError(err)
	if de == nil {
		return http.StatusInternalServerError
	}
	switch de.Code {
	case core.ErrorCodeConfig, core.ErrorCodeInvalidInput:
		return http.StatusBadRequest
	case core.ErrorCodeNotFound:
		return http.StatusNotFound
	case core.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := model.ErrorResponse{Error: err.Error(), Code: core.ErrorCodeInternalError}
	if de := core.GetDomainError(err); de != nil {
		resp.Code = de.Code
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("predict failed", "path", r.URL.Path, "code", resp.Code, "error", err)
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
