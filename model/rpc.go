package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/boostscore/core"
)

// RPCModel 是通过 HTTP 调用远程 boostscore 服务（server 包）的 RankModel 实现。
// 适用于模型集中部署、调用方只持有特征的场景。
type RPCModel struct {
	name     string
	Endpoint string // 例如 "http://localhost:8080/predict"
	Timeout  time.Duration
	Client   *http.Client
}

func NewRPCModel(name, endpoint string, timeout time.Duration) *RPCModel {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RPCModel{
		name:     name,
		Endpoint: endpoint,
		Timeout:  timeout,
		Client: &http.Client{
			Timeout: timeout,
		},
	}
}

func (m *RPCModel) Name() string {
	return m.name
}

// Predict 对单个特征打分（内部调用批量接口）。
func (m *RPCModel) Predict(features map[string]float64) (float64, error) {
	scores, err := m.PredictBatch(context.Background(), []map[string]float64{features})
	if err != nil {
		return 0, err
	}
	return scores[0], nil
}

// PredictBatch 调用远程服务进行批量打分，返回值与输入一一对应。
// 请求格式（JSON）：
//
//	{"features_list": [{"ctr": 0.15, "cvr": 0.08, ...}, ...]}
//
// 响应格式（JSON）：
//
//	{"scores": [0.85, 0.72, ...]}
//
// 服务端返回错误时，响应体为 {"error": "...", "code": "..."}，code 会被还原为 DomainError。
func (m *RPCModel) PredictBatch(ctx context.Context, featuresList []map[string]float64) ([]float64, error) {
	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: m.Timeout}
	}

	if len(featuresList) == 0 {
		return []float64{}, nil
	}

	jsonData, err := json.Marshal(PredictRequest{FeaturesList: featuresList})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.Endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, core.Wrap(core.ModuleService, core.ErrorCodeUnavailable, err, "rpc call")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("rpc error: status=%d, read body failed: %w", resp.StatusCode, err)
		}
		var e ErrorResponse
		if json.Unmarshal(body, &e) == nil && e.Code != "" {
			return nil, core.Errorf(core.ModuleService, e.Code, "rpc error: status=%d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("rpc error: status=%d, body=%s", resp.StatusCode, string(body))
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if len(result.Scores) != len(featuresList) {
		return nil, fmt.Errorf("response scores count mismatch: expected %d, got %d", len(featuresList), len(result.Scores))
	}

	return result.Scores, nil
}

// PredictRequest 是 /predict 的请求体。
type PredictRequest struct {
	FeaturesList []map[string]float64 `json:"features_list"`
}

// UnmarshalJSON 把值为 null 的特征视为缺失而不是 0；null 的向量视为空向量。
func (r *PredictRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		FeaturesList []map[string]*float64 `json:"features_list"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.FeaturesList == nil {
		r.FeaturesList = nil
		return nil
	}
	r.FeaturesList = make([]map[string]float64, len(raw.FeaturesList))
	for i, m := range raw.FeaturesList {
		fv := make(map[string]float64, len(m))
		for k, v := range m {
			if v != nil {
				fv[k] = *v
			}
		}
		r.FeaturesList[i] = fv
	}
	return nil
}

// PredictResponse 是 /predict 的响应体。
type PredictResponse struct {
	Scores []float64 `json:"scores"`
}

// ErrorResponse 是服务端错误响应体。
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var _ RankModel = (*RPCModel)(nil)
