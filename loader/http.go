package loader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rushteam/boostscore/core"
)

// HTTPLoader 通过 HTTP GET 加载，常用于模型仓库 / 配置中心。
type HTTPLoader struct {
	client *http.Client
}

// NewHTTPLoader 创建 HTTP 加载器，timeout 为 0 时使用 10s。
//
// 用法：
//
//	l := loader.NewHTTPLoader(5 * time.Second)
//	data, err := l.Load(ctx, "http://api.example.com/models/v1.0.0/model.json")
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPLoader{client: &http.Client{Timeout: timeout}}
}

// NewHTTPLoaderWithClient 使用自定义 HTTP 客户端创建加载器
func NewHTTPLoaderWithClient(client *http.Client) *HTTPLoader {
	return &HTTPLoader{client: client}
}

func (l *HTTPLoader) Load(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 HTTP 请求失败: %w", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, core.Wrap(core.ModuleLoader, core.ErrorCodeUnavailable, err, "HTTP 请求失败")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, core.Errorf(core.ModuleLoader, core.ErrorCodeNotFound, "HTTP 请求失败: status=404, url=%s", url)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP 请求失败: status=%d, body=%s", resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	return data, nil
}
