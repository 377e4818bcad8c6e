package loader

import (
	"context"
	"fmt"
	"io"
)

// S3Client S3 兼容协议客户端接口（不直接依赖具体 SDK，支持依赖注入）
// S3 兼容协议支持 AWS S3、阿里云 OSS、腾讯云 COS、MinIO 等
type S3Client interface {
	// GetObject 获取对象内容
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// S3Loader 从 S3 兼容对象存储加载，ref 为对象键。
type S3Loader struct {
	client S3Client
	bucket string
}

// NewS3Loader 创建 S3 兼容协议加载器
//
// 用法：
//
//	s3Client := &MyS3Client{...}
//	l := loader.NewS3Loader(s3Client, "my-bucket")
//	ens, err := loader.LoadEnsemble(ctx, l, "models/ctr/v3/model.json")
func NewS3Loader(client S3Client, bucket string) *S3Loader {
	return &S3Loader{client: client, bucket: bucket}
}

func (l *S3Loader) Load(ctx context.Context, key string) ([]byte, error) {
	if l.client == nil {
		return nil, fmt.Errorf("S3 客户端未设置")
	}

	reader, err := l.client.GetObject(ctx, l.bucket, key)
	if err != nil {
		return nil, fmt.Errorf("从 S3 兼容存储获取对象失败: %w", err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("读取 S3 兼容存储对象失败: %w", err)
	}
	return data, nil
}
