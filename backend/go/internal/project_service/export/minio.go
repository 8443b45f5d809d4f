package export

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinioUploader 把导出文件保存在 MinIO 的一个存储桶中。
type MinioUploader struct {
	client *minio.Client
	bucket string
}

// NewMinioUploader 创建一个新的 MinioUploader 实例。
func NewMinioUploader(client *minio.Client, bucket string) *MinioUploader {
	return &MinioUploader{client: client, bucket: bucket}
}

func (u *MinioUploader) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := u.client.PutObject(ctx, u.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

// URL 生成预签名下载链接，浏览器下载时使用 filename 作为文件名。
func (u *MinioUploader) URL(ctx context.Context, key, filename string, ttl time.Duration) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filename))
	signed, err := u.client.PresignedGetObject(ctx, u.bucket, key, ttl, params)
	if err != nil {
		return "", err
	}
	return signed.String(), nil
}
