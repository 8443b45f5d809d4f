// Package export 把项目打包为 ZIP，上传到对象存储并返回限时下载链接。
package export

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/filetree"

	"github.com/klauspost/compress/zip"
)

const zipContentType = "application/zip"

// Uploader 是导出所需的对象存储能力。
type Uploader interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key, filename string, ttl time.Duration) (string, error)
}

// Result 描述一次导出。
type Result struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Files     int       `json:"files"`
}

// Exporter 打包并上传项目。
type Exporter struct {
	uploader Uploader
	ttl      time.Duration
	now      func() time.Time
}

// NewExporter 创建一个新的 Exporter 实例。
func NewExporter(uploader Uploader, ttl time.Duration) *Exporter {
	return &Exporter{uploader: uploader, ttl: ttl, now: time.Now}
}

// Export 打包项目的当前文件并上传，返回预签名下载链接。
func (e *Exporter) Export(ctx context.Context, p *models.Project) (*Result, error) {
	var buf bytes.Buffer
	n, err := WriteZip(&buf, p.Files)
	if err != nil {
		return nil, fmt.Errorf("打包项目失败: %w", err)
	}

	now := e.now().UTC()
	key := fmt.Sprintf("exports/%s/%s.zip", p.ID, now.Format("20060102T150405.000000000"))
	if err := e.uploader.Upload(ctx, key, bytes.NewReader(buf.Bytes()), int64(buf.Len()), zipContentType); err != nil {
		return nil, fmt.Errorf("上传导出文件失败: %w", err)
	}

	url, err := e.uploader.URL(ctx, key, ArchiveName(p.Title), e.ttl)
	if err != nil {
		return nil, fmt.Errorf("生成下载链接失败: %w", err)
	}
	return &Result{Key: key, URL: url, ExpiresAt: now.Add(e.ttl), Files: n}, nil
}

// WriteZip 把文件写成 ZIP。目录写为以 "/" 结尾的空条目，路径去掉前导 "/"。
// 条目按路径排序，返回写入的文件数（不含目录）。
func WriteZip(w io.Writer, files []models.File) (int, error) {
	sorted := make([]models.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return filetree.Key(sorted[i].Path) < filetree.Key(sorted[j].Path) })

	zw := zip.NewWriter(w)
	count := 0
	for _, f := range sorted {
		name := strings.TrimPrefix(filetree.Key(f.Path), "/")
		if name == "" {
			continue
		}
		if f.IsDir() {
			if _, err := zw.Create(name + "/"); err != nil {
				return 0, err
			}
			continue
		}
		fw, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return 0, err
		}
		if _, err := io.WriteString(fw, f.Content); err != nil {
			return 0, err
		}
		count++
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return count, nil
}

// ArchiveName 把项目标题转换为下载文件名。
func ArchiveName(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(title)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "project"
	}
	return name + ".zip"
}
