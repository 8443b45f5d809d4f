package store

import (
	"strings"
	"unicode/utf8"
)

// EncodeContent 把文件内容编码为存储使用的字节。空内容编码为 nil。
// 非法的 UTF-8 序列在写入前被替换，保证读回时总能解码。
func EncodeContent(content string) []byte {
	if content == "" {
		return nil
	}
	return []byte(strings.ToValidUTF8(content, "�"))
}

// DecodeContent 把存储的字节解码为文本。nil 解码为空字符串。
// 字节不是合法 UTF-8 时返回 ("", false)，由调用方记录日志。
func DecodeContent(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", true
	}
	if !utf8.Valid(data) {
		return "", false
	}
	return string(data), true
}
