package filetree

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// 类型标签到图标类名的映射。类型是开放的字符串，不在表中的类型走兜底分支。
var iconClasses = map[string]string{
	"javascript": "file-code-js",
	"typescript": "file-code-ts",
	"html":       "file-code-html",
	"css":        "file-code-css",
	"json":       "file-json",
	"markdown":   "file-text",
	"yaml":       "file-cog",
	"plaintext":  "file-text",
}

// 扩展名到编辑器语言的映射。
var extensionLanguages = map[string]string{
	"js":   "javascript",
	"jsx":  "javascript",
	"ts":   "typescript",
	"tsx":  "typescript",
	"html": "html",
	"css":  "css",
	"json": "json",
	"md":   "markdown",
	"yaml": "yaml",
	"yml":  "yaml",
}

// 新建文件时没有扩展名的名称按类型补全。
var typeExtensions = map[string]string{
	"javascript": "js",
	"typescript": "ts",
	"html":       "html",
	"css":        "css",
	"json":       "json",
	"markdown":   "md",
	"yaml":       "yaml",
}

const (
	iconFile       = "file"
	iconFolder     = "folder"
	iconFolderOpen = "folder-open"
)

// IconClass 返回节点的图标类名。结果只取决于类型、名称和展开状态。
func IconClass(item *Item, expanded bool) string {
	if item.IsDir() {
		if expanded {
			return iconFolderOpen
		}
		return iconFolder
	}
	if class, ok := iconClasses[strings.ToLower(item.Type)]; ok {
		return class
	}
	if item.Type == "" {
		if class, ok := iconClasses[LanguageFor(displayName(item), "")]; ok {
			return class
		}
	}
	return iconFile
}

// LanguageFor 决定编辑器使用的语言：有类型标签时直接使用，否则看扩展名。
func LanguageFor(name, typ string) string {
	if typ != "" {
		return typ
	}
	if lang, ok := extensionLanguages[extension(name)]; ok {
		return lang
	}
	return "plaintext"
}

// ExtensionFor 返回类型对应的默认扩展名。
func ExtensionFor(typ string) (string, bool) {
	ext, ok := typeExtensions[strings.ToLower(typ)]
	return ext, ok
}

// CompleteName 给没有扩展名的文件名补上类型对应的扩展名。
func CompleteName(name, typ string) string {
	if strings.Contains(name, ".") {
		return name
	}
	if ext, ok := ExtensionFor(typ); ok {
		return name + "." + ext
	}
	return name
}

// InferType 为没有类型标签的新文件推断类型：先看扩展名，再嗅探内容。
func InferType(name string, content []byte) string {
	if lang := LanguageFor(name, ""); lang != "plaintext" {
		return lang
	}
	if len(content) == 0 {
		return "plaintext"
	}
	for m := mimetype.Detect(content); m != nil; m = m.Parent() {
		switch {
		case m.Is("text/html"):
			return "html"
		case m.Is("application/json"):
			return "json"
		case m.Is("text/javascript"), m.Is("application/javascript"):
			return "javascript"
		case m.Is("text/x-markdown"), m.Is("text/markdown"):
			return "markdown"
		}
	}
	return "plaintext"
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
}
