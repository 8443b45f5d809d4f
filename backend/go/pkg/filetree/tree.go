// Package filetree 从扁平的、带路径的文件记录重建层级目录树。
package filetree

import (
	"sort"
	"strings"

	"IntentCode/backend/go/internal/models"
)

// Item 是目录树中的一个节点，和源记录共享同一个 ID。
// 节点只用于展示，每次都从当前记录集合重新构建。
type Item struct {
	models.File
	Children []*Item `json:"children,omitempty"`
}

// Entry 是展平后的 (路径, ID) 对。
type Entry struct {
	Path string
	ID   string
}

// NormalizePath 保证路径以 "/" 开头，已经以 "/" 开头的路径保持不变。
func NormalizePath(p string) string {
	if strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}

// Segments 返回路径中所有非空的段。
func Segments(p string) []string {
	parts := strings.Split(p, "/")
	segs := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			segs = append(segs, part)
		}
	}
	return segs
}

// Depth 返回路径的非空段数。
func Depth(p string) int {
	return len(Segments(p))
}

// ParentPath 去掉最后一段得到父路径，一段及以下的路径父路径为 "/"。
func ParentPath(p string) string {
	segs := Segments(p)
	if len(segs) <= 1 {
		return "/"
	}
	return "/" + strings.Join(segs[:len(segs)-1], "/")
}

// BaseName 返回路径的最后一段，空路径返回 "unnamed"。
func BaseName(p string) string {
	segs := Segments(p)
	if len(segs) == 0 {
		return "unnamed"
	}
	return segs[len(segs)-1]
}

// Key 是路径在查找表中的规范形式，忽略多余的斜杠。
func Key(p string) string {
	return "/" + strings.Join(Segments(p), "/")
}

// BuildTree 根据记录的路径解析父子关系，返回根节点列表。
//
// 目录按深度升序处理，保证父目录总是先于子目录进入查找表；
// 文件随后按同样的规则挂到已存在的目录下。
// 找不到父目录的记录作为根节点返回，而不是报错。
// 路径重复时每条记录都会出现在结果中，查找表以后出现的目录为准。
func BuildTree(records []models.File) []*Item {
	var dirs, files []*Item
	for _, r := range records {
		item := &Item{File: r}
		item.Path = NormalizePath(r.Path)
		if item.IsDir() {
			item.IsDirectory = true
			dirs = append(dirs, item)
		} else {
			files = append(files, item)
		}
	}

	sort.SliceStable(dirs, func(i, j int) bool {
		return Depth(dirs[i].Path) < Depth(dirs[j].Path)
	})

	lookup := make(map[string]*Item, len(dirs))
	roots := make([]*Item, 0, len(records))
	attach := func(item *Item) {
		segs := Segments(item.Path)
		if len(segs) <= 1 {
			roots = append(roots, item)
			return
		}
		if parent, ok := lookup[ParentPath(item.Path)]; ok {
			parent.Children = append(parent.Children, item)
			return
		}
		roots = append(roots, item)
	}

	for _, d := range dirs {
		attach(d)
		lookup[Key(d.Path)] = d
	}
	for _, f := range files {
		attach(f)
	}
	return roots
}

// Flatten 深度优先展开目录树，得到 (路径, ID) 列表。
func Flatten(items []*Item) []Entry {
	var out []Entry
	var walk func([]*Item)
	walk = func(nodes []*Item) {
		for _, n := range nodes {
			out = append(out, Entry{Path: n.Path, ID: n.ID})
			walk(n.Children)
		}
	}
	walk(items)
	return out
}

// FindByPath 在目录树中查找指定路径的节点。
func FindByPath(items []*Item, path string) *Item {
	key := Key(path)
	for _, n := range items {
		if Key(n.Path) == key {
			return n
		}
		if found := FindByPath(n.Children, path); found != nil {
			return found
		}
	}
	return nil
}

// Sort 按展示顺序原地排序：目录在前，同类按名称排序。
func Sort(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].IsDirectory != items[j].IsDirectory {
			return items[i].IsDirectory
		}
		return displayName(items[i]) < displayName(items[j])
	})
	for _, n := range items {
		Sort(n.Children)
	}
}

func displayName(item *Item) string {
	if item.Name != "" {
		return item.Name
	}
	return BaseName(item.Path)
}
