package filetree

import (
	"bufio"
	"io"
)

// ExpansionState 记录目录的展开状态，以路径为键，默认折叠。
// 它是纯展示状态，切换时不会修改任何文件记录。
type ExpansionState struct {
	open map[string]bool
}

// NewExpansionState 创建一个所有目录都折叠的状态。
func NewExpansionState() *ExpansionState {
	return &ExpansionState{open: make(map[string]bool)}
}

// IsExpanded 返回目录是否展开。
func (s *ExpansionState) IsExpanded(path string) bool {
	return s.open[Key(path)]
}

// Toggle 切换目录的展开状态，返回切换后的状态。
func (s *ExpansionState) Toggle(path string) bool {
	key := Key(path)
	s.open[key] = !s.open[key]
	return s.open[key]
}

// ExpandAll 展开树中的所有目录。
func (s *ExpansionState) ExpandAll(items []*Item) {
	for _, n := range items {
		if n.IsDirectory {
			s.open[Key(n.Path)] = true
			s.ExpandAll(n.Children)
		}
	}
}

// Render 以文本形式输出目录树。state 为 nil 时所有目录都展开。
func Render(w io.Writer, items []*Item, state *ExpansionState) error {
	bw := bufio.NewWriter(w)
	renderLevel(bw, items, "", state)
	return bw.Flush()
}

func renderLevel(w *bufio.Writer, items []*Item, prefix string, state *ExpansionState) {
	for i, n := range items {
		last := i == len(items)-1
		connector, childPrefix := "├── ", "│   "
		if last {
			connector, childPrefix = "└── ", "    "
		}

		expanded := state == nil || state.IsExpanded(n.Path)
		w.WriteString(prefix + connector + "[" + IconClass(n, expanded) + "] " + displayName(n))
		if n.IsDirectory {
			w.WriteString("/")
		}
		w.WriteString("\n")

		if n.IsDirectory && expanded {
			renderLevel(w, n.Children, prefix+childPrefix, state)
		}
	}
}
