package demo

import (
	"encoding/base64"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/pkg/filetree"

	"github.com/google/uuid"
)

const day = 24 * time.Hour

type seedFile struct {
	path    string
	typ     string
	content string
}

type seedProject struct {
	slug         string
	title        string
	description  string
	context      string
	instructions string
	createdAgo   time.Duration
	updatedAgo   time.Duration
	files        []seedFile
}

var seeds = []seedProject{
	{
		slug:         "real-estate",
		title:        "Real Estate Team",
		description:  "Create a team of agents that can help me sell my house.",
		context:      "My house is in a suburban area with good schools and parks nearby, ZIP 75115.",
		instructions: "Create a team of agents that can help me sell my house.",
		createdAgo:   7 * day,
		updatedAgo:   2 * day,
		files: []seedFile{
			{"/server.yaml", "yaml", "# intent-based ai agents for real estate"},
			{"/typescript", models.DirectoryType, ""},
			{"/typescript/README.md", "markdown", "# Real Estate AI Team\n\nA team of agents to assist with selling houses."},
			{"/typescript/package.json", "json", "{\n  \"name\": \"real-estate-team\",\n  \"version\": \"1.0.0\"\n}"},
			{"/typescript/src", models.DirectoryType, ""},
			{"/typescript/src/tools", models.DirectoryType, ""},
			{"/typescript/src/tools/property.ts", "typescript", "// Property management tools"},
			{"/typescript/src/tools/market.ts", "typescript", "// Market analysis tools"},
			{"/typescript/src/index.ts", "typescript", "// Main entry point for the application"},
			{"/typescript/src/agents", models.DirectoryType, ""},
			{"/typescript/src/agents/seller.ts", "typescript", "// Seller agent implementation"},
			{"/typescript/src/agents/buyer.ts", "typescript", "// Buyer agent implementation"},
			{"/typescript/tsconfig.json", "json", "{\n  \"compilerOptions\": {\n    \"target\": \"ES2020\"\n  }\n}"},
		},
	},
	{
		slug:        "task-manager",
		title:       "Task Management App",
		description: "Simple task tracking and productivity application",
		createdAgo:  14 * day,
		updatedAgo:  5 * day,
		files: []seedFile{
			{"/package.json", "json", "{\n  \"name\": \"task-manager\",\n  \"version\": \"1.0.0\"\n}"},
			{"/bunup.config.ts", "typescript", "export default {\n  // bunup configuration\n};"},
			{"/src", models.DirectoryType, ""},
			{"/src/index.ts", "typescript", "// Task manager entry point"},
		},
	},
}

// Projects 为演示账号生成固定的项目集合，按 updated_at 降序排列。
// 项目 ID 和文件 ID 只由邮箱和路径决定，重复调用结果一致；时间戳相对 now 计算。
func (c *Classifier) Projects(email string, now time.Time) []models.Project {
	suffix := base64.RawURLEncoding.EncodeToString([]byte(email))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}

	projects := make([]models.Project, 0, len(seeds))
	for _, s := range seeds {
		id := c.mockMarker + "-" + s.slug + "-" + suffix
		ns := uuid.NewSHA1(uuid.NameSpaceURL, []byte(id))

		files := make([]models.File, 0, len(s.files))
		for _, f := range s.files {
			isDir := f.typ == models.DirectoryType
			files = append(files, models.File{
				ID:          uuid.NewSHA1(ns, []byte(f.path)).String(),
				Name:        filetree.BaseName(f.path),
				Path:        f.path,
				Type:        f.typ,
				IsDirectory: isDir,
				Content:     f.content,
			})
		}

		projects = append(projects, models.Project{
			ID:                    id,
			Title:                 s.title,
			Description:           s.description,
			Files:                 files,
			KnowledgeContext:      s.context,
			KnowledgeInstructions: s.instructions,
			CreatedAt:             now.Add(-s.createdAgo),
			UpdatedAt:             now.Add(-s.updatedAgo),
		})
	}
	return projects
}
