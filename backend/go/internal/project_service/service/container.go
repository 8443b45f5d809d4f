// Package service 持有每个用户的项目状态，并把每次修改同步到远端存储。
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/demo"
	"IntentCode/backend/go/internal/project_service/reconcile"
	"IntentCode/backend/go/internal/project_service/store"
	"IntentCode/backend/go/pkg/filetree"
	"IntentCode/backend/go/pkg/logger"

	"github.com/google/uuid"
)

const (
	intentionTitle       = "Project from Intention"
	intentionDescription = "Your project is being generated"
)

// Syncer 把项目的完整文件列表同步到远端。
type Syncer interface {
	SyncFiles(ctx context.Context, projectID string, files []models.File, at time.Time) (reconcile.Result, error)
}

// Notifier 接收项目变更事件，用于推送给同一用户的其他连接。
type Notifier interface {
	Notify(userID string, event models.ProjectEvent)
}

// IntentionSink 把意图交给外部生成方。
type IntentionSink interface {
	Submit(ctx context.Context, rec models.IntentionRecord) error
}

// Deps 是 Container 的依赖，Notifier 和 Intentions 可以为空。
type Deps struct {
	Store      store.ProjectStore
	Syncer     Syncer
	Classifier *demo.Classifier
	Notifier   Notifier
	Intentions IntentionSink
	Logger     *logger.Logger
	Now        func() time.Time
}

// NewProjectInput 是创建项目的参数。
type NewProjectInput struct {
	Title        string
	Description  string
	Files        []models.File
	Context      string
	Instructions string
}

// NewFile 是添加文件的参数，ID 由服务端分配。
type NewFile struct {
	Name        string `json:"name"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	IsDirectory bool   `json:"isDirectory"`
	Content     string `json:"content"`
}

// Container 持有一个用户的项目集合、当前项目和加载状态。
//
// 内存状态由 mu 保护，远端调用期间不持有锁。
// 每次修改都基于调用开始时的项目快照，同一项目上的并发修改以最后完成的为准。
type Container struct {
	deps Deps

	mu        sync.Mutex
	identity  *models.Identity
	epoch     uint64 // 每次身份变化加一，旧的读取结果不再生效
	projects  []models.Project
	currentID string
	inflight  int
}

// NewContainer 创建一个未登录状态的 Container。
func NewContainer(deps Deps) *Container {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Container{deps: deps, projects: []models.Project{}}
}

// SetIdentity 切换当前用户并重新读取项目。传入 nil 表示登出，项目集合被清空。
func (c *Container) SetIdentity(ctx context.Context, ident *models.Identity) error {
	c.mu.Lock()
	c.epoch++
	c.projects = []models.Project{}
	c.currentID = ""
	if ident == nil {
		c.identity = nil
		c.mu.Unlock()
		return nil
	}
	cp := *ident
	c.identity = &cp
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// Identity 返回当前用户，未登录时返回 nil。
func (c *Container) Identity() *models.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return nil
	}
	cp := *c.identity
	return &cp
}

// Refresh 重新读取当前用户的项目。演示账号只得到固定生成的项目，不访问远端。
func (c *Container) Refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	ident, epoch := *c.identity, c.epoch
	c.inflight++
	c.mu.Unlock()
	defer c.done()

	var projects []models.Project
	if c.deps.Classifier.IsDemoIdentity(ident.Email) {
		projects = c.deps.Classifier.Projects(ident.Email, c.deps.Now())
	} else {
		fetched, err := c.deps.Store.FetchProjects(ctx, ident.ID)
		if err != nil {
			c.deps.Logger.WithUser(ident.ID).WithErr(err).Error("读取项目失败")
			return fmt.Errorf("读取项目失败: %w", err)
		}
		projects = fetched
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return nil
	}
	c.projects = projects
	if _, ok := c.indexLocked(c.currentID); !ok {
		c.currentID = ""
	}
	return nil
}

// Projects 返回当前项目集合的副本。
func (c *Container) Projects() []models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Project, len(c.projects))
	for i := range c.projects {
		out[i] = *c.projects[i].Clone()
	}
	return out
}

// Project 按 ID 返回项目副本。
func (c *Container) Project(id string) (*models.Project, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.indexLocked(id)
	if !ok {
		return nil, ErrProjectNotFound
	}
	return c.projects[i].Clone(), nil
}

// CurrentProject 返回当前选中的项目，没有选中时返回 nil。
func (c *Container) CurrentProject() *models.Project {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.indexLocked(c.currentID)
	if !ok {
		return nil
	}
	return c.projects[i].Clone()
}

// SetCurrentProject 选中一个项目，传入空字符串取消选中。
func (c *Container) SetCurrentProject(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id == "" {
		c.currentID = ""
		return nil
	}
	if _, ok := c.indexLocked(id); !ok {
		return ErrProjectNotFound
	}
	c.currentID = id
	return nil
}

// Loading 判断是否有操作正在进行。
func (c *Container) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inflight > 0
}

// Tree 由项目当前的文件记录构建排好序的目录树。
func (c *Container) Tree(id string) ([]*filetree.Item, error) {
	p, err := c.Project(id)
	if err != nil {
		return nil, err
	}
	roots := filetree.BuildTree(p.Files)
	filetree.Sort(roots)
	return roots, nil
}

// CreateProject 创建项目并放到集合最前面。
// 演示账号创建的项目只存在于内存中，ID 带有演示标记。
func (c *Container) CreateProject(ctx context.Context, in NewProjectInput) (*models.Project, error) {
	ident, epoch, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer c.done()

	if err := checkUniquePaths(in.Files); err != nil {
		return nil, err
	}

	var created *models.Project
	if c.deps.Classifier.IsDemoIdentity(ident.Email) {
		created = c.mockProject(in)
	} else {
		created, err = c.deps.Store.CreateProject(ctx, store.NewProject{
			OwnerID:      ident.ID,
			Title:        in.Title,
			Description:  in.Description,
			Context:      in.Context,
			Instructions: in.Instructions,
			Files:        in.Files,
		})
		if err != nil {
			c.deps.Logger.WithUser(ident.ID).WithErr(err).Error("创建项目失败")
			return nil, fmt.Errorf("创建项目失败: %w", err)
		}
	}

	c.mu.Lock()
	if c.epoch == epoch {
		c.projects = append([]models.Project{*created.Clone()}, c.projects...)
	}
	c.mu.Unlock()

	c.notify(ident.ID, models.EventProjectCreated, created)
	return created, nil
}

// CreateProjectFromIntention 用固定的标题和描述创建项目，意图作为知识上下文保存，
// 然后把意图交给外部生成方。没有给出文件时创建一个占位 README.md。
// 交接失败只记录日志，不影响已创建的项目。
func (c *Container) CreateProjectFromIntention(ctx context.Context, intention string, files []models.File) (*models.Project, error) {
	intention = strings.TrimSpace(intention)
	if intention == "" {
		return nil, ErrEmptyIntention
	}
	if len(files) == 0 {
		files = []models.File{placeholderReadme(intention)}
	}

	p, err := c.CreateProject(ctx, NewProjectInput{
		Title:       intentionTitle,
		Description: intentionDescription,
		Files:       files,
		Context:     intention,
	})
	if err != nil {
		return nil, err
	}

	ident := c.Identity()
	if c.deps.Intentions == nil || ident == nil || c.deps.Classifier.IsMock(p.ID, ident.Email) {
		return p, nil
	}
	rec := models.IntentionRecord{
		ID:          uuid.NewString(),
		UserID:      ident.ID,
		ProjectID:   p.ID,
		Intention:   intention,
		Status:      models.IntentionSubmitted,
		SubmittedAt: c.deps.Now().UTC(),
	}
	if err := c.deps.Intentions.Submit(ctx, rec); err != nil {
		c.deps.Logger.WithUser(ident.ID).WithErr(err).
			WithPayload(map[string]interface{}{"project_id": p.ID}).
			Warn("意图交接失败，项目已创建")
	}
	return p, nil
}

// AddFile 给项目添加一个文件或目录。
// 没有扩展名的文件名会按类型补全扩展名；没有类型时根据名称和内容推断。
func (c *Container) AddFile(ctx context.Context, projectID string, in NewFile) (models.File, error) {
	file, err := prepareFile(in)
	if err != nil {
		return models.File{}, err
	}

	_, err = c.mutateFiles(ctx, projectID, func(p *models.Project) error {
		key := filetree.Key(file.Path)
		for _, f := range p.Files {
			if filetree.Key(f.Path) == key {
				return fmt.Errorf("%w: %s", ErrDuplicatePath, file.Path)
			}
		}
		p.Files = append(p.Files, file)
		return nil
	})
	if err != nil {
		return models.File{}, err
	}
	return file, nil
}

// UpdateFile 覆盖一个文件的内容。
func (c *Container) UpdateFile(ctx context.Context, projectID, fileID, content string) (*models.Project, error) {
	return c.mutateFiles(ctx, projectID, func(p *models.Project) error {
		i, ok := p.FileByID(fileID)
		if !ok {
			return ErrFileNotFound
		}
		if p.Files[i].IsDir() {
			return ErrIsDirectory
		}
		p.Files[i].Content = content
		return nil
	})
}

// DeleteFile 删除一个文件记录。删除目录不会级联删除其下的记录，它们在树中变为根节点。
func (c *Container) DeleteFile(ctx context.Context, projectID, fileID string) (*models.Project, error) {
	return c.mutateFiles(ctx, projectID, func(p *models.Project) error {
		i, ok := p.FileByID(fileID)
		if !ok {
			return ErrFileNotFound
		}
		p.Files = append(p.Files[:i], p.Files[i+1:]...)
		return nil
	})
}

// UpdateProjectContext 更新项目的知识上下文。
func (c *Container) UpdateProjectContext(ctx context.Context, projectID, value string) (*models.Project, error) {
	return c.updateField(ctx, projectID, models.FieldKnowledgeContext, value)
}

// UpdateProjectInstructions 更新项目的知识指令。
func (c *Container) UpdateProjectInstructions(ctx context.Context, projectID, value string) (*models.Project, error) {
	return c.updateField(ctx, projectID, models.FieldKnowledgeInstructions, value)
}

// SaveProject 保存项目的标题、描述和两个知识字段，文件列表不受影响。
func (c *Container) SaveProject(ctx context.Context, in models.Project) (*models.Project, error) {
	return c.mutate(ctx, in.ID, models.EventProjectSaved,
		func(p *models.Project) error {
			p.Title = in.Title
			p.Description = in.Description
			p.KnowledgeContext = in.KnowledgeContext
			p.KnowledgeInstructions = in.KnowledgeInstructions
			return nil
		},
		func(ctx context.Context, p *models.Project) error {
			return c.deps.Store.SaveProject(ctx, p)
		})
}

func (c *Container) updateField(ctx context.Context, projectID string, field models.ProjectField, value string) (*models.Project, error) {
	return c.mutate(ctx, projectID, models.EventFieldChanged,
		func(p *models.Project) error {
			switch field {
			case models.FieldKnowledgeContext:
				p.KnowledgeContext = value
			case models.FieldKnowledgeInstructions:
				p.KnowledgeInstructions = value
			}
			return nil
		},
		func(ctx context.Context, p *models.Project) error {
			return c.deps.Store.UpdateProjectField(ctx, p.ID, field, value, p.UpdatedAt)
		})
}

func (c *Container) mutateFiles(ctx context.Context, projectID string, apply func(p *models.Project) error) (*models.Project, error) {
	return c.mutate(ctx, projectID, models.EventFilesChanged, apply,
		func(ctx context.Context, p *models.Project) error {
			_, err := c.deps.Syncer.SyncFiles(ctx, p.ID, p.Files, p.UpdatedAt)
			return err
		})
}

// mutate 是所有修改操作的公共流程：
// 校验登录、取快照、在副本上修改、刷新 updated_at、非演示项目写远端，
// 最后按 ID 替换内存中的项目。远端失败时内存状态保持不变。
func (c *Container) mutate(
	ctx context.Context,
	projectID string,
	event models.ProjectEventType,
	apply func(p *models.Project) error,
	persist func(ctx context.Context, p *models.Project) error,
) (*models.Project, error) {
	ident, epoch, err := c.begin()
	if err != nil {
		return nil, err
	}
	defer c.done()

	c.mu.Lock()
	i, ok := c.indexLocked(projectID)
	if !ok {
		c.mu.Unlock()
		return nil, ErrProjectNotFound
	}
	next := c.projects[i].Clone()
	c.mu.Unlock()

	if err := apply(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = nextTimestamp(next.UpdatedAt, c.deps.Now())

	if !c.deps.Classifier.IsMock(projectID, ident.Email) {
		if err := persist(ctx, next); err != nil {
			c.deps.Logger.WithUser(ident.ID).WithErr(err).
				WithPayload(map[string]interface{}{"project_id": projectID, "event": event}).
				Error("项目修改写入远端失败")
			return nil, err
		}
	}

	c.mu.Lock()
	if c.epoch == epoch {
		if i, ok := c.indexLocked(projectID); ok {
			c.projects[i] = *next.Clone()
		}
	}
	c.mu.Unlock()

	c.notify(ident.ID, event, next)
	return next, nil
}

// begin 要求已登录，并把进行中的操作数加一。调用方必须 defer c.done()。
func (c *Container) begin() (models.Identity, uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return models.Identity{}, 0, ErrUnauthenticated
	}
	c.inflight++
	return *c.identity, c.epoch, nil
}

func (c *Container) done() {
	c.mu.Lock()
	c.inflight--
	c.mu.Unlock()
}

func (c *Container) indexLocked(id string) (int, bool) {
	if id == "" {
		return -1, false
	}
	for i := range c.projects {
		if c.projects[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

func (c *Container) notify(userID string, typ models.ProjectEventType, p *models.Project) {
	if c.deps.Notifier == nil {
		return
	}
	c.deps.Notifier.Notify(userID, models.ProjectEvent{Type: typ, ProjectID: p.ID, UpdatedAt: p.UpdatedAt})
}

func (c *Container) mockProject(in NewProjectInput) *models.Project {
	now := c.deps.Now().UTC().Truncate(time.Microsecond)
	files := make([]models.File, len(in.Files))
	for i, f := range in.Files {
		// 与存储一致，文件 ID 由服务端分配。
		f.ID = uuid.NewString()
		f.Path = filetree.NormalizePath(f.Path)
		if f.Name == "" {
			f.Name = filetree.BaseName(f.Path)
		}
		files[i] = f
	}
	return &models.Project{
		ID:                    c.deps.Classifier.MockMarker() + "-" + uuid.NewString(),
		Title:                 in.Title,
		Description:           in.Description,
		Files:                 files,
		KnowledgeContext:      in.Context,
		KnowledgeInstructions: in.Instructions,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// nextTimestamp 返回严格大于 prev 的时间，精度与存储一致（微秒）。
func nextTimestamp(prev, now time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		return prev.Add(time.Microsecond)
	}
	return now
}

func prepareFile(in NewFile) (models.File, error) {
	name := strings.TrimSpace(in.Name)
	path := strings.TrimSpace(in.Path)
	if name == "" && path == "" {
		return models.File{}, ErrInvalidFile
	}

	// 路径为空或以 "/" 结尾时视为所在目录；否则路径的最后一段就是文件名。
	dir := path
	if path != "" && !strings.HasSuffix(path, "/") {
		dir = filetree.ParentPath(path)
		if name == "" {
			name = filetree.BaseName(path)
		}
	}

	f := models.File{ID: uuid.NewString(), IsDirectory: in.IsDirectory, Type: in.Type}
	if f.IsDirectory || f.Type == models.DirectoryType {
		f.IsDirectory = true
		f.Type = models.DirectoryType
	} else {
		name = filetree.CompleteName(name, f.Type)
		if f.Type == "" {
			f.Type = filetree.InferType(name, []byte(in.Content))
		}
		f.Content = in.Content
	}

	f.Path = joinPath(dir, name)
	f.Name = filetree.BaseName(f.Path)
	return f, nil
}

func joinPath(dir, name string) string {
	key := filetree.Key(dir)
	if key == "/" {
		return "/" + name
	}
	return key + "/" + name
}

func checkUniquePaths(files []models.File) error {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		key := filetree.Key(f.Path)
		if _, dup := seen[key]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicatePath, filetree.NormalizePath(f.Path))
		}
		seen[key] = struct{}{}
	}
	return nil
}

func placeholderReadme(intention string) models.File {
	return models.File{
		ID:      uuid.NewString(),
		Name:    "README.md",
		Path:    "/README.md",
		Type:    "markdown",
		Content: "# " + intentionTitle + "\n\n" + intention + "\n",
	}
}
