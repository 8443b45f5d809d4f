package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"IntentCode/backend/go/internal/auth"
	"IntentCode/backend/go/internal/models"
	"IntentCode/backend/go/internal/project_service/export"
	"IntentCode/backend/go/internal/project_service/lock"
	"IntentCode/backend/go/internal/project_service/reconcile"
	"IntentCode/backend/go/internal/project_service/service"
	"IntentCode/backend/go/pkg/circuitbreaker"
	"IntentCode/backend/go/pkg/filetree"
	"IntentCode/backend/go/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 3 * time.Second

// Exporter packages a project and returns a download link.
type Exporter interface {
	Export(ctx context.Context, p *models.Project) (*export.Result, error)
}

// Check probes one backing service.
type Check func(ctx context.Context) error

// IntentionLister lists a user's submitted intentions.
type IntentionLister interface {
	List(ctx context.Context, userID string, limit int64) ([]models.IntentionRecord, error)
}

// API provides handlers for the project service.
type API struct {
	registry   *service.Registry
	exporter   Exporter
	intentions IntentionLister
	hub        *Hub
	checks     map[string]Check
	logger     *logger.Logger
	upgrader   websocket.Upgrader
}

// Options carries the optional collaborators of the API. Nil members disable their routes.
type Options struct {
	Exporter   Exporter
	Intentions IntentionLister
	Hub        *Hub
	Checks     map[string]Check // keyed by backend name, probed by /readyz
}

// NewAPI creates a new API handler.
func NewAPI(registry *service.Registry, opts Options, log *logger.Logger) *API {
	return &API{
		registry:   registry,
		exporter:   opts.Exporter,
		intentions: opts.Intentions,
		hub:        opts.Hub,
		checks:     opts.Checks,
		logger:     log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Tokens, not cookies, authenticate the socket.
			},
		},
	}
}

type createProjectRequest struct {
	Title              string        `json:"title" binding:"required"`
	Description        string        `json:"description"`
	Files              []models.File `json:"files"`
	KnowledgeContext   string        `json:"knowledge_context"`
	CustomContext      string        `json:"customContext"`
	KnowledgeInstr     string        `json:"knowledge_instructions"`
	CustomInstructions string        `json:"customInstructions"`
}

type intentionRequest struct {
	Intention string        `json:"intention" binding:"required"`
	Files     []models.File `json:"files"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type contentRequest struct {
	Content string `json:"content"`
}

type sessionResponse struct {
	Identity         *models.Identity `json:"identity"`
	CurrentProjectID string           `json:"current_project_id,omitempty"`
	Loading          bool             `json:"loading"`
	Projects         int              `json:"projects"`
}

// treeNode is the wire form of a tree item. Field names match models.File so clients
// can decode it straight into filetree.Item.
type treeNode struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	IsDirectory bool       `json:"isDirectory,omitempty"`
	Icon        string     `json:"icon"`
	Language    string     `json:"language,omitempty"`
	Children    []treeNode `json:"children,omitempty"`
}

// ListProjectsHandler returns the caller's projects. ?refresh=true refetches them first.
func (a *API) ListProjectsHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	if refresh, _ := strconv.ParseBool(c.Query("refresh")); refresh {
		if err := ctr.Refresh(c.Request.Context()); err != nil {
			a.fail(c, err)
			return
		}
	}

	resp := gin.H{"projects": ctr.Projects()}
	if cur := ctr.CurrentProject(); cur != nil {
		resp["current_project_id"] = cur.ID
	}
	c.JSON(http.StatusOK, resp)
}

// CreateProjectHandler creates a project from an explicit file list.
func (a *API) CreateProjectHandler(c *gin.Context) {
	var req createProjectRequest
	if !a.bind(c, &req) {
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	p, err := ctr.CreateProject(c.Request.Context(), service.NewProjectInput{
		Title:        req.Title,
		Description:  req.Description,
		Files:        req.Files,
		Context:      firstNonEmpty(req.KnowledgeContext, req.CustomContext),
		Instructions: firstNonEmpty(req.KnowledgeInstr, req.CustomInstructions),
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// CreateFromIntentionHandler creates a project from a natural-language intention.
func (a *API) CreateFromIntentionHandler(c *gin.Context) {
	var req intentionRequest
	if !a.bind(c, &req) {
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	p, err := ctr.CreateProjectFromIntention(c.Request.Context(), req.Intention, req.Files)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListIntentionsHandler returns the caller's most recent intention records.
func (a *API) ListIntentionsHandler(c *gin.Context) {
	ident, _ := auth.FromContext(c)
	if a.intentions == nil {
		c.JSON(http.StatusOK, gin.H{"intentions": []models.IntentionRecord{}})
		return
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)

	records, err := a.intentions.List(c.Request.Context(), ident.ID, limit)
	if err != nil {
		a.fail(c, err)
		return
	}
	if records == nil {
		records = []models.IntentionRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"intentions": records})
}

// GetProjectHandler returns one project with its files.
func (a *API) GetProjectHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	p, err := ctr.Project(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// SaveProjectHandler saves title, description and knowledge fields. Files in the body are ignored.
func (a *API) SaveProjectHandler(c *gin.Context) {
	var in models.Project
	if !a.bind(c, &in) {
		return
	}
	in.ID = c.Param("id")
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	p, err := ctr.SaveProject(c.Request.Context(), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// TreeHandler returns the sorted directory tree of a project, without file contents.
func (a *API) TreeHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	roots, err := ctr.Tree(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": toTreeNodes(roots)})
}

// AddFileHandler adds a file or directory to a project.
func (a *API) AddFileHandler(c *gin.Context) {
	var in service.NewFile
	if !a.bind(c, &in) {
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	f, err := ctr.AddFile(c.Request.Context(), c.Param("id"), in)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

// UpdateFileHandler overwrites the content of a file.
func (a *API) UpdateFileHandler(c *gin.Context) {
	var req contentRequest
	if !a.bind(c, &req) {
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	p, err := ctr.UpdateFile(c.Request.Context(), c.Param("id"), c.Param("fileId"), req.Content)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteFileHandler removes a file record.
func (a *API) DeleteFileHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	p, err := ctr.DeleteFile(c.Request.Context(), c.Param("id"), c.Param("fileId"))
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdateContextHandler sets the knowledge context of a project.
func (a *API) UpdateContextHandler(c *gin.Context) {
	a.updateField(c, (*service.Container).UpdateProjectContext)
}

// UpdateInstructionsHandler sets the knowledge instructions of a project.
func (a *API) UpdateInstructionsHandler(c *gin.Context) {
	a.updateField(c, (*service.Container).UpdateProjectInstructions)
}

func (a *API) updateField(c *gin.Context, update func(*service.Container, context.Context, string, string) (*models.Project, error)) {
	var req valueRequest
	if !a.bind(c, &req) {
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}

	p, err := update(ctr, c.Request.Context(), c.Param("id"), req.Value)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// ExportHandler uploads a ZIP of the project and returns a presigned link.
func (a *API) ExportHandler(c *gin.Context) {
	if a.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export storage is not configured"})
		return
	}
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	p, err := ctr.Project(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}

	res, err := a.exporter.Export(c.Request.Context(), p)
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ArchiveHandler streams the project ZIP directly in the response.
func (a *API) ArchiveHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	p, err := ctr.Project(c.Param("id"))
	if err != nil {
		a.fail(c, err)
		return
	}

	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+export.ArchiveName(p.Title)+`"`)
	c.Status(http.StatusOK)
	if _, err := export.WriteZip(c.Writer, p.Files); err != nil {
		a.logger.WithErr(err).WithPayload(map[string]interface{}{"project_id": p.ID}).
			Error("Failed to stream project archive")
	}
}

// SelectProjectHandler marks a project as current.
func (a *API) SelectProjectHandler(c *gin.Context) {
	a.selectProject(c, c.Param("id"))
}

// ClearSelectionHandler clears the current project.
func (a *API) ClearSelectionHandler(c *gin.Context) {
	a.selectProject(c, "")
}

func (a *API) selectProject(c *gin.Context, id string) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	if err := ctr.SetCurrentProject(id); err != nil {
		a.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SessionHandler describes the caller's in-memory state.
func (a *API) SessionHandler(c *gin.Context) {
	ctr, ok := a.container(c)
	if !ok {
		return
	}
	resp := sessionResponse{
		Identity: ctr.Identity(),
		Loading:  ctr.Loading(),
		Projects: len(ctr.Projects()),
	}
	if cur := ctr.CurrentProject(); cur != nil {
		resp.CurrentProjectID = cur.ID
	}
	c.JSON(http.StatusOK, resp)
}

// SignOutHandler drops the caller's in-memory state.
func (a *API) SignOutHandler(c *gin.Context) {
	ident, _ := auth.FromContext(c)
	a.registry.Drop(ident.ID)
	c.Status(http.StatusNoContent)
}

// WebSocketHandler upgrades the connection and streams project events for the caller.
func (a *API) WebSocketHandler(c *gin.Context) {
	if a.hub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "live updates are disabled"})
		return
	}
	ident, ok := auth.FromContext(c)
	if !ok {
		a.fail(c, service.ErrUnauthenticated)
		return
	}

	conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.WithUser(ident.ID).WithErr(err).Error("Failed to upgrade connection")
		return
	}
	a.logger.WithUser(ident.ID).Info("WebSocket connection established")
	a.hub.Serve(ident.ID, conn)
}

// HealthHandler reports liveness.
func (a *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": a.registry.Len()})
}

// ReadyHandler probes every configured backend and reports 503 if any fails.
func (a *API) ReadyHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(a.checks))
		healthy = true
		g       errgroup.Group
	)
	for name, check := range a.checks {
		name, check := name, check
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if !healthy {
		a.logger.WithPayload(map[string]interface{}{"checks": results}).Warn("Readiness check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results})
}

func (a *API) container(c *gin.Context) (*service.Container, bool) {
	ident, ok := auth.FromContext(c)
	if !ok {
		a.fail(c, service.ErrUnauthenticated)
		return nil, false
	}
	ctr, err := a.registry.Get(c.Request.Context(), ident)
	if err != nil {
		a.fail(c, err)
		return nil, false
	}
	return ctr, true
}

func (a *API) bind(c *gin.Context, v interface{}) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		a.logger.WithErr(err).Warn("Invalid request payload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return false
	}
	return true
}

// fail maps a service error to a status code and writes it.
func (a *API) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log := a.logger
		if ident, ok := auth.FromContext(c); ok {
			log = log.WithUser(ident.ID)
		}
		log.WithError(models.ErrorInfo{Message: err.Error(), StatusCode: status}).
			WithPayload(map[string]interface{}{"path": c.FullPath()}).
			Error("Request failed")
	}

	body := gin.H{"error": err.Error()}
	var batch *reconcile.BatchError
	if errors.As(err, &batch) {
		failed := make([]string, 0, len(batch.Failures))
		for kind := range batch.Failures {
			failed = append(failed, string(kind))
		}
		body["failed"] = failed
	}
	c.AbortWithStatusJSON(status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrProjectNotFound), errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicatePath):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidFile),
		errors.Is(err, service.ErrIsDirectory),
		errors.Is(err, service.ErrEmptyIntention):
		return http.StatusBadRequest
	case errors.Is(err, lock.ErrLockTimeout):
		return http.StatusConflict
	case errors.Is(err, circuitbreaker.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, reconcile.ErrPartialBatch):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toTreeNodes(items []*filetree.Item) []treeNode {
	out := make([]treeNode, 0, len(items))
	for _, it := range items {
		n := treeNode{
			ID:          it.ID,
			Name:        it.Name,
			Path:        it.Path,
			Type:        it.Type,
			IsDirectory: it.IsDirectory,
			Icon:        filetree.IconClass(it, false),
		}
		if it.IsDirectory {
			n.Children = toTreeNodes(it.Children)
		} else {
			n.Language = filetree.LanguageFor(it.Name, it.Type)
		}
		out = append(out, n)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
