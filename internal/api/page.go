package api

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"

	"docquiz/internal/extract"
	"docquiz/internal/models"
	"docquiz/internal/workspace"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*template.Template, error) {
	return template.New("").Funcs(template.FuncMap{
		"inc": func(i int) int { return i + 1 },
	}).ParseFS(templateFS, "templates/*.html")
}

type itemView struct {
	models.QuizItem
	Index       int
	AnswerIndex int
	Problems    []string
}

type pageData struct {
	Notices      []Notice
	WorkspaceID  string
	Source       *models.Source
	Preview      string
	Items        []itemView
	Warnings     []string
	Provider     string
	Model        string
	KeyRequired  bool
	HasKey       bool
	SessionKey   bool
	CanPublish   bool
	Accept       string
	NumQuestions int
	MaxUploadMB  int64
}

func (h *Handler) addNotice(c *gin.Context, level, format string, args ...any) {
	session := sessions.Default(c)
	session.AddFlash(Notice{Level: level, Message: fmt.Sprintf(format, args...)})
	if err := session.Save(); err != nil {
		h.log.Warn("Failed to save flash notice", zap.Error(err))
	}
}

func (h *Handler) backToPage(c *gin.Context) {
	c.Redirect(http.StatusSeeOther, "/")
}

// failPage records err as an error notice and sends the browser back to
// the page. State is left as it was.
func (h *Handler) failPage(c *gin.Context, action string, err error) {
	status := statusFor(err)
	h.logFailure(c, action, status, err)
	level := "error"
	if status < http.StatusInternalServerError {
		level = "warning"
	}
	h.addNotice(c, level, "%s", userMessage(err))
	h.backToPage(c)
}

// workspaceOrFail loads the session workspace, sending the browser back
// with an error notice when that is impossible.
func (h *Handler) workspaceOrFail(c *gin.Context) (*workspace.Workspace, bool) {
	ws, err := h.currentWorkspace(c)
	if err != nil {
		h.log.Error("Failed to load workspace", zap.Error(err))
		c.String(http.StatusInternalServerError, "session unavailable")
		return nil, false
	}
	return ws, true
}

// HandleIndex renders the single page: settings, upload, preview, quiz
// items and export.
func (h *Handler) HandleIndex(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}

	session := sessions.Default(c)
	var notices []Notice
	for _, f := range session.Flashes() {
		if n, ok := f.(Notice); ok {
			notices = append(notices, n)
		}
	}
	if len(notices) > 0 {
		if err := session.Save(); err != nil {
			h.log.Warn("Failed to save session after reading notices", zap.Error(err))
		}
	}

	llmCfg := h.providers.Config()
	data := pageData{
		Notices:      notices,
		WorkspaceID:  ws.ID,
		Source:       ws.Source,
		Warnings:     ws.Warnings,
		Provider:     llmCfg.Provider,
		Model:        llmCfg.ModelName(),
		KeyRequired:  h.providers.RequiresKey(),
		HasKey:       h.providers.HasKey(ws.APIKey),
		SessionKey:   ws.APIKey != "",
		CanPublish:   h.publisher != nil,
		Accept:       strings.Join(extract.SupportedExtensions(), ","),
		NumQuestions: h.generator.NumQuestions(),
		MaxUploadMB:  h.cfg.Server.MaxUploadBytes >> 20,
	}
	if ws.HasSource() {
		data.Preview = extract.Preview(ws.SourceText(), h.cfg.Quiz.PreviewLimit)
	}
	for i, it := range ws.Items {
		data.Items = append(data.Items, itemView{
			QuizItem:    it,
			Index:       i,
			AnswerIndex: it.AnswerIndex(),
			Problems:    it.Problems(),
		})
	}

	c.HTML(http.StatusOK, "index.html", data)
}

// HandleSettings stores or clears the session's API key.
func (h *Handler) HandleSettings(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	ws, err := h.setAPIKey(ws, c.PostForm("api_key"))
	if err != nil {
		h.failPage(c, "Save settings", err)
		return
	}
	if ws.APIKey == "" {
		h.addNotice(c, "info", "API key cleared.")
	} else {
		h.addNotice(c, "success", "API key saved for this session.")
	}
	h.backToPage(c)
}

// HandleUpload extracts the text of an uploaded document.
func (h *Handler) HandleUpload(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	up, err := h.readUpload(c)
	if err != nil {
		h.failPage(c, "Upload document", err)
		return
	}
	ws, err = h.storeUpload(ws, up)
	if err != nil {
		h.failPage(c, "Extract text", err)
		return
	}
	h.addNotice(c, "success", "Extracted %d characters from %s.", ws.Source.Runes, ws.Source.Name)
	h.backToPage(c)
}

// HandleGenerate replaces the quiz with freshly generated questions.
func (h *Handler) HandleGenerate(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	ws, res, err := h.generate(c.Request.Context(), ws, h.parseCount(c.PostForm("count")))
	if err != nil {
		h.failPage(c, "Generate quiz", err)
		return
	}
	h.addNotice(c, "success", "Generated %d questions.", len(ws.Items))
	if len(res.Warnings) > 0 {
		h.addNotice(c, "warning", "Some questions look malformed: %s", strings.Join(res.Warnings, "; "))
	}
	h.backToPage(c)
}

// HandleRegenerate swaps one question for a new one.
func (h *Handler) HandleRegenerate(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		h.failPage(c, "Regenerate question", err)
		return
	}
	_, warnings, err := h.regenerate(c.Request.Context(), ws, index)
	if err != nil {
		h.failPage(c, "Regenerate question", err)
		return
	}
	h.addNotice(c, "success", "Question %d was regenerated.", index+1)
	if len(warnings) > 0 {
		h.addNotice(c, "warning", "The new question looks malformed: %s", strings.Join(warnings, "; "))
	}
	h.backToPage(c)
}

// HandleDelete removes one question.
func (h *Handler) HandleDelete(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		h.failPage(c, "Delete question", err)
		return
	}
	if _, err := h.deleteItem(ws, index); err != nil {
		h.failPage(c, "Delete question", err)
		return
	}
	h.addNotice(c, "info", "Question %d was deleted.", index+1)
	h.backToPage(c)
}

// HandleExport downloads the quiz as CSV.
func (h *Handler) HandleExport(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	h.writeCSV(c, ws.Items)
}

// HandlePublish uploads the CSV export to the archive bucket.
func (h *Handler) HandlePublish(c *gin.Context) {
	ws, ok := h.workspaceOrFail(c)
	if !ok {
		return
	}
	url, err := h.publish(c.Request.Context(), ws)
	if err != nil {
		h.failPage(c, "Publish export", err)
		return
	}
	h.addNotice(c, "success", "Export published: %s", url)
	h.backToPage(c)
}

// HandleReset drops the workspace and starts over.
func (h *Handler) HandleReset(c *gin.Context) {
	session := sessions.Default(c)
	if id, ok := session.Get(workspaceSessionKey).(string); ok {
		h.store.Delete(id)
	}
	session.Delete(workspaceSessionKey)
	h.addNotice(c, "info", "Workspace cleared.")
	h.backToPage(c)
}
