package api

import (
	"net/http"

	"docquiz/internal/extract"
	"docquiz/internal/llm"
	"docquiz/internal/models"
	"docquiz/internal/workspace"

	"github.com/gin-gonic/gin"
)

// QuizResponse is the JSON view of a workspace.
type QuizResponse struct {
	WorkspaceID string            `json:"workspace_id"`
	Source      *models.Source    `json:"source"`
	Items       []models.QuizItem `json:"items"`
	Warnings    []string          `json:"warnings,omitempty"`
	HasAPIKey   bool              `json:"has_api_key"`
}

// UploadResponse is returned after a document was extracted.
type UploadResponse struct {
	Source  *models.Source `json:"source"`
	Preview string         `json:"preview"`
}

// GenerateRequest is the optional body of POST /api/quiz/generate.
type GenerateRequest struct {
	Count int `json:"count"`
}

// GenerateResponse is returned after a full generation.
type GenerateResponse struct {
	Items     []models.QuizItem `json:"items"`
	Warnings  []string          `json:"warnings,omitempty"`
	Model     string            `json:"model"`
	Usage     llm.Usage         `json:"usage"`
	LatencyMS int64             `json:"latency_ms"`
}

// RegenerateResponse is returned after one question was replaced.
type RegenerateResponse struct {
	Index    int               `json:"index"`
	Item     models.QuizItem   `json:"item"`
	Items    []models.QuizItem `json:"items"`
	Warnings []string          `json:"warnings,omitempty"`
}

// SettingsRequest sets or clears the session's API key.
type SettingsRequest struct {
	APIKey string `json:"api_key"`
}

func (h *Handler) quizResponse(ws *workspace.Workspace) QuizResponse {
	items := ws.Items
	if items == nil {
		items = []models.QuizItem{}
	}
	return QuizResponse{
		WorkspaceID: ws.ID,
		Source:      ws.Source,
		Items:       items,
		Warnings:    ws.Warnings,
		HasAPIKey:   h.providers.HasKey(ws.APIKey),
	}
}

// handleAPIError logs err and aborts with {"error": ...}.
func (h *Handler) handleAPIError(c *gin.Context, action string, err error) {
	status := statusFor(err)
	h.logFailure(c, action, status, err)
	c.AbortWithStatusJSON(status, gin.H{"error": userMessage(err)})
}

func (h *Handler) apiWorkspace(c *gin.Context) (*workspace.Workspace, bool) {
	ws, err := h.currentWorkspace(c)
	if err != nil {
		h.handleAPIError(c, "Load workspace", err)
		return nil, false
	}
	return ws, true
}

// HandleHealth reports liveness and the configured model.
func (h *Handler) HandleHealth(c *gin.Context) {
	cfg := h.providers.Config()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"provider": cfg.Provider,
		"model":    cfg.ModelName(),
	})
}

// HandleGetQuiz returns the session's workspace.
func (h *Handler) HandleGetQuiz(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.quizResponse(ws))
}

// HandleAPISettings stores or clears the session's API key.
func (h *Handler) HandleAPISettings(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	var req SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	ws, err := h.setAPIKey(ws, req.APIKey)
	if err != nil {
		h.handleAPIError(c, "Save settings", err)
		return
	}
	c.JSON(http.StatusOK, h.quizResponse(ws))
}

// HandleAPIUpload extracts the text of a multipart "file" upload.
func (h *Handler) HandleAPIUpload(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	up, err := h.readUpload(c)
	if err != nil {
		h.handleAPIError(c, "Upload document", err)
		return
	}
	ws, err = h.storeUpload(ws, up)
	if err != nil {
		h.handleAPIError(c, "Extract text", err)
		return
	}
	c.JSON(http.StatusOK, UploadResponse{
		Source:  ws.Source,
		Preview: extract.Preview(ws.SourceText(), h.cfg.Quiz.PreviewLimit),
	})
}

// HandleAPIGenerate replaces the quiz with freshly generated questions.
func (h *Handler) HandleAPIGenerate(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	var req GenerateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
			return
		}
	}
	n := h.generator.NumQuestions()
	if req.Count > 0 {
		n = min(req.Count, 50)
	}

	ws, res, err := h.generate(c.Request.Context(), ws, n)
	if err != nil {
		h.handleAPIError(c, "Generate quiz", err)
		return
	}
	c.JSON(http.StatusOK, GenerateResponse{
		Items:     ws.Items,
		Warnings:  res.Warnings,
		Model:     res.Model,
		Usage:     res.Usage,
		LatencyMS: res.Latency.Milliseconds(),
	})
}

// HandleAPIRegenerate replaces one question.
func (h *Handler) HandleAPIRegenerate(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		h.handleAPIError(c, "Regenerate question", err)
		return
	}
	ws, warnings, err := h.regenerate(c.Request.Context(), ws, index)
	if err != nil {
		h.handleAPIError(c, "Regenerate question", err)
		return
	}
	c.JSON(http.StatusOK, RegenerateResponse{
		Index:    index,
		Item:     ws.Items[index],
		Items:    ws.Items,
		Warnings: warnings,
	})
}

// HandleAPIDelete removes one question.
func (h *Handler) HandleAPIDelete(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	index, err := parseIndex(c)
	if err != nil {
		h.handleAPIError(c, "Delete question", err)
		return
	}
	ws, err = h.deleteItem(ws, index)
	if err != nil {
		h.handleAPIError(c, "Delete question", err)
		return
	}
	c.JSON(http.StatusOK, h.quizResponse(ws))
}

// HandleAPIExport downloads the quiz as CSV.
func (h *Handler) HandleAPIExport(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	h.writeCSV(c, ws.Items)
}

// HandleAPIPublish uploads the CSV export and returns its URL.
func (h *Handler) HandleAPIPublish(c *gin.Context) {
	ws, ok := h.apiWorkspace(c)
	if !ok {
		return
	}
	url, err := h.publish(c.Request.Context(), ws)
	if err != nil {
		h.handleAPIError(c, "Publish export", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}
