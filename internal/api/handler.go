package api

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"docquiz/internal/config"
	"docquiz/internal/extract"
	"docquiz/internal/generator"
	"docquiz/internal/llm"
	"docquiz/internal/models"
	"docquiz/internal/notify"
	"docquiz/internal/quiz"
	"docquiz/internal/workspace"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Session keys.
const (
	workspaceSessionKey = "workspace_id"
)

var (
	errNoFile         = errors.New("no file was uploaded")
	errUploadTooLarge = errors.New("uploaded file is too large")
	errBadIndex       = errors.New("item index must be a number")
	errNotPublishable = errors.New("publishing exports is not configured")
	errItemChanged    = errors.New("the question changed while a new one was generated")
)

// Notice is a one-shot message shown at the top of the page after a
// redirect.
type Notice struct {
	Level   string // success, info, warning or error
	Message string
}

func init() {
	// Flashes are gob-encoded into the session.
	gob.Register(Notice{})
}

// Publisher stores an export and returns where it can be downloaded.
type Publisher interface {
	Upload(ctx context.Context, workspaceID, name string, body []byte) (string, error)
}

// Deps are the services a Handler works with. Publisher and Notifier
// may be nil.
type Deps struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     *workspace.Store
	Generator *generator.Service
	Providers *llm.Factory
	Publisher Publisher
	Notifier  *notify.Notifier
}

// Handler serves the web page and the JSON API.
type Handler struct {
	cfg       *config.Config
	log       *zap.Logger
	store     *workspace.Store
	generator *generator.Service
	providers *llm.Factory
	publisher Publisher
	notifier  *notify.Notifier
}

// NewHandler creates a Handler.
func NewHandler(d Deps) *Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		cfg:       d.Config,
		log:       log.Named("api"),
		store:     d.Store,
		generator: d.Generator,
		providers: d.Providers,
		publisher: d.Publisher,
		notifier:  d.Notifier,
	}
}

// currentWorkspace returns the session's workspace, creating a new one
// when the session has none or it has expired.
func (h *Handler) currentWorkspace(c *gin.Context) (*workspace.Workspace, error) {
	session := sessions.Default(c)
	if id, ok := session.Get(workspaceSessionKey).(string); ok && id != "" {
		ws, err := h.store.Get(id)
		if err == nil {
			return ws, nil
		}
		if !errors.Is(err, workspace.ErrNotFound) {
			return nil, err
		}
		h.log.Debug("Session workspace expired", zap.String("workspace_id", id))
	}

	ws := h.store.Create()
	session.Set(workspaceSessionKey, ws.ID)
	if err := session.Save(); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	return ws, nil
}

// provider builds an LLM provider, preferring the key stored in the
// workspace over the configured one.
func (h *Handler) provider(ctx context.Context, ws *workspace.Workspace) (llm.Provider, error) {
	if !h.providers.HasKey(ws.APIKey) {
		return nil, llm.ErrMissingAPIKey
	}
	return h.providers.New(ctx, ws.APIKey)
}

// upload is a document read from the "file" form field.
type upload struct {
	name string
	data []byte
}

func (h *Handler) readUpload(c *gin.Context) (*upload, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		if isTooLarge(err) {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("%w: %v", errNoFile, err)
	}
	if fh.Size > h.cfg.Server.MaxUploadBytes {
		return nil, errUploadTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open uploaded file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		if isTooLarge(err) {
			return nil, errUploadTooLarge
		}
		return nil, fmt.Errorf("read uploaded file: %w", err)
	}
	return &upload{name: filepath.Base(fh.Filename), data: data}, nil
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// storeUpload extracts the document's text and makes it the workspace
// source. On failure the previous source is kept.
func (h *Handler) storeUpload(ws *workspace.Workspace, up *upload) (*workspace.Workspace, error) {
	text, err := extract.Extract(up.name, up.data)
	if err != nil {
		return nil, err
	}

	source := &models.Source{
		Name:       up.name,
		Size:       int64(len(up.data)),
		Text:       text,
		Runes:      utf8.RuneCountInString(text),
		UploadedAt: time.Now(),
	}
	updated, err := h.store.Update(ws.ID, func(w *workspace.Workspace) error {
		w.Source = source
		return nil
	})
	if err != nil {
		return nil, err
	}
	h.log.Info("Document uploaded",
		zap.String("workspace_id", ws.ID),
		zap.String("file", up.name),
		zap.Int64("bytes", source.Size),
		zap.Int("runes", source.Runes),
	)
	return updated, nil
}

// generate replaces the workspace's quiz with n fresh questions.
func (h *Handler) generate(ctx context.Context, ws *workspace.Workspace, n int) (*workspace.Workspace, *generator.Result, error) {
	if !ws.HasSource() {
		return nil, nil, generator.ErrNoSourceText
	}
	p, err := h.provider(ctx, ws)
	if err != nil {
		return nil, nil, err
	}
	defer p.Close()

	res, err := h.generator.Generate(ctx, p, ws.SourceText(), n)
	if err != nil {
		return nil, nil, err
	}

	updated, err := h.store.Update(ws.ID, func(w *workspace.Workspace) error {
		w.Items = res.Items
		w.Warnings = res.Warnings
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	sourceName := ""
	if ws.Source != nil {
		sourceName = ws.Source.Name
	}
	h.notifier.QuizGenerated(ws.ID, sourceName, len(res.Items), res.Model, res.Latency)
	return updated, res, nil
}

// regenerate replaces item index with a new question.
func (h *Handler) regenerate(ctx context.Context, ws *workspace.Workspace, index int) (*workspace.Workspace, []string, error) {
	if index < 0 || index >= len(ws.Items) {
		return nil, nil, fmt.Errorf("%w: %d (have %d)", quiz.ErrIndexOutOfRange, index, len(ws.Items))
	}
	if !ws.HasSource() {
		return nil, nil, generator.ErrNoSourceText
	}
	p, err := h.provider(ctx, ws)
	if err != nil {
		return nil, nil, err
	}
	defer p.Close()

	item, warnings, err := h.generator.Regenerate(ctx, p, ws.SourceText(), ws.Items)
	if err != nil {
		return nil, nil, err
	}

	old := ws.Items[index].Question
	updated, err := h.store.Update(ws.ID, func(w *workspace.Workspace) error {
		// Another request may have edited the list during the model call.
		if index >= len(w.Items) || w.Items[index].Question != old {
			return errItemChanged
		}
		items, err := quiz.Replace(w.Items, index, item)
		if err != nil {
			return err
		}
		w.Items = items
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	h.notifier.ItemRegenerated(ws.ID, index)
	return updated, warnings, nil
}

func (h *Handler) deleteItem(ws *workspace.Workspace, index int) (*workspace.Workspace, error) {
	return h.store.Update(ws.ID, func(w *workspace.Workspace) error {
		items, err := quiz.Delete(w.Items, index)
		if err != nil {
			return err
		}
		w.Items = items
		return nil
	})
}

func (h *Handler) setAPIKey(ws *workspace.Workspace, key string) (*workspace.Workspace, error) {
	return h.store.Update(ws.ID, func(w *workspace.Workspace) error {
		w.APIKey = strings.TrimSpace(key)
		return nil
	})
}

// publish uploads the CSV export of the workspace's quiz.
func (h *Handler) publish(ctx context.Context, ws *workspace.Workspace) (string, error) {
	if h.publisher == nil {
		return "", errNotPublishable
	}
	var buf strings.Builder
	if err := quiz.WriteCSV(&buf, ws.Items); err != nil {
		return "", err
	}
	return h.publisher.Upload(ctx, ws.ID, quiz.ExportFileName, []byte(buf.String()))
}

func (h *Handler) writeCSV(c *gin.Context, items []models.QuizItem) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", quiz.ExportFileName))
	c.Status(http.StatusOK)
	if err := quiz.WriteCSV(c.Writer, items); err != nil {
		h.log.Error("Failed to write CSV export", zap.Error(err))
	}
}

func parseIndex(c *gin.Context) (int, error) {
	i, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		return 0, errBadIndex
	}
	return i, nil
}

// parseCount reads an optional question count, clamped to 1..50.
func (h *Handler) parseCount(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return h.generator.NumQuestions()
	}
	return min(n, 50)
}

// statusFor maps an error to the HTTP status the JSON API answers with.
func statusFor(err error) int {
	var (
		rateLimit *llm.ErrRateLimit
		invalid   *llm.ErrInvalidResponse
		maxTokens *llm.ErrMaxTokensExceeded
		down      *llm.ErrProviderUnavailable
		rejected  *llm.ErrRequestRejected
	)
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, extract.ErrEmptyDocument),
		errors.Is(err, extract.ErrInvalidEncoding),
		errors.Is(err, extract.ErrCorrupt):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errNoFile),
		errors.Is(err, errBadIndex),
		errors.Is(err, llm.ErrMissingAPIKey),
		errors.Is(err, generator.ErrNoSourceText):
		return http.StatusBadRequest
	case errors.Is(err, quiz.ErrIndexOutOfRange):
		return http.StatusNotFound
	case errors.Is(err, errItemChanged):
		return http.StatusConflict
	case errors.Is(err, errNotPublishable):
		return http.StatusNotImplemented
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &invalid),
		errors.As(err, &maxTokens),
		errors.As(err, &down),
		errors.As(err, &rejected),
		errors.Is(err, quiz.ErrMalformedResponse),
		errors.Is(err, quiz.ErrNoItems),
		errors.Is(err, generator.ErrNoQuestions):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// userMessage turns an error into the text shown to the user.
func userMessage(err error) string {
	var rateLimit *llm.ErrRateLimit
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		return "Enter an API key in the settings first."
	case errors.Is(err, generator.ErrNoSourceText):
		return "Upload a document first."
	case errors.Is(err, errUploadTooLarge):
		return "The uploaded file is too large."
	case errors.Is(err, errItemChanged):
		return "The quiz changed while the question was being regenerated. Try again."
	case errors.Is(err, extract.ErrUnsupportedFormat):
		return fmt.Sprintf("Unsupported file type. Upload one of: %s.", strings.Join(extract.SupportedExtensions(), ", "))
	case errors.As(err, &rateLimit):
		return "The AI service is rate limiting requests. Try again shortly."
	case errors.Is(err, context.DeadlineExceeded):
		return "The AI service took too long to answer. Try again."
	}
	return err.Error()
}

// logFailure logs err and, for server-side failures, sends a notification.
func (h *Handler) logFailure(c *gin.Context, action string, status int, err error) {
	fields := []zap.Field{
		zap.String("action", action),
		zap.Int("status", status),
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", fields...)
		h.notifier.Error(action, status, c.Request.URL.Path, err)
		return
	}
	h.log.Warn("Request rejected", fields...)
}
