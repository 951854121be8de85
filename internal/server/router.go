package server

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/background"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/notes"
	"github.com/MarcoPoloResearchLab/zavvetka/backend/internal/telegram"
	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"
	"go.uber.org/zap"
)

var (
	errMissingNotesService = errors.New("notes service dependency required")
	errMissingUpdates      = errors.New("telegram update handler dependency required")
	errMissingNotifier     = errors.New("open notifier dependency required")
	errMissingTasks        = errors.New("background task runner dependency required")
	errMissingWebhookProbe = errors.New("webhook probe dependency required")

	//go:embed templates/*.tmpl
	templateFS embed.FS
)

// NoteService is the lifecycle surface exposed over HTTP.
type NoteService interface {
	Create(ctx context.Context, request notes.CreateRequest) (notes.CreateResult, error)
	Read(ctx context.Context, id notes.NoteID) (notes.ReadResult, error)
	Update(ctx context.Context, id notes.NoteID, accessToken string, content notes.Content) (notes.Note, error)
	ChangeAutoDelete(ctx context.Context, id notes.NoteID, accessToken string, mode notes.AutoDeleteMode) (notes.Note, error)
	DeleteWithAccess(ctx context.Context, id notes.NoteID, accessToken string) error
	Authorize(ctx context.Context, id notes.NoteID, accessToken string) error
	CountNotes(ctx context.Context) (notes.NoteCount, error)
}

type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update telegram.Update, origin string) error
}

type OpenNotifier interface {
	NotifyOpened(ctx context.Context, note notes.Note, clientIP string) error
}

type TaskRunner interface {
	Submit(name string, task background.Task) bool
}

type WebhookProbe interface {
	GetWebhookInfo(ctx context.Context) (telegram.WebhookInfo, error)
}

type Dependencies struct {
	NotesService    NoteService
	Updates         UpdateHandler
	Notifier        OpenNotifier
	Tasks           TaskRunner
	WebhookProbe    WebhookProbe
	WebhookSecret   string
	PublicDomain    string
	TrustedPlatform string
	AllowedOrigins  []string
	EnableMetrics   bool
	Clock           func() time.Time
	Logger          *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.NotesService == nil {
		return nil, errMissingNotesService
	}
	if deps.Updates == nil {
		return nil, errMissingUpdates
	}
	if deps.Notifier == nil {
		return nil, errMissingNotifier
	}
	if deps.Tasks == nil {
		return nil, errMissingTasks
	}
	if deps.WebhookProbe == nil {
		return nil, errMissingWebhookProbe
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	pages, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.TrustedPlatform = strings.TrimSpace(deps.TrustedPlatform)
	router.SetHTMLTemplate(pages)

	router.Use(recoveryMiddleware(logger))
	router.Use(requestLogger(logger))
	router.Use(noStoreMiddleware)
	router.Use(corsMiddleware(deps.AllowedOrigins))
	if deps.EnableMetrics {
		metrics := ginprometheus.NewWithConfig(ginprometheus.Config{Subsystem: "gin"})
		metrics.Use(router)
	}

	handler := &httpHandler{
		notesService:  deps.NotesService,
		updates:       deps.Updates,
		notifier:      deps.Notifier,
		tasks:         deps.Tasks,
		webhookProbe:  deps.WebhookProbe,
		webhookSecret: strings.TrimSpace(deps.WebhookSecret),
		publicDomain:  deps.PublicDomain,
		clock:         clock,
		logger:        logger,
	}

	router.GET("/health", handler.handleHealth)
	router.POST("/telegram/webhook", handler.handleTelegramWebhook)

	api := router.Group("/api/notes")
	api.POST("", handler.handleCreateNote)
	api.GET("/:id", handler.handleReadNote)
	api.PUT("/:id", handler.handleUpdateNote)
	api.DELETE("/:id", handler.handleDeleteNote)
	api.POST("/:id/auto-delete", handler.handleChangeAutoDelete)

	router.GET("/", handler.handleLandingPage)
	router.GET("/view/:id", handler.handleViewPage)
	router.GET("/edit/:id", handler.handleEditPage)

	router.NoMethod(func(c *gin.Context) {
		respondError(c, http.StatusMethodNotAllowed, errorCodeMethodNotAllowed)
	})
	router.NoRoute(handler.handleUnmatchedRoute)

	return router, nil
}

type httpHandler struct {
	notesService  NoteService
	updates       UpdateHandler
	notifier      OpenNotifier
	tasks         TaskRunner
	webhookProbe  WebhookProbe
	webhookSecret string
	publicDomain  string
	clock         func() time.Time
	logger        *zap.Logger
}

// requestOrigin rebuilds scheme://host as the client addressed it.
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if forwarded := c.GetHeader("X-Forwarded-Proto"); forwarded != "" {
		scheme = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}
