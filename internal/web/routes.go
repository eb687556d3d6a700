package web

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/sstent/vo2sync-go/internal/database"
	"github.com/sstent/vo2sync-go/internal/logger"
	"github.com/sstent/vo2sync-go/internal/models"
	"github.com/sstent/vo2sync-go/internal/strava"
	"github.com/sstent/vo2sync-go/internal/sync"
	"github.com/sstent/vo2sync-go/internal/validate"
)

// Importer is the part of sync.SyncService the handlers call.
type Importer interface {
	ImportFile(ctx context.Context, staged, original string, overrides models.Overrides) (*sync.Result, error)
	ImportRemote(ctx context.Context, id int64, overrides models.Overrides) (*sync.Result, error)
	Sync(ctx context.Context) (*sync.SyncReport, error)
	ListActivities(ctx context.Context, perPage, page int) ([]strava.Activity, error)
}

// Options holds the optional collaborators of a WebHandler.
type Options struct {
	// Connect exchanges an OAuth authorization code and stores the token.
	Connect func(ctx context.Context, code string) error
	// State is the OAuth state the callback must echo back. AuthURL, when
	// set, is where a callback without state is redirected.
	State     string
	AuthURL   string
	UploadDir string
	Logger    logrus.FieldLogger
}

type WebHandler struct {
	db        database.Database
	syncer    Importer
	connect   func(ctx context.Context, code string) error
	state     string
	authURL   string
	uploadDir string
	log       logrus.FieldLogger
}

func NewWebHandler(db database.Database, syncer Importer, opts Options) *WebHandler {
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = os.TempDir()
	}
	return &WebHandler{
		db:        db,
		syncer:    syncer,
		connect:   opts.Connect,
		state:     opts.State,
		authURL:   opts.AuthURL,
		uploadDir: opts.UploadDir,
		log:       opts.Logger,
	}
}

func (h *WebHandler) RegisterRoutes(router *gin.Engine) {
	router.Use(requestID(), requestLogger(h.log))

	router.GET("/health", h.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.GET("/workouts", h.WorkoutList)
	api.GET("/workouts/:id", h.WorkoutDetail)
	api.DELETE("/workouts/:id", h.DeleteWorkout)
	api.POST("/uploads", h.Upload)
	api.POST("/sync", h.Sync)

	api.GET("/strava/activities", h.StravaActivities)
	api.POST("/strava/activities/:id/import", h.StravaImport)
	api.GET("/strava/callback", h.StravaCallback)
}

func (h *WebHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *WebHandler) WorkoutList(c *gin.Context) {
	workouts, err := h.db.ListAll(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, workouts)
}

func (h *WebHandler) WorkoutDetail(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	workout, err := h.db.GetWorkout(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	points, err := h.db.DataPoints(ctx, id)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"workout": workout, "data_points": points})
}

func (h *WebHandler) DeleteWorkout(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	deleted, err := h.db.Delete(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		h.writeError(c, models.ErrNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}

// Upload accepts a multipart "file" field plus optional ftp and max_hr
// form fields.
func (h *WebHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field 'file' is required"})
		return
	}
	var overrides models.Overrides
	if err := c.ShouldBind(&overrides); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.writeError(c, err)
		return
	}
	defer f.Close()

	staged, original, err := validate.StageUpload(fh.Filename, f, h.uploadDir)
	if err != nil {
		h.writeError(c, err)
		return
	}

	res, err := h.syncer.ImportFile(c.Request.Context(), staged, original, overrides)
	if err != nil {
		os.Remove(staged)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *WebHandler) Sync(c *gin.Context) {
	report, err := h.syncer.Sync(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *WebHandler) StravaActivities(c *gin.Context) {
	perPage, _ := strconv.Atoi(c.Query("per_page"))
	page, _ := strconv.Atoi(c.Query("page"))

	activities, err := h.syncer.ListActivities(c.Request.Context(), perPage, page)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (h *WebHandler) StravaImport(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var overrides models.Overrides
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBind(&overrides); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	res, err := h.syncer.ImportRemote(c.Request.Context(), id, overrides)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

// StravaCallback completes the OAuth flow started from the authorization URL.
func (h *WebHandler) StravaCallback(c *gin.Context) {
	if h.connect == nil {
		h.writeError(c, sync.ErrRemoteNotConnected)
		return
	}
	if reason := c.Query("error"); reason != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "authorization denied: " + reason})
		return
	}
	state := c.Query("state")
	if state == "" && h.authURL != "" {
		c.Redirect(http.StatusFound, h.authURL)
		return
	}
	if h.state == "" || state != h.state {
		c.JSON(http.StatusBadRequest, gin.H{"error": "state invalid"})
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing authorization code"})
		return
	}

	if err := h.connect(c.Request.Context(), code); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "connected"})
}

func idParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}
