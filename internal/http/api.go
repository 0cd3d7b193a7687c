package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"video-cloud/internal/auth"
	"video-cloud/internal/domain"
	"video-cloud/internal/service"
	"video-cloud/internal/storage"
)

// isoMillis matches the timestamp shape browsers produce with Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// Handler wires HTTP routes to domain services.
type Handler struct {
	videos  service.VideoService
	users   service.UserService
	issuer  *auth.Issuer
	storage storage.Service
	logger  *logrus.Logger
}

// NewHandler builds the HTTP surface. store may be nil, which disables uploads.
func NewHandler(videos service.VideoService, users service.UserService, issuer *auth.Issuer, store storage.Service, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handler{
		videos:  videos,
		users:   users,
		issuer:  issuer,
		storage: store,
		logger:  logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(requestLogger(h.logger))
	router.Use(h.issuer.Sessions())

	api := router.Group("/api")
	{
		api.GET("/videos", h.listVideos)
		api.POST("/videos", h.createVideo)
		api.POST("/uploads", h.issuer.RequireSession(), h.uploadMedia)

		authGroup := api.Group("/auth")
		authGroup.POST("/register", h.register)
		authGroup.POST("/signin", h.signIn)
		authGroup.POST("/signout", h.signOut)
		authGroup.GET("/session", h.currentSession)

		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}
}

type createVideoRequest struct {
	Title        string `json:"title" binding:"required"`
	Description  string `json:"description" binding:"required"`
	VideoURL     string `json:"videoUrl" binding:"required"`
	ThumbnailURL string `json:"thumbnailUrl" binding:"required"`
	Private      *bool  `json:"private"`
}

type VideoResponse struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description"`
	VideoURL     string `json:"videoUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Private      bool   `json:"private"`
	CreatedAt    string `json:"createdAt"`
}

type VideoListResponse struct {
	Videos []VideoResponse `json:"videos"`
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if origin := c.GetHeader("Origin"); origin != "" {
			// credentialed requests cannot use a wildcard origin
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start),
			"client":   c.ClientIP(),
		})
		if len(c.Errors) > 0 {
			entry.WithError(c.Errors.Last()).Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

func (h *Handler) listVideos(c *gin.Context) {
	videos, err := h.videos.ListVideos(c.Request.Context(), auth.SessionFrom(c))
	if err != nil {
		h.logger.WithError(err).Error("fetch videos")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch videos"})
		return
	}

	resp := VideoListResponse{Videos: make([]VideoResponse, len(videos))}
	for i := range videos {
		resp.Videos[i] = videoToResponse(videos[i])
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) createVideo(c *gin.Context) {
	session := auth.SessionFrom(c)
	if session == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	video, err := h.videos.CreateVideo(c.Request.Context(), session, domain.NewVideo{
		Title:        req.Title,
		Description:  req.Description,
		VideoURL:     req.VideoURL,
		ThumbnailURL: req.ThumbnailURL,
		Private:      req.Private,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, videoToResponse(*video))
	case errors.Is(err, domain.ErrAuthorization):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
	default:
		h.logger.WithError(err).WithField("user", session.User.ID).Error("create video")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create video"})
	}
}

func (h *Handler) uploadMedia(c *gin.Context) {
	if h.storage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Storage is not configured"})
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	folder := c.DefaultPostForm("folder", "videos")
	if _, ok := storage.Folders[folder]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid folder"})
		return
	}

	src, err := file.Open()
	if err != nil {
		h.logger.WithError(err).Error("open uploaded file")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}
	defer src.Close()

	obj, err := h.storage.Upload(c.Request.Context(), storage.UploadInput{
		Folder:      folder,
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Body:        src,
	})
	if err != nil {
		h.logger.WithError(err).WithField("file", file.Filename).Error("upload media")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"user": auth.SessionFrom(c).User.ID,
		"key":  obj.Key,
		"size": file.Size,
	}).Info("media uploaded")
	c.JSON(http.StatusOK, gin.H{"url": obj.URL, "key": obj.Key})
}

func videoToResponse(video domain.Video) VideoResponse {
	return VideoResponse{
		ID:           video.ID,
		Title:        video.Title,
		Description:  video.Description,
		VideoURL:     video.VideoURL,
		ThumbnailURL: video.ThumbnailURL,
		Private:      video.Private,
		CreatedAt:    video.CreatedAt.UTC().Format(isoMillis),
	}
}
