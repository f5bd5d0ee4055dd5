package server

import (
	"context"
	"embed"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/usecase"
)

//go:embed static
var staticFS embed.FS

// Server exposes the chat pipeline over HTTP with a minimal web UI.
type Server struct {
	chat     *usecase.Chat
	ingestor *usecase.Ingestor
	folder   string
	engine   *gin.Engine
}

func New(chat *usecase.Chat, ingestor *usecase.Ingestor, folder string) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		chat:     chat,
		ingestor: ingestor,
		folder:   folder,
		engine:   engine,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)

	api := s.engine.Group("/api")
	api.POST("/chat", s.handleChat)
	api.POST("/rebuild", s.handleRebuild)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestLogger tags every request with an id and logs method, path,
// status, and duration.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := uuid.NewString()
		c.Set("request_id", id)
		start := time.Now()

		c.Next()

		log.Printf("[%s] %s %s -> %d (%s)",
			id[:8], c.Request.Method, c.Request.URL.Path,
			c.Writer.Status(), time.Since(start).Round(time.Millisecond))
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := staticFS.ReadFile("static/index.html")
	if err != nil {
		c.String(http.StatusInternalServerError, "missing UI assets")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

type chatRequest struct {
	Query string `json:"query" binding:"required"`
}

type chatResponse struct {
	Answer  string   `json:"answer"`
	Sources []string `json:"sources"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	answer, err := s.chat.Ask(c.Request.Context(), req.Query)
	if err != nil {
		var qerr *domain.QueryError
		if errors.As(err, &qerr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": qerr.Error()})
			return
		}
		log.Printf("chat failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate answer"})
		return
	}

	c.JSON(http.StatusOK, chatResponse{Answer: answer.Text, Sources: answer.Sources})
}

func (s *Server) handleRebuild(c *gin.Context) {
	full := c.Query("full") == "true"

	result, err := s.ingestor.Rebuild(c.Request.Context(), s.folder, full, nil)
	if err != nil {
		if errors.Is(err, domain.ErrRebuildInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": "a rebuild is already running"})
			return
		}
		log.Printf("rebuild failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "rebuild failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"files_indexed":  result.FilesIndexed,
		"files_skipped":  result.FilesSkipped,
		"files_removed":  result.FilesRemoved,
		"chunks_created": result.ChunksCreated,
		"warnings":       result.Warnings,
	})
}
