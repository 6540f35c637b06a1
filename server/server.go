// Package server exposes the screening pipelines over HTTP so drawings can be
// photographed and uploaded from a phone.
package server

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pdscreen/pdscreen"
	"github.com/pdscreen/pdscreen/logging"
)

// MaxUploadSize bounds the size of an uploaded image.
const MaxUploadSize = 10 << 20

// maxBodySize leaves room for the multipart envelope around the image.
const maxBodySize = MaxUploadSize + 1<<20

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// DrawingAnalyzer classifies spiral and wave drawings.
type DrawingAnalyzer interface {
	Analyze(ctx context.Context, src io.Reader, name string, dt pdscreen.DrawingType) (*pdscreen.DrawingReport, error)
}

// HandwritingAnalyzer classifies handwriting samples.
type HandwritingAnalyzer interface {
	Analyze(ctx context.Context, src io.Reader, name string) (*pdscreen.HandwritingReport, error)
}

type upload struct {
	name string
	data []byte
	at   time.Time
}

// Server keeps the latest uploaded image and runs the analyzers on request.
type Server struct {
	drawings    DrawingAnalyzer
	handwriting HandwritingAnalyzer
	logger      *zap.Logger

	mu     sync.Mutex
	latest *upload
}

// New creates a server. The handwriting analyzer may be nil, in which case
// the handwriting endpoint reports the service as unavailable.
func New(drawings DrawingAnalyzer, handwriting HandwritingAnalyzer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		drawings:    drawings,
		handwriting: handwriting,
		logger:      logger.Named("server"),
	}
}

// Handler builds the gin engine serving every route.
func (s *Server) Handler() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = MaxUploadSize
	router.Use(gin.Recovery(), s.requestID(), cors())
	RegisterRoutes(router, s)
	return router
}

// RegisterRoutes wires the HTTP handlers to the Gin router.
func RegisterRoutes(router *gin.Engine, s *Server) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/", s.page)
	router.POST("/upload", s.upload)
	router.GET("/latest", s.latestInfo)
	router.POST("/analyze", s.analyzeDrawing)
	router.POST("/handwriting", s.analyzeHandwriting)
}

func (s *Server) page(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(uploadPage))
}

func (s *Server) upload(c *gin.Context) {
	up, status, err := readUpload(c)
	if err != nil {
		c.JSON(status, gin.H{"status": "error", "message": err.Error()})
		return
	}
	if up == nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "message": "image file is required"})
		return
	}

	s.mu.Lock()
	s.latest = up
	s.mu.Unlock()

	s.log(c).Info("image uploaded", zap.String("image", up.name), zap.Int("bytes", len(up.data)))
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Image uploaded successfully"})
}

func (s *Server) latestInfo(c *gin.Context) {
	s.mu.Lock()
	up := s.latest
	s.mu.Unlock()

	if up == nil {
		c.JSON(http.StatusOK, gin.H{"available": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"available":   true,
		"name":        up.name,
		"size":        len(up.data),
		"uploaded_at": up.at.UTC().Format(time.RFC3339),
	})
}

func (s *Server) analyzeDrawing(c *gin.Context) {
	dt, err := pdscreen.ParseDrawingType(c.DefaultQuery("type", "s"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	up, ok := s.source(c)
	if !ok {
		return
	}

	report, err := s.drawings.Analyze(c.Request.Context(), bytes.NewReader(up.data), up.name, dt)
	if err != nil {
		s.fail(c, "analyze drawing", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) analyzeHandwriting(c *gin.Context) {
	if s.handwriting == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "handwriting model is not loaded"})
		return
	}
	up, ok := s.source(c)
	if !ok {
		return
	}

	report, err := s.handwriting.Analyze(c.Request.Context(), bytes.NewReader(up.data), up.name)
	if err != nil {
		s.fail(c, "analyze handwriting", err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// source returns the image sent with the request or, when there is none, the
// latest uploaded one. It writes the error response itself.
func (s *Server) source(c *gin.Context) (*upload, bool) {
	up, status, err := readUpload(c)
	if err != nil {
		c.JSON(status, gin.H{"error": err.Error()})
		return nil, false
	}
	if up != nil {
		return up, true
	}

	s.mu.Lock()
	up = s.latest
	s.mu.Unlock()
	if up == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no image uploaded"})
		return nil, false
	}
	return up, true
}

func (s *Server) fail(c *gin.Context, op string, err error) {
	status := http.StatusInternalServerError
	var opErr *logging.OperationError
	if errors.As(err, &opErr) && opErr.Operation == "load image" {
		status = http.StatusUnprocessableEntity
	}
	s.log(c).Error(op+" failed", zap.Error(err), zap.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}

// readUpload reads the "image" multipart field. A request without the field
// yields a nil upload and no error.
func readUpload(c *gin.Context) (*upload, int, error) {
	if c.Request.ContentLength > maxBodySize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodySize)

	file, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
		case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
			return nil, 0, nil
		}
		return nil, http.StatusBadRequest, errors.New("invalid multipart form")
	}
	if file.Size > MaxUploadSize {
		return nil, http.StatusRequestEntityTooLarge, errors.New("image exceeds the upload limit")
	}

	src, err := file.Open()
	if err != nil {
		return nil, http.StatusBadRequest, errors.New("unable to open image")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, http.StatusInternalServerError, errors.New("failed to read image")
	}
	if ctype := http.DetectContentType(data); !isImage(ctype, file.Filename) {
		return nil, http.StatusUnsupportedMediaType, errors.New("uploaded file is not an image")
	}
	return &upload{name: file.Filename, data: data, at: time.Now()}, 0, nil
}

// requestID tags every request with an id and logs its outcome.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		s.log(c).Info("request completed",
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

func (s *Server) log(c *gin.Context) *zap.Logger {
	return logging.WithOperation(s.logger, c.Request.Method+" "+c.FullPath(), c.GetString("request_id"))
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
