// Package api provides the HTTP front end for hsm2midi
package api

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/semaphore"

	"github.com/hsm2midi/hsm2midi/pkg/config"
	"github.com/hsm2midi/hsm2midi/pkg/converter"
	"github.com/hsm2midi/hsm2midi/pkg/hsm"
)

// @title hsm2midi API
// @version 1.0
// @description API for converting HSM tracker modules to MIDI files
// @host localhost:8080
// @BasePath /api/v1

// Host level errors, reported apart from content errors
var (
	ErrOverloaded = errors.New("server overloaded")
	ErrTimeout    = errors.New("conversion timed out")
	ErrTooLarge   = errors.New("upload too large")
	ErrNoFile     = errors.New("no file uploaded")
)

// multipart framing allowed on top of the file itself
const formOverhead = 64 * 1024

//go:embed web/*.html
var webFS embed.FS

// Server serves the upload page and the conversion API
type Server struct {
	cfg     config.Config
	opts    converter.Options
	permits *semaphore.Weighted
	logger  *slog.Logger
	engine  *gin.Engine

	// convert does the work for one request; replaced in tests
	convert func(data []byte, opts converter.Options) ([]byte, error)
}

// NewServer builds a server from cfg
func NewServer(cfg config.Config, logger *slog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := cfg.Convert.Options()
	if err != nil {
		return nil, err
	}
	if opts.LoopCount > cfg.Server.MaxLoopCount {
		return nil, fmt.Errorf("convert.loopCount %d exceeds server.maxLoopCount %d", opts.LoopCount, cfg.Server.MaxLoopCount)
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:     cfg,
		opts:    opts,
		permits: semaphore.NewWeighted(cfg.Server.MaxConcurrent),
		logger:  logger,
		convert: func(data []byte, opts converter.Options) ([]byte, error) {
			return converter.New(opts).HSMToMIDI(data)
		},
	}

	r := gin.Default()
	r.SetHTMLTemplate(template.Must(template.ParseFS(webFS, "web/*.html")))

	// CORS middleware
	r.Use(corsMiddleware())

	// Upload page
	r.GET("/", s.indexPage)
	r.POST("/", s.handleUploadForm)

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/convert", s.handleConvert)
		v1.GET("/formats", listFormats)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine = r
	return s, nil
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on the configured port
func (s *Server) Run() error {
	addr := fmt.Sprintf(":%d", s.cfg.Server.Port)
	s.logger.Info("starting server", "addr", addr,
		"maxConcurrent", s.cfg.Server.MaxConcurrent,
		"timeout", s.cfg.Server.Timeout)
	return s.engine.Run(addr)
}

// StartServer starts the API server with cfg
func StartServer(cfg config.Config, logger *slog.Logger) error {
	s, err := NewServer(cfg, logger)
	if err != nil {
		return err
	}
	return s.Run()
}

// Submit converts data while holding one of the server's permits. Waiting
// for a permit and converting share the configured timeout.
func (s *Server) Submit(ctx context.Context, data []byte, opts converter.Options) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Server.Timeout)
	defer cancel()

	if err := s.permits.Acquire(ctx, 1); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrOverloaded
		}
		return nil, err
	}

	type result struct {
		data []byte
		err  error
	}
	done := make(chan result, 1)
	go func() {
		// the permit is held until the work really stops
		defer s.permits.Release(1)
		out, err := s.convert(data, opts)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		return r.data, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the API
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "hsm2midi",
	})
}

// listFormats godoc
// @Summary List supported formats
// @Description Returns a list of supported file formats
// @Tags info
// @Produce json
// @Success 200 {object} map[string][]string
// @Router /api/v1/formats [get]
func listFormats(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":     []string{string(converter.FormatHSM), string(converter.FormatMIDI)},
		"conversions": converter.GetSupportedConversions(),
	})
}

func (s *Server) indexPage(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"MaxKB":      s.cfg.Server.MaxUploadBytes / 1024,
		"NoteOffset": s.opts.NoteOffset,
		"LoopCount":  s.opts.LoopCount,
	})
}

// handleUploadForm serves the upload page form. Any failure renders the
// failure page.
func (s *Server) handleUploadForm(c *gin.Context) {
	result, filename, err := s.convertUpload(c, "input", c.PostForm)
	if err != nil {
		c.HTML(http.StatusInternalServerError, "failure.html", gin.H{"Cause": s.failureMessage(err)})
		return
	}
	sendMIDI(c, filename, result)
}

// handleConvert godoc
// @Summary Convert a module to MIDI
// @Description Upload an HSM module and receive a MIDI file
// @Tags convert
// @Accept multipart/form-data
// @Produce audio/x-midi
// @Param file formData file true "Module to convert"
// @Param noteOffset query int false "Note offset (default: 36)"
// @Param loopCount query int false "Loop count (default: 1)"
// @Param order query string false "Song order policy: song or storage"
// @Success 200 {file} binary
// @Failure 400 {object} map[string]string
// @Failure 413 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Failure 504 {object} map[string]string
// @Router /api/v1/convert [post]
func (s *Server) handleConvert(c *gin.Context) {
	result, filename, err := s.convertUpload(c, "file", c.Query)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": s.failureMessage(err), "detail": err.Error()})
		return
	}
	sendMIDI(c, filename, result)
}

func (s *Server) convertUpload(c *gin.Context, field string, param func(string) string) ([]byte, string, error) {
	data, name, err := s.readUpload(c, field)
	if err != nil {
		return nil, "", err
	}

	opts, err := s.requestOptions(param)
	if err != nil {
		return nil, "", err
	}

	result, err := s.Submit(c.Request.Context(), data, opts)
	if err != nil {
		s.logger.Warn("conversion failed", "file", name, "error", err)
		return nil, "", err
	}

	s.logger.Info("converted", "file", name, "inBytes", len(data), "outBytes", len(result))
	return result, converter.OutputPath(name), nil
}

func (s *Server) readUpload(c *gin.Context, field string) ([]byte, string, error) {
	limit := s.cfg.Server.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)

	file, header, err := c.Request.FormFile(field)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, "", ErrTooLarge
		}
		return nil, "", ErrNoFile
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, "", ErrTooLarge
	}

	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) || name == "" {
		name = "output.hsm"
	}
	return data, name, nil
}

// requestOptions overlays request parameters on the server defaults
func (s *Server) requestOptions(param func(string) string) (converter.Options, error) {
	opts := s.opts
	if v := param("noteOffset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, fmt.Errorf("invalid noteOffset %q", v)
		}
		opts.NoteOffset = n
	}
	if v := param("loopCount"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, fmt.Errorf("%w: %q", converter.ErrInvalidLoopCount, v)
		}
		if n > s.cfg.Server.MaxLoopCount {
			return opts, fmt.Errorf("%w: %d exceeds the limit of %d", converter.ErrInvalidLoopCount, n, s.cfg.Server.MaxLoopCount)
		}
		opts.LoopCount = n
	}
	if v := param("order"); v != "" {
		order, err := converter.ParseOrderPolicy(v)
		if err != nil {
			return opts, err
		}
		opts.Order = order
	}
	return opts, nil
}

func (s *Server) failureMessage(err error) string {
	switch {
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrOverloaded):
		return "The conversion took too long, the server is most likely overloaded. Try again later or run the converter locally."
	case errors.Is(err, ErrTooLarge):
		return fmt.Sprintf("Submitted content is bigger than the size limit (%d kB).", s.cfg.Server.MaxUploadBytes/1024)
	case errors.Is(err, ErrNoFile):
		return "No module file was uploaded."
	default:
		return "Conversion was not successful."
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNoFile):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrOverloaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, hsm.ErrMalformedDocument),
		errors.Is(err, hsm.ErrDimensionMismatch),
		errors.Is(err, converter.ErrStepCountExceedsCapacity),
		errors.Is(err, converter.ErrZeroTempo),
		errors.Is(err, converter.ErrInvalidLoopCount),
		errors.Is(err, converter.ErrEncodingFailure):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadRequest
	}
}

func sendMIDI(c *gin.Context, filename string, data []byte) {
	// set only after a successful conversion so failures are not downloaded
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "audio/x-midi", data)
}
