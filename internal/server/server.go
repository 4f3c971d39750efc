// Package server exposes the study API: the image scan proxy, prompt
// refinement and the authenticated chat endpoint.
package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/google/uuid"
	genai "google.golang.org/genai"

	"github.com/thywilljoshua/studyspace/internal/ai"
	"github.com/thywilljoshua/studyspace/internal/auth"
	"github.com/thywilljoshua/studyspace/internal/logger"
)

// ImageModel is the multimodal model behind /api/image-scan.
type ImageModel interface {
	ScanImage(ctx context.Context, image []byte, mimeType string) (*genai.GenerateContentResponse, error)
	RefineRaw(ctx context.Context, text string) (*genai.GenerateContentResponse, error)
}

// Deps are the collaborators of the handlers. A nil model means its API
// key is not configured.
type Deps struct {
	Vision  ImageModel
	Chat    ai.Completer
	Refiner ai.Refiner
	Issuer  *auth.Issuer
	Logger  logger.Logger

	BodyLimitMB int
	// DefaultTemperature applies when a chat request omits temperature.
	DefaultTemperature float64
}

type Server struct {
	app *fiber.App
	d   Deps
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = logger.NewNop()
	}
	if d.BodyLimitMB <= 0 {
		d.BodyLimitMB = 10
	}
	if d.DefaultTemperature == 0 {
		d.DefaultTemperature = 0.7
	}
	app := fiber.New(fiber.Config{
		BodyLimit:             d.BodyLimitMB * 1024 * 1024,
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "POST, OPTIONS",
	}))

	s := &Server{app: app, d: d}
	app.Use(s.requestLog)
	s.registerRoutes(app.Group("/api"))
	return s
}

func (s *Server) registerRoutes(r fiber.Router) {
	r.All("/image-scan", s.imageScan)
	r.Post("/refine-prompt", s.refinePrompt)
	r.Post("/gemini", s.requireToken, s.chat)
}

func (s *Server) App() *fiber.App { return s.app }

func (s *Server) Listen(addr string) error {
	s.d.Logger.Info("server", "listening", map[string]any{"addr": addr})
	return s.app.Listen(addr)
}

func (s *Server) Shutdown() error { return s.app.Shutdown() }

func (s *Server) requestLog(c *fiber.Ctx) error {
	id := uuid.NewString()
	c.Set("X-Request-ID", id)
	start := time.Now()
	err := c.Next()
	s.d.Logger.Info("http", "request", map[string]any{
		"id":      id,
		"method":  c.Method(),
		"path":    c.Path(),
		"status":  c.Response().StatusCode(),
		"latency": time.Since(start).String(),
	})
	return err
}

func (s *Server) requireToken(c *fiber.Ctx) error {
	if s.d.Issuer == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Auth not configured."})
	}
	tok, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization))
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token."})
	}
	claims, err := s.d.Issuer.Parse(tok)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token."})
	}
	c.Locals("subject", claims.Subject)
	return c.Next()
}
