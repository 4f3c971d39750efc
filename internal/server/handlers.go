package server

import (
	"encoding/base64"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/thywilljoshua/studyspace/internal/ai"
)

var validate = validator.New()

type ScanRequest struct {
	ImageBase64 string `json:"imageBase64" validate:"required"`
	MimeType    string `json:"mimeType" validate:"required"`
	Action      string `json:"action" validate:"omitempty,oneof=scan refine"`
	CurrentText string `json:"currentText"`
}

type RefineRequest struct {
	CurrentText string `json:"currentText" validate:"required"`
}

type ChatRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	Temperature *float64 `json:"temperature" validate:"omitempty,min=0,max=2"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

// upstreamJSON passes provider failures through with their status.
func (s *Server) upstreamJSON(c *fiber.Ctx, route string, err error) error {
	var ue *ai.UpstreamError
	if errors.As(err, &ue) {
		s.d.Logger.Warn(route, "upstream error", map[string]any{"status": ue.Status, "error": err})
		return errorJSON(c, ue.Status, ue.Message)
	}
	s.d.Logger.Error(route, "request failed", map[string]any{"error": err})
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":   "Internal server error",
		"message": err.Error(),
	})
}

func (s *Server) imageScan(c *fiber.Ctx) error {
	if c.Method() != fiber.MethodPost {
		return errorJSON(c, fiber.StatusMethodNotAllowed, "Method not allowed. Use POST.")
	}
	var req ScanRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Missing image data.")
	}
	if err := validate.Struct(req); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && ve[0].Field() == "Action" {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid action.")
		}
		return errorJSON(c, fiber.StatusBadRequest, "Missing image data.")
	}
	if s.d.Vision == nil {
		return errorJSON(c, fiber.StatusInternalServerError, "API key not configured.")
	}

	ctx := c.UserContext()
	switch req.Action {
	case "refine":
		res, err := s.d.Vision.RefineRaw(ctx, req.CurrentText)
		if err != nil {
			return s.upstreamJSON(c, "image-scan", err)
		}
		return c.Status(fiber.StatusOK).JSON(res)
	default:
		img, err := base64.StdEncoding.DecodeString(req.ImageBase64)
		if err != nil {
			return errorJSON(c, fiber.StatusBadRequest, "Invalid image data.")
		}
		res, err := s.d.Vision.ScanImage(ctx, img, req.MimeType)
		if err != nil {
			return s.upstreamJSON(c, "image-scan", err)
		}
		return c.Status(fiber.StatusOK).JSON(res)
	}
}

func (s *Server) refinePrompt(c *fiber.Ctx) error {
	var req RefineRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body.")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Missing text.")
	}
	if s.d.Refiner == nil {
		return errorJSON(c, fiber.StatusInternalServerError, "API key not configured.")
	}
	out, err := s.d.Refiner.Refine(c.UserContext(), req.CurrentText)
	if err != nil {
		return s.upstreamJSON(c, "refine-prompt", err)
	}
	return c.JSON(fiber.Map{"response": out})
}

func (s *Server) chat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Invalid request body.")
	}
	if err := validate.Struct(req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Missing or invalid prompt.")
	}
	if s.d.Chat == nil {
		return errorJSON(c, fiber.StatusInternalServerError, "API key not configured.")
	}
	temp := s.d.DefaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	out, err := s.d.Chat.Complete(c.UserContext(), req.Prompt, temp)
	if err != nil {
		return s.upstreamJSON(c, "chat", err)
	}
	return c.JSON(fiber.Map{"response": out})
}
