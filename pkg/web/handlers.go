package web

import (
	"bytes"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-reachy-face/pkg/api"
	"github.com/teslashibe/go-reachy-face/pkg/engine"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/interp"
	"github.com/teslashibe/go-reachy-face/pkg/render"
)

func errorJSON(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(api.Error{Error: err.Error()})
}

// statusFor maps engine and expression errors to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, expression.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, expression.ErrInvalidExpression), errors.Is(err, engine.ErrNilExpression):
		return fiber.StatusBadRequest
	case errors.Is(err, engine.ErrStopped):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	resp := api.Status{
		Engine:       s.ctrl.Status(),
		Expressions:  s.registry.Count(),
		FrameClients: s.frameHub.ClientCount(),
		EventClients: s.eventHub.ClientCount(),
	}
	if s.idle != nil {
		resp.Idle = s.idle.Enabled()
	}
	return c.JSON(resp)
}

// handleListExpressions lists registered expressions, optionally filtered
// by ?q=.
func (s *Server) handleListExpressions(c *fiber.Ctx) error {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.JSON(s.registry.Infos())
	}
	infos := []expression.Info{}
	for _, id := range s.registry.Search(q) {
		if def, err := s.registry.Get(id); err == nil {
			infos = append(infos, def.Info())
		}
	}
	return c.JSON(infos)
}

func (s *Server) handleGetExpression(c *fiber.Ctx) error {
	def, err := s.registry.Get(c.Params("id"))
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.JSON(def.Info())
}

func (s *Server) handlePlayExpression(c *fiber.Ctx) error {
	var req api.PlayRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return errorJSON(c, fiber.StatusBadRequest, err)
		}
	}

	def, err := s.registry.Instantiate(c.Params("id"), playOptions(req)...)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return s.play(c, def, req.Force)
}

func playOptions(r api.PlayRequest) []expression.Option {
	var opts []expression.Option
	if r.Duration != nil {
		opts = append(opts, expression.WithDuration(expression.Seconds(*r.Duration)))
	}
	if r.TransitionDuration != nil {
		opts = append(opts, expression.WithTransition(expression.Seconds(*r.TransitionDuration)))
	}
	if r.Interpolation != nil {
		mode, _ := interp.Parse(*r.Interpolation)
		opts = append(opts, expression.WithInterpolation(mode))
	}
	if r.Sticky != nil {
		opts = append(opts, expression.WithSticky(*r.Sticky))
	}
	if r.Position != nil {
		opts = append(opts, expression.WithPosition(r.Position[0], r.Position[1]))
	}
	if r.Scale != nil {
		opts = append(opts, expression.WithScale(*r.Scale))
	}
	return opts
}

// handleFollow shifts and scales an expression toward a tracked face.
func (s *Server) handleFollow(c *fiber.Ctx) error {
	var req api.FollowRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	if req.Expression == "" {
		req.Expression = expression.IDNeutral
	}

	x, y, scale := expression.FollowOffset(req.CX, req.CY, req.Area)
	def, err := s.registry.Instantiate(req.Expression,
		expression.WithPosition(x, y),
		expression.WithScale(scale),
	)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return s.play(c, def, req.Force)
}

func (s *Server) play(c *fiber.Ctx, def *expression.Definition, force bool) error {
	enqueue := s.ctrl.Enqueue
	if force {
		enqueue = s.ctrl.Force
	}
	id, err := enqueue(def)
	if err != nil {
		return errorJSON(c, statusFor(err), err)
	}
	return c.Status(fiber.StatusAccepted).JSON(api.PlayResponse{
		RequestID:  id,
		Expression: def.Info(),
		Forced:     force,
	})
}

func (s *Server) handleGetIdle(c *fiber.Ctx) error {
	if s.idle == nil {
		return c.JSON(api.Idle{})
	}
	return c.JSON(api.Idle{Enabled: s.idle.Enabled()})
}

func (s *Server) handleSetIdle(c *fiber.Ctx) error {
	if s.idle == nil {
		return errorJSON(c, fiber.StatusNotImplemented, errors.New("idle scheduler not configured"))
	}
	var req api.Idle
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err)
	}
	s.idle.SetEnabled(req.Enabled)
	s.log.Info("idle mode set", "enabled", req.Enabled)
	return c.JSON(api.Idle{Enabled: s.idle.Enabled()})
}

func (s *Server) handleFrame(c *fiber.Ctx) error {
	return c.JSON(s.ctrl.Frame())
}

func (s *Server) handleFramePNG(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := render.PNG(&buf, s.ctrl.RenderFrame(), s.opts.Render); err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, err)
	}
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(buf.Bytes())
}
