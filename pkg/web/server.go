// Package web serves the face engine's HTTP and websocket control surface.
package web

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-reachy-face/internal/log"
	"github.com/teslashibe/go-reachy-face/pkg/engine"
	"github.com/teslashibe/go-reachy-face/pkg/expression"
	"github.com/teslashibe/go-reachy-face/pkg/hub"
	"github.com/teslashibe/go-reachy-face/pkg/render"
)

// Options wires the server to the engine.
type Options struct {
	Port       string
	Controller *engine.Controller
	Registry   *expression.Registry
	Idle       *engine.IdleScheduler // optional

	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer

	// StreamInterval is the /ws/frames period. Defaults to 30 fps.
	StreamInterval time.Duration

	// EventBuffer sizes the bus subscription feeding /ws/events.
	EventBuffer int

	Render render.Options
}

// Server is the control surface.
type Server struct {
	app  *fiber.App
	opts Options
	log  *slog.Logger

	ctrl     *engine.Controller
	registry *expression.Registry
	idle     *engine.IdleScheduler

	frameHub *hub.Hub
	eventHub *hub.Hub
}

// NewServer builds the fiber app and its routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Controller == nil {
		return nil, errors.New("web: controller is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("web: registry is required")
	}
	if opts.Port == "" {
		opts.Port = "8090"
	}
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = time.Second / 30
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = 64
	}
	if opts.Render.Width <= 0 || opts.Render.Height <= 0 {
		w, h := opts.Controller.Size()
		opts.Render.Width, opts.Render.Height = int(w), int(h)
	}

	s := &Server{
		opts:     opts,
		log:      log.Component("web"),
		ctrl:     opts.Controller,
		registry: opts.Registry,
		idle:     opts.Idle,
		frameHub: hub.New("frames"),
		eventHub: hub.New("events"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Reachy Face",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/expressions", s.handleListExpressions)
	api.Get("/expressions/:id", s.handleGetExpression)
	api.Post("/expressions/:id", s.handlePlayExpression)
	api.Post("/follow", s.handleFollow)
	api.Get("/idle", s.handleGetIdle)
	api.Put("/idle", s.handleSetIdle)
	api.Get("/frame", s.handleFrame)
	api.Get("/frame.png", s.handleFramePNG)

	if opts.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/frames", websocket.New(func(c *websocket.Conn) { s.frameHub.Serve(c) }))
	app.Get("/ws/events", websocket.New(func(c *websocket.Conn) { s.eventHub.Serve(c) }))

	s.app = app
	return s, nil
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and streaming loops, then listens until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	s.startBackground(ctx)

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", "http://localhost:"+s.opts.Port)
		errc <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("web: listen: %w", err)
		}
		return nil
	case <-ctx.Done():
		if err := s.Shutdown(); err != nil {
			return err
		}
		return nil
	}
}

// startBackground launches the hub loops plus the frame and event pumps.
// Everything stops with ctx.
func (s *Server) startBackground(ctx context.Context) {
	go s.frameHub.Run(ctx)
	go s.eventHub.Run(ctx)
	go s.streamFrames(ctx)
	go s.forwardEvents(ctx)
}

// Shutdown gracefully stops the web server.
func (s *Server) Shutdown() error {
	return s.app.ShutdownWithTimeout(5 * time.Second)
}

// streamFrames broadcasts a rendered frame every StreamInterval while
// anyone is watching.
func (s *Server) streamFrames(ctx context.Context) {
	ticker := time.NewTicker(s.opts.StreamInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.frameHub.ClientCount() == 0 {
				continue
			}
			if err := s.frameHub.BroadcastJSON(s.ctrl.Frame()); err != nil {
				s.log.Warn("frame encode failed", "error", err)
			}
		}
	}
}

func (s *Server) forwardEvents(ctx context.Context) {
	events, cancel := s.ctrl.Bus().Subscribe(s.opts.EventBuffer)
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if err := s.eventHub.BroadcastJSON(e); err != nil {
				s.log.Warn("event encode failed", "error", err)
			}
		}
	}
}
