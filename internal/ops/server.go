package ops

import (
	"context"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ledengine/ledengine/internal/health"
	ledmetrics "github.com/ledengine/ledengine/internal/metrics"
)

// SceneController is the subset of *scenemanager.Manager the ops surface
// exposes as read endpoints.
type SceneController interface {
	ActiveSceneID() (int, bool)
	SceneCount() int
}

// EngineStatus is the subset of *engine.Engine the ops surface reports.
type EngineStatus interface {
	FPS() float64
	FrameCount() uint64
	OverrunCount() uint64
}

// Config configures the ops HTTP server.
type Config struct {
	Host      string
	Port      int
	AuthJWT   bool
	JWTSecret string
}

// Server is the fiber-backed ops surface: health, metrics, and a websocket
// change feed, all read-only against the running engine.
type Server struct {
	app     *fiber.App
	hub     *Hub
	metrics *ledmetrics.Metrics
	checker *health.HealthChecker
	sm      SceneController
	eng     EngineStatus
	log     *zap.Logger
	cfg     Config
}

// New builds the ops surface. Pass the same *health.HealthChecker the
// caller already registered its checks on, and the same *metrics.Metrics
// instance fed by the frame loop and dispatcher.
func New(cfg Config, hub *Hub, m *ledmetrics.Metrics, checker *health.HealthChecker, sm SceneController, eng EngineStatus, log *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New())
	app.Use(ledmetrics.Middleware(m))

	s := &Server{app: app, hub: hub, metrics: m, checker: checker, sm: sm, eng: eng, log: log, cfg: cfg}
	s.routes()
	return s
}

func (s *Server) routes() {
	skip := []string{"/healthz", "/metrics"}

	if s.cfg.AuthJWT {
		s.app.Use(JWTMiddleware(JWTConfig{SecretKey: s.cfg.JWTSecret, SkipPaths: skip}))
	}

	s.app.Get("/healthz", s.handleHealth)
	s.app.Get("/metrics", s.handleMetrics)
	s.app.Get("/status", s.handleStatus)

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		s.hub.Handle(c)
	}))
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	results := s.checker.RunChecks(c.Context())
	overall := s.checker.GetOverallStatus()

	code := fiber.StatusOK
	if overall == health.StatusUnhealthy {
		code = fiber.StatusServiceUnavailable
	}

	return c.Status(code).JSON(fiber.Map{
		"status": overall,
		"checks": results,
	})
}

func (s *Server) handleMetrics(c *fiber.Ctx) error {
	s.metrics.UpdateSystemMetrics()
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(s.metrics.PrometheusFormat())
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	sceneID, active := s.sm.ActiveSceneID()
	return c.JSON(fiber.Map{
		"active_scene":  sceneID,
		"scene_active":  active,
		"scene_count":   s.sm.SceneCount(),
		"fps":           s.eng.FPS(),
		"frame_count":   s.eng.FrameCount(),
		"overrun_count": s.eng.OverrunCount(),
		"ws_clients":    s.hub.ClientCount(),
	})
}

// Run starts the hub loop and listens until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	addr := s.cfg.Host + ":" + strconv.Itoa(s.cfg.Port)
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.app.Listen(addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
