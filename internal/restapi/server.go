package restapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/config"
	"github.com/eduardoaugusto358-droid/vivassce-baileys-backend/internal/whatsapp"
)

// Server exposes the instance management and send API over HTTP.
type Server struct {
	cfg        *config.AppConfig
	echo       *echo.Echo
	registry   *whatsapp.Registry
	dispatcher *whatsapp.Dispatcher
	gateway    *whatsapp.AuthGateway
	idNode     *snowflake.Node
}

func NewServer(cfg *config.AppConfig, reg *whatsapp.Registry, disp *whatsapp.Dispatcher, gw *whatsapp.AuthGateway) (*Server, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, errors.Wrap(err, "init id generator")
	}

	s := &Server{
		cfg:        cfg,
		registry:   reg,
		dispatcher: disp,
		gateway:    gw,
		idNode:     node,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = jsonSerializer{}
	e.HTTPErrorHandler = errorHandler
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     cfg.Web.AllowedOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, echo.HeaderAuthorization, "X-API-Key"},
		AllowCredentials: true,
	}))
	e.Use(requestLogger)

	s.echo = e
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/", s.getBanner)

	api := s.echo.Group("/api")
	api.GET("/status", s.getStatus)
	api.POST("/instance/create", s.createInstance)
	api.GET("/instance/list", s.listInstances)
	api.POST("/instance/:id/connect", s.connectInstance)
	api.POST("/instance/:id/disconnect", s.disconnectInstance)
	api.GET("/instance/:id/qr", s.getInstanceQR)
	api.GET("/instance/:id/status", s.getInstanceStatus)
	api.GET("/instance/:id/groups", s.getInstanceGroups)
	api.DELETE("/instance/:id", s.deleteInstance)

	send := api.Group("/send", s.authenticate)
	send.POST("/text", s.sendText)
	send.POST("/media", s.sendMedia)
	send.POST("/document", s.sendDocument)
	send.POST("/audio", s.sendAudio)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Web.Host, s.cfg.Web.Port)
	zap.L().Info("restapi: listening", zap.String("addr", addr))
	err := s.echo.Start(addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree (used in tests).
func (s *Server) Handler() http.Handler {
	return s.echo
}

func requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		zap.L().Debug("restapi: request",
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", c.Response().Status),
			zap.Duration("elapsed", time.Since(start)))
		return err
	}
}

// errorHandler renders every unhandled error as a flat JSON body.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code := http.StatusInternalServerError
	msg := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		msg = fmt.Sprintf("%v", he.Message)
	}
	if code == http.StatusNotFound {
		_ = c.JSON(code, echo.Map{"error": "Route not found", "path": c.Request().URL.Path})
		return
	}
	if code >= http.StatusInternalServerError {
		zap.L().Error("restapi: unhandled error",
			zap.String("path", c.Request().URL.Path), zap.Error(err))
	}
	_ = c.JSON(code, echo.Map{"error": msg})
}

// jsonSerializer swaps Echo's encoder for jsoniter.
type jsonSerializer struct{}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	enc := jsoniter.NewEncoder(c.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	if err := jsoniter.NewDecoder(c.Request().Body).Decode(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
