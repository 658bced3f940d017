package server

import (
	"context"
	"fmt"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"

	"github.com/andrisetia/merchant-ingest-be/internal/config"
	"github.com/andrisetia/merchant-ingest-be/internal/handler"
	"github.com/andrisetia/merchant-ingest-be/internal/middleware"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

type Server struct {
	echo            *echo.Echo
	cfg             *config.Config
	logger          *logger.Logger
	batchHandler    *handler.BatchHandler
	incomingHandler *handler.IncomingHandler
	merchantHandler *handler.MerchantHandler
	healthHandler   *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	batchHandler *handler.BatchHandler,
	incomingHandler *handler.IncomingHandler,
	merchantHandler *handler.MerchantHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	return &Server{
		echo:            e,
		cfg:             cfg,
		logger:          log,
		batchHandler:    batchHandler,
		incomingHandler: incomingHandler,
		merchantHandler: merchantHandler,
		healthHandler:   healthHandler,
	}
}

func (s *Server) Start() error {
	s.setupMiddleware()
	s.setupRoutes()

	addr := fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port)
	s.logger.Info(context.Background(), "Starting HTTP server",
		"address", addr,
	)

	return s.echo.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info(ctx, "Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

func (s *Server) setupMiddleware() {
	s.echo.Use(echoMiddleware.Recover())
	s.echo.Use(echoMiddleware.CORS())
	s.echo.Use(middleware.RequestID())
	s.echo.Use(middleware.Logging(s.logger))
}

func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthHandler.Check)

	batches := s.echo.Group("/api/batches")
	batches.GET("", s.batchHandler.List)
	batches.GET("/activity", s.batchHandler.Activity)
	batches.POST("/upload", s.batchHandler.Upload)
	batches.GET("/:id/transactions", s.batchHandler.ListTransactions)
	batches.PUT("/:id", s.batchHandler.Update)
	batches.DELETE("/:id", s.batchHandler.Delete)

	incoming := s.echo.Group("/api/incoming")
	incoming.POST("/upload", s.incomingHandler.Upload)
	incoming.GET("/files", s.incomingHandler.ListFiles)
	incoming.GET("/files/:id", s.incomingHandler.GetFile)

	merchants := s.echo.Group("/api/merchants")
	merchants.POST("", s.merchantHandler.Create)
	merchants.GET("", s.merchantHandler.List)
	merchants.GET("/next-id", s.merchantHandler.NextID)
}

func (s *Server) Handler() *echo.Echo {
	s.setupMiddleware()
	s.setupRoutes()
	return s.echo
}
