package server

import (
	"context"
	"fmt"

	"github.com/grachmannico95/bank-ledger/internal/config"
	"github.com/grachmannico95/bank-ledger/internal/handler"
	"github.com/grachmannico95/bank-ledger/internal/middleware"
	"github.com/grachmannico95/bank-ledger/pkg/logger"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
)

type Server struct {
	echo          *echo.Echo
	cfg           *config.Config
	logger        *logger.Logger
	ledgerHandler *handler.LedgerHandler
	healthHandler *handler.HealthHandler
}

func New(
	cfg *config.Config,
	log *logger.Logger,
	ledgerHandler *handler.LedgerHandler,
	healthHandler *handler.HealthHandler,
) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:          e,
		cfg:           cfg,
		logger:        log,
		ledgerHandler: ledgerHandler,
		healthHandler: healthHandler,
	}
	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) Start() error {
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

	s.echo.POST("/imports", s.ledgerHandler.Import)
	s.echo.GET("/imports", s.ledgerHandler.GetImports)
	s.echo.GET("/imports/:id", s.ledgerHandler.GetImport)
	s.echo.GET("/balance", s.ledgerHandler.GetBalance)
	s.echo.GET("/transactions", s.ledgerHandler.GetTransactions)
	s.echo.GET("/account", s.ledgerHandler.GetAccount)
	s.echo.PUT("/account", s.ledgerHandler.PutAccount)
}

func (s *Server) Handler() *echo.Echo {
	return s.echo
}
