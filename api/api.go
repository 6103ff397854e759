package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/college-explorer-api/utils/logger"
	"github.com/sahilchouksey/college-explorer-api/utils/response"
)

const (
	readTimeout  = 15 * time.Second
	writeTimeout = 30 * time.Second
	idleTimeout  = 60 * time.Second
	bodyLimit    = 2 * 1024 * 1024
)

type APIServer struct {
	app           *fiber.App
	listenAddress string
}

func NewAPIServer(listenAddress string) *APIServer {
	return &APIServer{
		app: fiber.New(fiber.Config{
			AppName:      "college-explorer-api",
			ErrorHandler: response.ErrorHandler,
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			IdleTimeout:  idleTimeout,
			BodyLimit:    bodyLimit,
		}),
		listenAddress: listenAddress,
	}
}

func (s *APIServer) GetEngine() *fiber.App {
	return s.app
}

// Run blocks until the listener stops.
func (s *APIServer) Run() error {
	logger.Info().Str("address", s.listenAddress).Msg("starting API server")
	return s.app.Listen(s.listenAddress)
}

// Shutdown stops accepting connections and waits for in-flight requests
// until ctx expires.
func (s *APIServer) Shutdown(ctx context.Context) error {
	logger.Info().Msg("shutting down API server")
	return s.app.ShutdownWithContext(ctx)
}
