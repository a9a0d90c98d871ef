package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/Skotchmaster/pharmacy/internal/httpserver"
	"github.com/Skotchmaster/pharmacy/internal/metrics"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
)

const shutdownTimeout = 10 * time.Second

// Echo returns the fully routed HTTP handler.
func (a *App) Echo(log *slog.Logger) *echo.Echo {
	metrics.Register(nil)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(httpserver.Common(log, a.Config.CORSOrigins)...)

	httpserver.Register(e, &httpserver.Deps{
		AuthHandler:      &httpserver.AuthHTTP{Svc: a.Auth},
		InventoryHandler: &httpserver.InventoryHTTP{Svc: a.Inventory},
		Verifier:         a.Issuer,
		Ready:            a.Ready,
	})
	return e
}

// Serve runs the HTTP server and the token sweeper until ctx is cancelled,
// then shuts the server down gracefully.
func (a *App) Serve(ctx context.Context, log *slog.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.ServerPort),
		Handler:           a.Echo(log),
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 3 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http_listen", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutdown_started")
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		a.Auth.RunSweeper(logging.IntoContext(gctx, log), a.Config.TokenSweepInterval)
		return nil
	})
	return g.Wait()
}
