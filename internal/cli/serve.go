package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/ppiankov/communitysurf/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the feed over HTTP with background auto-refresh",
	RunE:  serveAction,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

const shutdownTimeout = 5 * time.Second

func serveAction(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	addr := a.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	if a.cfg.LogLevel != "debug" && logLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	h := httpapi.NewHandler(a.feed, a.coord, a.cache, a.log)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	loops := startFetchLoops(ctx, a.coord, a.log)
	defer loops.Wait()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	a.log.Info("serving", "addr", addr, "sources", a.coord.Sources())

	select {
	case err := <-errCh:
		stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type fetchLoops interface {
	Sequence(ctx context.Context, force bool) error
	Run(ctx context.Context) error
}

// startFetchLoops runs the initial load and the auto-refresh loop until ctx
// is done. Wait on the result before closing the store they write to.
func startFetchLoops(ctx context.Context, fl fetchLoops, log *slog.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := fl.Sequence(ctx, false); err != nil && ctx.Err() == nil {
			log.Warn("initial fetch failed", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		_ = fl.Run(ctx)
	}()
	return &wg
}
