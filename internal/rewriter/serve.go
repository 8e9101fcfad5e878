package rewriter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"
)

// Handler serves the archive root as static files.
// A request for "/" is redirected to the domain's timeline when domain is set.
func Handler(root, domain string) http.Handler {
	files := http.FileServer(http.Dir(root))
	if domain == "" {
		return files
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/"+domain+"/", http.StatusFound)
			return
		}
		files.ServeHTTP(w, r)
	})
}

// Serve exposes the archive root on addr until ctx is done.
func Serve(ctx context.Context, addr, root, domain string, logger *slog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(root, domain),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving archive", "addr", addr, "root", root)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
