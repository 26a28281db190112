package daemon

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/tillsync/tillsync/internal/api"
	"github.com/tillsync/tillsync/internal/app/inspector"
	"github.com/tillsync/tillsync/internal/app/submitter"
	"github.com/tillsync/tillsync/internal/app/syncer"
	"github.com/tillsync/tillsync/internal/infra/connectivity"
	"github.com/tillsync/tillsync/internal/infra/gateway"
	"github.com/tillsync/tillsync/internal/infra/observability"
	"github.com/tillsync/tillsync/internal/infra/sqlite"
)

// Run starts the terminal daemon and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	storePath, err := cfg.StorePath()
	if err != nil {
		return err
	}
	store, err := sqlite.Open(storePath)
	if err != nil {
		return fmt.Errorf("open durable store: %w", err)
	}
	defer store.Close()

	// Records left syncing by a crash mid-pass get demoted before any
	// new pass can run.
	recovered, err := store.RecoverInflight()
	if err != nil {
		return fmt.Errorf("recover in-flight records: %w", err)
	}
	if len(recovered) > 0 {
		log.Printf("[daemon] recovered %d records stuck in syncing: %v", len(recovered), recovered)
	}
	if sum, err := store.Summary(); err == nil {
		observability.ObserveQueue(sum)
		log.Printf("[daemon] queue at startup: pending=%d failed=%d synced=%d", sum.Pending, sum.Failed, sum.Synced)
	}

	gw := gateway.New(cfg.Server.BaseURL, cfg.BatchTimeout())
	monitor := connectivity.NewMonitor(false)
	prober := connectivity.NewProber(monitor, gw.HealthURL(), cfg.ProbeInterval(), cfg.ProbeTimeout())

	engine := syncer.New(store, gw, cfg.BatchTimeout())
	scheduler := syncer.NewScheduler(engine, monitor, cfg.SyncInterval())
	sub := submitter.New(store, gw, monitor, cfg.SubmitTimeout())
	insp := inspector.New(store, engine)

	server := api.NewServer(sub, engine, insp, monitor)
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go prober.Run(ctx)
	go scheduler.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] tillsync %s listening on %s (store=%s)", api.Version, addr, storePath)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
	}

	log.Printf("[daemon] shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
