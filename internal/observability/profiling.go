package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/grafana/pyroscope-go"
	"github.com/riskibarqy/fantasy-auction/internal/config"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
)

// Profiling owns the optional pprof listener and the pyroscope agent. Either
// may be nil when disabled.
type Profiling struct {
	pprof    *http.Server
	profiler *pyroscope.Profiler
	logger   *logging.Logger
}

var profileTypes = []pyroscope.ProfileType{
	pyroscope.ProfileCPU,
	pyroscope.ProfileAllocObjects,
	pyroscope.ProfileAllocSpace,
	pyroscope.ProfileInuseObjects,
	pyroscope.ProfileInuseSpace,
	pyroscope.ProfileGoroutines,
	// Lock contention on auction keys shows up here.
	pyroscope.ProfileMutexCount,
	pyroscope.ProfileMutexDuration,
	pyroscope.ProfileBlockCount,
	pyroscope.ProfileBlockDuration,
}

func StartProfiling(cfg config.Config, logger *logging.Logger) (*Profiling, error) {
	if logger == nil {
		logger = logging.Default()
	}
	p := &Profiling{logger: logger.Named("profiling")}

	if cfg.PyroscopeEnabled {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName:   cfg.PyroscopeAppName,
			ServerAddress:     cfg.PyroscopeServerAddress,
			AuthToken:         cfg.PyroscopeAuthToken,
			BasicAuthUser:     cfg.PyroscopeBasicAuthUser,
			BasicAuthPassword: cfg.PyroscopeBasicAuthPassword,
			UploadRate:        cfg.PyroscopeUploadRate,
			Tags: map[string]string{
				"env":     cfg.AppEnv,
				"service": cfg.ServiceName,
				"version": cfg.ServiceVersion,
				"storage": cfg.StorageDriver,
			},
			ProfileTypes: profileTypes,
		})
		if err != nil {
			return nil, err
		}
		p.profiler = profiler
		p.logger.Info("pyroscope enabled", "server_address", cfg.PyroscopeServerAddress, "application", cfg.PyroscopeAppName)
	}

	if cfg.PprofEnabled {
		p.pprof = &http.Server{
			Addr:              cfg.PprofAddr,
			Handler:           pprofHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func(srv *http.Server) {
			p.logger.Info("pprof server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				p.logger.Error("pprof server failed", "error", err)
			}
		}(p.pprof)
	}

	return p, nil
}

func pprofHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

// Stop shuts both down and returns the first error.
func (p *Profiling) Stop(ctx context.Context) error {
	if p == nil {
		return nil
	}

	var errs []error
	if p.pprof != nil {
		if err := p.pprof.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		} else {
			p.logger.Info("pprof server stopped")
		}
	}
	if p.profiler != nil {
		if err := p.profiler.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
