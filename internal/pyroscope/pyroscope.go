package pyroscope

import (
	"context"
	"strings"

	"github.com/grafana/pyroscope-go"
	"github.com/rumahku/billing/internal/config"
	"github.com/rumahku/billing/internal/logger"
	"github.com/samber/lo"
	"go.uber.org/fx"
)

var (
	defaultProfileTypes = []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileGoroutines,
	}

	profileTypesByName = map[string]pyroscope.ProfileType{
		"cpu":           pyroscope.ProfileCPU,
		"inuse_objects": pyroscope.ProfileInuseObjects,
		"alloc_objects": pyroscope.ProfileAllocObjects,
		"inuse_space":   pyroscope.ProfileInuseSpace,
		"alloc_space":   pyroscope.ProfileAllocSpace,
		"goroutines":    pyroscope.ProfileGoroutines,
		"mutex_count":   pyroscope.ProfileMutexCount,
		"block_count":   pyroscope.ProfileBlockCount,
	}
)

// Service owns the continuous profiler. It also satisfies pyroscope.Logger.
type Service struct {
	cfg      *config.Configuration
	logger   *logger.Logger
	profiler *pyroscope.Profiler
}

func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewPyroscopeService),
		fx.Invoke(RegisterHooks),
	)
}

func NewPyroscopeService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// RegisterHooks starts profiling with the app and stops it on shutdown
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: svc.start,
		OnStop: func(ctx context.Context) error {
			if svc.profiler == nil {
				return nil
			}
			svc.logger.Info("Stopping Pyroscope profiling")
			return svc.profiler.Stop()
		},
	})
}

func (s *Service) start(context.Context) error {
	if !s.IsEnabled() {
		s.logger.Info("Pyroscope profiling is disabled")
		return nil
	}

	cfg := s.cfg.Pyroscope
	profileTypes := s.profileTypes()
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPass,
		ProfileTypes:      profileTypes,
		Logger:            s,
		Tags: map[string]string{
			"store":      string(s.cfg.Store.Provider),
			"deployment": string(s.cfg.Deployment.Mode),
		},
	})
	if err != nil {
		s.logger.Errorw("Failed to initialize Pyroscope", "error", err)
		return err
	}

	s.logger.Infow("Pyroscope profiling initialized",
		"application_name", cfg.ApplicationName,
		"server_address", cfg.ServerAddress,
		"profile_types", profileTypes,
	)
	s.profiler = profiler
	return nil
}

// Debugf drops the profiler's upload chatter
func (s *Service) Debugf(string, ...interface{}) {}

func (s *Service) Infof(format string, args ...interface{}) {
	s.logger.Infof("[Pyroscope] "+format, args...)
}

func (s *Service) Errorf(format string, args ...interface{}) {
	s.logger.Errorf("[Pyroscope] "+format, args...)
}

func (s *Service) IsEnabled() bool {
	return s.cfg.Pyroscope.Enabled
}

// profileTypes resolves configured names, unknown names are logged and skipped
func (s *Service) profileTypes() []pyroscope.ProfileType {
	if len(s.cfg.Pyroscope.ProfileTypes) == 0 {
		return defaultProfileTypes
	}

	return lo.FilterMap(s.cfg.Pyroscope.ProfileTypes, func(name string, _ int) (pyroscope.ProfileType, bool) {
		profileType, ok := profileTypesByName[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			s.logger.Warnw("Unknown profile type", "type", name)
		}
		return profileType, ok
	})
}

// TagWrapper runs fn with profiling labels attached, empty values are dropped
func (s *Service) TagWrapper(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	if !s.IsEnabled() {
		fn(ctx)
		return
	}

	pairs := make([]string, 0, len(labels)*2)
	for key, value := range labels {
		if value != "" {
			pairs = append(pairs, key, value)
		}
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}
