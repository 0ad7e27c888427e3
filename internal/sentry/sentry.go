package sentry

import (
	"context"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rumahku/billing/internal/config"
	ierr "github.com/rumahku/billing/internal/errors"
	"github.com/rumahku/billing/internal/logger"
	"github.com/rumahku/billing/internal/types"
	"go.uber.org/fx"
)

// headers that must never leave the process
var scrubbedHeaders = []string{
	types.HeaderAuthorization,
	types.HeaderAPIKey,
	types.HeaderXenditCallbackToken,
	types.HeaderStripeSignature,
}

// routes whose traces are pure noise
var unsampledRoutes = map[string]struct{}{
	"GET /health":  {},
	"POST /health": {},
	"GET /metrics": {},
}

type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Module provides fx options for Sentry
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewSentryService),
		fx.Invoke(RegisterHooks),
	)
}

// RegisterHooks initializes the sdk on start and flushes buffered events on stop
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.cfg.Sentry.Enabled {
				svc.logger.Info("Sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.SampleRate,
				BeforeSend:       scrubEvent,
				TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
					if _, skip := unsampledRoutes[ctx.Span.Name]; skip {
						return 0.0
					}
					return svc.cfg.Sentry.SampleRate
				}),
			})
			if err != nil {
				svc.logger.Errorw("Failed to initialize Sentry", "error", err)
				return err
			}
			svc.logger.Infow("Sentry initialized",
				"environment", svc.cfg.Sentry.Environment,
				"sample_rate", svc.cfg.Sentry.SampleRate,
			)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.cfg.Sentry.Enabled {
				svc.logger.Info("Flushing Sentry events before shutdown")
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

// scrubEvent drops credentials and gateway signatures from captured requests
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request == nil {
		return event
	}
	for name := range event.Request.Headers {
		for _, scrubbed := range scrubbedHeaders {
			if strings.EqualFold(name, scrubbed) {
				event.Request.Headers[name] = "[redacted]"
			}
		}
	}
	event.Request.Cookies = ""
	return event
}

// NewSentryService creates a new Sentry service
func NewSentryService(cfg *config.Configuration, logger *logger.Logger) *Service {
	return &Service{
		cfg:    cfg,
		logger: logger,
	}
}

// CaptureException reports err on the request hub when there is one,
// so it carries the request and family tags
func (s *Service) CaptureException(ctx context.Context, err error) {
	if s == nil || !s.cfg.Sentry.Enabled || err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// StartDBSpan starts a span for a store round trip
func (s *Service) StartDBSpan(ctx context.Context, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if s == nil || !s.cfg.Sentry.Enabled {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, operation)
	span.Description = operation
	span.Op = "db." + string(s.cfg.Store.Provider)
	for k, v := range params {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// StartGatewaySpan starts a span around a payment gateway call
func (s *Service) StartGatewaySpan(ctx context.Context, provider types.PaymentProvider, operation string, params map[string]interface{}) (*sentry.Span, context.Context) {
	if s == nil || !s.cfg.Sentry.Enabled {
		return nil, ctx
	}

	span := sentry.StartSpan(ctx, "gateway."+operation)
	span.Description = provider.String() + " " + operation
	span.Op = "http.client"
	span.SetData("provider", provider.String())
	span.SetTag("gateway", provider.String())
	for k, v := range params {
		span.SetData(k, v)
	}
	return span, span.Context()
}

// GatewaySpanStatus maps a gateway outcome onto the span
func GatewaySpanStatus(span *sentry.Span, err error) {
	if span == nil {
		return
	}
	switch {
	case err == nil:
		span.Status = sentry.SpanStatusOK
	case ierr.IsUnavailable(err):
		span.Status = sentry.SpanStatusUnavailable
	case ierr.IsHTTPClient(err), ierr.IsValidation(err):
		span.Status = sentry.SpanStatusInvalidArgument
	default:
		span.Status = sentry.SpanStatusInternalError
	}
}
