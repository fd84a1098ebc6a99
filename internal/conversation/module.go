// Package conversation wires the engine: registry, extraction strategies,
// distance resolution, and the webhook routes.
package conversation

import (
	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/handler"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/registry"
	"github.com/isaacasamoah/piano-move-ai/internal/conversation/service"
	"github.com/isaacasamoah/piano-move-ai/internal/events"
	"github.com/isaacasamoah/piano-move-ai/internal/extraction"
	apphttp "github.com/isaacasamoah/piano-move-ai/internal/http"
	"github.com/isaacasamoah/piano-move-ai/platform/config"
	"github.com/isaacasamoah/piano-move-ai/platform/logger"
)

// Module is the conversation engine bounded context.
type Module struct {
	handler  *handler.Handler
	svc      *service.Service
	registry registry.Registry
}

// ModuleConfig is the slice of application config the module needs.
type ModuleConfig interface {
	config.EngineConfig
	config.RegistryConfig
	config.BusinessConfig
}

// NewModule builds the engine stack. The registry backend follows the config:
// a Redis URL selects the shared store, otherwise sessions stay in-process.
// primary may be nil when no model is configured.
func NewModule(
	cfg ModuleConfig,
	catalog *bizconfig.Loader,
	primary, fallback extraction.Extractor,
	distance service.DistanceResolver,
	bus events.Bus,
	log *logger.Logger,
) (*Module, error) {
	var reg registry.Registry
	if url := cfg.GetRedisURL(); url != "" {
		redisReg, err := registry.NewRedis(url, cfg.GetSessionTTL())
		if err != nil {
			return nil, err
		}
		reg = redisReg
		log.Info("session registry backend", "backend", "redis")
	} else {
		reg = registry.NewMemory()
		log.Info("session registry backend", "backend", "memory")
	}

	svc := service.New(reg, catalog, primary, fallback, distance, bus, cfg, cfg, log)
	return &Module{
		handler:  handler.New(svc),
		svc:      svc,
		registry: reg,
	}, nil
}

func (m *Module) Name() string {
	return "conversation"
}

// RegisterRoutes mounts the call endpoints behind webhook authentication.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	m.handler.RegisterRoutes(ctx.Webhook.Group("/calls"))
}

// Service exposes the engine for the simulator and for health wiring.
func (m *Module) Service() *service.Service {
	return m.svc
}

// Registry exposes the backing store, used by main for the Redis health check.
func (m *Module) Registry() registry.Registry {
	return m.registry
}

var _ apphttp.Module = (*Module)(nil)
