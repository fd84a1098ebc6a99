package service

import (
	"context"

	"github.com/isaacasamoah/piano-move-ai/internal/bizconfig"
)

// BusinessCatalog resolves inbound numbers to tenants and serves their
// configs. Implemented by bizconfig.Loader.
type BusinessCatalog interface {
	Load(businessID string) (*bizconfig.Business, error)
	ResolvePhone(number string) string
}

// DistanceResolver turns an origin/destination address pair into kilometres.
// It never fails: resolution problems are absorbed into a fallback distance.
// Implemented by geo.Service.
type DistanceResolver interface {
	Resolve(ctx context.Context, origin, destination string) float64
}
