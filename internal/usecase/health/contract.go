package health

import "context"

// DBPinger checks database availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// GenerationChecker checks generation provider availability.
type GenerationChecker interface {
	HealthCheck(ctx context.Context) error
}
