package health

import "context"

// BackendPinger checks search engine availability.
type BackendPinger interface {
	Ping(ctx context.Context) error
}

// SchemaChecker checks that the registered types merge into one schema.
type SchemaChecker interface {
	Check() error
}
