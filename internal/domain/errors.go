package domain

import "errors"

var (
	// ErrConfiguration signals missing settings, an unsupported field type or a
	// field that cannot resolve its template. Raised at setup or registration time.
	ErrConfiguration = errors.New("improperly configured")
	// ErrCompilation signals a query option combination the backend cannot express.
	ErrCompilation = errors.New("query compilation failed")
	// ErrIndexing signals a single object that could not be prepared for indexing.
	ErrIndexing = errors.New("object indexing failed")
	// ErrBackendUnavailable signals a transport-level failure talking to the engine.
	ErrBackendUnavailable = errors.New("search backend unavailable")
	// ErrFieldType signals a prepared value that cannot be coerced to its field type.
	ErrFieldType = errors.New("field type mismatch")
	// ErrNotRegistered signals an object type without a registered search index.
	ErrNotRegistered = errors.New("model not registered for search")
)
