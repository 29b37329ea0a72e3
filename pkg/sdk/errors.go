package searchdex

import (
	"github.com/kailas-cloud/searchdex/internal/domain"
	searchuc "github.com/kailas-cloud/searchdex/internal/usecase/search"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrConfiguration      = domain.ErrConfiguration
	ErrCompilation        = domain.ErrCompilation
	ErrIndexing           = domain.ErrIndexing
	ErrBackendUnavailable = domain.ErrBackendUnavailable
	ErrFieldType          = domain.ErrFieldType
	ErrNotRegistered      = domain.ErrNotRegistered
	ErrOutOfRange         = searchuc.ErrOutOfRange
)
