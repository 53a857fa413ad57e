package service

import (
	"fmt"

	cryptoDomain "github.com/allisson/fieldcrypt/internal/crypto/domain"
)

// BackendRegistryService holds the configured wrap backends keyed by scheme.
type BackendRegistryService struct {
	backends map[cryptoDomain.WrapScheme]WrapBackend
}

// NewBackendRegistry creates a registry from the given backends.
func NewBackendRegistry(backends ...WrapBackend) *BackendRegistryService {
	m := make(map[cryptoDomain.WrapScheme]WrapBackend, len(backends))
	for _, b := range backends {
		m[b.Scheme()] = b
	}
	return &BackendRegistryService{backends: m}
}

// ForScheme returns the backend for a scheme. A key row whose scheme has no
// configured backend (e.g. a kms row in a deployment without KMS settings)
// fails here with ErrUnsupportedScheme.
func (r *BackendRegistryService) ForScheme(scheme cryptoDomain.WrapScheme) (WrapBackend, error) {
	backend, ok := r.backends[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: no backend configured for scheme %s", cryptoDomain.ErrUnsupportedScheme, scheme)
	}
	return backend, nil
}
