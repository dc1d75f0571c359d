package fulfillment

import (
	"context"
	"errors"
	"fmt"
)

// Provider names
const (
	ProviderHubnet     = "hubnet"
	ProviderGeonettech = "geonettech"
	ProviderTelecel    = "telecel"
)

// ErrRejected is returned when the reseller declines a submission.
// The order must not be persisted and reserved stock must be released.
var ErrRejected = errors.New("fulfillment rejected")

// RejectionError carries the provider's reason for declining
type RejectionError struct {
	Provider string
	Reason   string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("fulfillment rejected by %s: %s", e.Provider, e.Reason)
}

func (e *RejectionError) Unwrap() error { return ErrRejected }

// SubmitRequest represents a bundle delivery submission
type SubmitRequest struct {
	Recipient string // MSISDN receiving the bundle
	VolumeMB  int64
	Reference string // our order reference, idempotency key on the provider side
}

// SubmitResult represents an accepted submission
type SubmitResult struct {
	ProviderReference string
	// Delivered is true when the provider settles synchronously; false means
	// the submission was accepted and will resolve out-of-band.
	Delivered bool
}

// Provider is the interface every reseller integration implements
type Provider interface {
	// Submit pushes a bundle delivery to the reseller. A declined submission
	// returns a *RejectionError; transport failures return ordinary errors.
	// Submissions must never be repeated for a reference already accepted.
	Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error)

	// Name returns the provider identifier
	Name() string
}

// Registry maps bundle fulfillment keys to providers
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider to the registry
func (r *Registry) Register(name string, p Provider) {
	r.providers[name] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("fulfillment provider '%s' not found", name)
	}
	return p, nil
}
