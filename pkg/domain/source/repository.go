package source

import (
	"context"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/pagination"
)

// Repository defines the interface for source persistence.
type Repository interface {
	Create(ctx context.Context, src *Source) error
	GetByID(ctx context.Context, id shared.ID) (*Source, error)
	GetByName(ctx context.Context, name string) (*Source, error)
	Update(ctx context.Context, src *Source) error
	Delete(ctx context.Context, id shared.ID) error
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Source], error)

	// ListByCredential returns every source referencing the credential.
	// Used by the credential delete guard.
	ListByCredential(ctx context.Context, credentialID shared.ID) ([]*Source, error)
}

// Filter defines the filter options for listing sources.
type Filter struct {
	Type *Type
	Name string
}
