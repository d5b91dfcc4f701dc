package credential

import (
	"context"

	"github.com/hostscout/api/pkg/domain/shared"
	"github.com/hostscout/api/pkg/pagination"
)

// Repository defines the interface for credential persistence.
// Secret fields cross this boundary encrypted.
type Repository interface {
	Create(ctx context.Context, cred *Credential) error
	GetByID(ctx context.Context, id shared.ID) (*Credential, error)
	GetByName(ctx context.Context, name string) (*Credential, error)
	Update(ctx context.Context, cred *Credential) error
	Delete(ctx context.Context, id shared.ID) error
	List(ctx context.Context, filter Filter, page pagination.Pagination) (pagination.Result[*Credential], error)
}

// Filter defines the filter options for listing credentials.
type Filter struct {
	Type *Type
	Name string
}
