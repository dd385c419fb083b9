package directory

import (
	"context"
	"errors"

	"github.com/fathima-sithara/inbox-service/internal/models"
)

// ErrNotFound means the user record does not exist. Any other lookup
// error is transient and may be retried by the caller.
var ErrNotFound = errors.New("directory: user not found")

// Directory resolves a user id to display metadata.
type Directory interface {
	Lookup(ctx context.Context, id string) (*models.PartnerMetadata, error)
}
