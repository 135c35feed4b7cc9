// Package access implements the authorize-then-act check shared by the
// budget and goal operations.
package access

import (
	"context"
	"errors"
	"fmt"

	"finsight/internal/core"
)

// Owned is implemented by records that belong to exactly one user.
type Owned interface {
	OwnerID() string
}

// Fetch loads a record by identifier.
type Fetch[T Owned] func(ctx context.Context, id string) (T, error)

// Authorize loads the record named by id and verifies that the requester
// owns it or is an administrator. Missing records become NotFound errors,
// foreign records become Forbidden errors. Records are never filtered out
// silently.
func Authorize[T Owned](ctx context.Context, req core.Requester, entity, id string, fetch Fetch[T]) (T, error) {
	var zero T
	if req.UserID == "" && !req.Admin {
		return zero, core.Forbiddenf("missing requester identity")
	}

	rec, err := fetch(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return zero, core.NotFoundf("%s %s not found", entity, id)
		}
		return zero, fmt.Errorf("load %s %s: %w", entity, id, err)
	}

	if !req.CanAccess(rec.OwnerID()) {
		return zero, core.Forbiddenf("%s %s does not belong to user %s", entity, id, req.UserID)
	}
	return rec, nil
}

// Scope verifies that the requester may read or write data of userID.
func Scope(req core.Requester, userID string) error {
	if userID == "" {
		return core.Validationf("user id is required")
	}
	if !req.CanAccess(userID) {
		return core.Forbiddenf("user %s cannot access data of user %s", req.UserID, userID)
	}
	return nil
}
