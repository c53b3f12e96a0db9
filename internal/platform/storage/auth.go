package storage

import (
	"context"
	"errors"

	"github.com/tastyhub/api/internal/platform/auth"
)

// ErrPermissionDenied is returned when the caller may not read the object.
var ErrPermissionDenied = errors.New("storage: permission denied")

// AuthorizeDownload decides whether identity may fetch an object. Published
// menu images are served anonymously; raw uploads are restricted to their
// uploader and to staff.
func AuthorizeDownload(identity *auth.Identity, ownerID string, allowAnonymous bool) error {
	if allowAnonymous {
		return nil
	}
	switch {
	case identity == nil:
		return ErrPermissionDenied
	case ownerID != "" && identity.UID == ownerID:
		return nil
	case identity.HasAnyRole(auth.RoleStaff, auth.RoleAdmin):
		return nil
	}
	return ErrPermissionDenied
}

// AuthorizeDownloadFromContext pulls the identity off the request context
// before applying the same policy.
func AuthorizeDownloadFromContext(ctx context.Context, ownerID string, allowAnonymous bool) (*auth.Identity, error) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok && !allowAnonymous {
		return nil, ErrPermissionDenied
	}
	if err := AuthorizeDownload(identity, ownerID, allowAnonymous); err != nil {
		return nil, err
	}
	return identity, nil
}
