package service

import (
	"context"

	"github.com/spec-kit/campus-issue-service/internal/auth"
	"github.com/spec-kit/campus-issue-service/internal/domain"
	"github.com/spec-kit/campus-issue-service/internal/repository"
	apperrors "github.com/spec-kit/campus-issue-service/pkg/util"
)

// DirectoryService exposes the admin-only user directories.
type DirectoryService struct {
	users repository.UserRepository
}

// NewDirectoryService constructs the service.
func NewDirectoryService(users repository.UserRepository) *DirectoryService {
	return &DirectoryService{users: users}
}

// ListByRole returns the directory for one role, credentials stripped.
func (s *DirectoryService) ListByRole(ctx context.Context, principal *auth.Principal, role domain.Role) ([]domain.UserRef, error) {
	if !auth.Can(principal, auth.ActionListDirectory) {
		return nil, apperrors.NewForbidden("insufficient role")
	}
	users, err := s.users.ListByRole(ctx, role)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	refs := make([]domain.UserRef, 0, len(users))
	for i := range users {
		refs = append(refs, users[i].Ref())
	}
	return refs, nil
}
