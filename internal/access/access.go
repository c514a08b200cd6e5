// Package access decides video visibility under multi-tenant isolation and
// security-level clearance. Every source surfaced to a user passes through
// this filter first.
package access

import (
	"context"

	"github.com/kildespor/kildespor/models"
)

// GrantStore looks up explicit per-user permissions on a video.
type GrantStore interface {
	HasGrant(ctx context.Context, videoID, userID string, types ...models.PermissionType) (bool, error)
}

// Filter evaluates access rules against roles, organization membership,
// security levels and explicit grants.
type Filter struct {
	Grants GrantStore
}

func NewFilter(grants GrantStore) *Filter {
	return &Filter{Grants: grants}
}

// CanView reports whether the user may see the video.
// Rules, in order: super admins see everything; org admins see their whole
// organization; cross-organization access is always denied; an explicit grant
// of any type suffices; otherwise security-level clearance decides.
func (f *Filter) CanView(ctx context.Context, user models.User, video models.Video) (bool, error) {
	if user.Role == models.RoleSuperAdmin {
		return true, nil
	}
	if user.OrganizationID != video.OrganizationID {
		return false, nil
	}
	if user.Role == models.RoleOrgAdmin {
		return true, nil
	}
	ok, err := f.Grants.HasGrant(ctx, video.ID, user.ID)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	return hasClearance(user, video.SecurityLevel), nil
}

// CanEdit reports whether the user may modify or delete the video.
func (f *Filter) CanEdit(ctx context.Context, user models.User, video models.Video) (bool, error) {
	if user.Role == models.RoleSuperAdmin {
		return true, nil
	}
	if user.Role == models.RoleOrgAdmin && user.OrganizationID == video.OrganizationID {
		return true, nil
	}
	if video.UploadedBy == user.ID {
		return true, nil
	}
	return f.Grants.HasGrant(ctx, video.ID, user.ID, models.PermissionEdit, models.PermissionAdmin)
}

// FilterViewable keeps only the videos the user can see.
func (f *Filter) FilterViewable(ctx context.Context, user models.User, videos []models.Video) ([]models.Video, error) {
	if user.Role == models.RoleSuperAdmin {
		return videos, nil
	}
	out := make([]models.Video, 0, len(videos))
	for _, v := range videos {
		ok, err := f.CanView(ctx, user, v)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// hasClearance applies security-level rules for org members without explicit
// grants: public and internal are open, confidential and secret are admin-only.
func hasClearance(user models.User, level models.SecurityLevel) bool {
	switch level {
	case models.SecurityPublic, models.SecurityInternal:
		return true
	}
	return user.Role == models.RoleOrgAdmin || user.Role == models.RoleSuperAdmin
}
