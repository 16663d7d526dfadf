package perm

import (
	"github.com/plandeck/plandeck/internal/apperr"
)

// Grant is the slice of an actor's membership a permission check needs:
// whether the membership is active and the bound role's permission map.
type Grant struct {
	Active      bool
	Permissions map[string]bool
}

// HasCompanyPermission resolves a company-scoped permission. Unknown keys
// are a configuration error; absence or any non-true value is a deny.
func HasCompanyPermission(g Grant, key string) (bool, error) {
	if !KnownCompanyKey(key) {
		return false, apperr.Config("unknown company permission key: %s", key)
	}
	if !g.Active {
		return false, nil
	}
	return g.Permissions[key], nil
}

// RequireCompanyPermission is HasCompanyPermission with a denial error.
func RequireCompanyPermission(g Grant, key string) error {
	ok, err := HasCompanyPermission(g, key)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.PermissionDenied("permission denied")
	}
	return nil
}

// HasProjectPermission resolves a project-scoped permission. There is no
// fallback to company roles.
func HasProjectPermission(g Grant, key string) (bool, error) {
	if !KnownProjectKey(key) {
		return false, apperr.Config("unknown project permission key: %s", key)
	}
	if !g.Active {
		return false, nil
	}
	return g.Permissions[key], nil
}

// RequireProjectPermission enforces a project-scoped permission.
func RequireProjectPermission(g Grant, key string) error {
	if !KnownProjectKey(key) {
		return apperr.Config("unknown project permission key: %s", key)
	}
	if !g.Active {
		return apperr.PermissionDenied("inactive project membership")
	}
	if !g.Permissions[key] {
		return apperr.PermissionDenied("permission denied")
	}
	return nil
}

// HasAnyProjectPermission reports whether the grant holds at least one of
// the listed keys. Used by workflow transitions, where any one allowed
// role key authorizes the action.
func HasAnyProjectPermission(g Grant, keys []string) (bool, error) {
	for _, key := range keys {
		ok, err := HasProjectPermission(g, key)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// ValidateCompanyPermissionMap rejects role permission maps carrying keys
// outside the company vocabulary.
func ValidateCompanyPermissionMap(perms map[string]bool) error {
	for key := range perms {
		if !KnownCompanyKey(key) {
			return apperr.Config("unknown company permission key: %s", key)
		}
	}
	return nil
}

// ValidateProjectPermissionMap rejects role permission maps carrying keys
// outside the project vocabulary.
func ValidateProjectPermissionMap(perms map[string]bool) error {
	for key := range perms {
		if !KnownProjectKey(key) {
			return apperr.Config("unknown project permission key: %s", key)
		}
	}
	return nil
}

// ValidateTransitionRoles rejects allowed-role lists referencing keys
// outside the project vocabulary. Configured at template edit time so the
// transition engine never sees an unknown key at run time.
func ValidateTransitionRoles(keys []string) error {
	for _, key := range keys {
		if !KnownProjectKey(key) {
			return apperr.Config("unknown project permission key: %s", key)
		}
	}
	return nil
}
