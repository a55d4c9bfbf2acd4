// Package authz holds the caller checks shared by services. Identity itself
// is established by the auth middleware; these only compare principals.
package authz

import (
	id "poolshare/pkg/domain"
	dErrors "poolshare/pkg/domain-errors"
)

// RequireCaller rejects an unauthenticated (nil) caller.
func RequireCaller(caller id.PrincipalID) error {
	if caller.IsNil() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	return nil
}

// RequireAdmin rejects anyone but the configured administrator.
func RequireAdmin(caller, admin id.PrincipalID) error {
	if err := RequireCaller(caller); err != nil {
		return err
	}
	if admin.IsNil() || caller != admin {
		return dErrors.New(dErrors.CodeForbidden, "administrator only")
	}
	return nil
}

// RequireSelf rejects a caller acting on another principal's data.
func RequireSelf(caller, subject id.PrincipalID) error {
	if err := RequireCaller(caller); err != nil {
		return err
	}
	if caller != subject {
		return dErrors.New(dErrors.CodeForbidden, "principals may only act on their own data")
	}
	return nil
}
