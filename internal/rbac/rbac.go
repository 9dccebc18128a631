// Package rbac maps user roles to their fixed capability sets.
package rbac

import (
	"errors"
	"fmt"

	"github.com/shoplist/core/types"
)

// ErrUnknownRole is returned for a role outside admin, editor and viewer.
// It signals bad profile data, so callers must not fall back to a default.
var ErrUnknownRole = errors.New("unknown role")

var capabilities = map[types.Role]types.RoleCapabilities{
	types.RoleAdmin: {
		CanCreateList:    true,
		CanEditList:      true,
		CanDeleteList:    true,
		CanManageUsers:   true,
		CanViewAnalytics: true,
		CanExportData:    true,
	},
	types.RoleEditor: {
		CanCreateList: true,
		CanEditList:   true,
		CanExportData: true,
	},
	types.RoleViewer: {},
}

// CapabilitiesFor returns the capability set of role.
func CapabilitiesFor(role types.Role) (types.RoleCapabilities, error) {
	caps, ok := capabilities[role]
	if !ok {
		return types.RoleCapabilities{}, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	return caps, nil
}

// Valid reports whether role is one of the known roles.
func Valid(role types.Role) bool {
	_, ok := capabilities[role]
	return ok
}
