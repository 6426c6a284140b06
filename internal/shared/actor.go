package shared

// Role enumerates the coarse permissions of an actor.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleWarehouse Role = "warehouse"
	RoleSupplier  Role = "supplier"
	RoleUser      Role = "user"
)

// Valid reports whether the role is known.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleWarehouse, RoleSupplier, RoleUser:
		return true
	}
	return false
}

// Actor identifies who performs an operation.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Role       Role   `json:"role"`
	SupplierID string `json:"supplierId,omitempty"`
}

// IsAdmin reports whether the actor has the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaff is true for admin and warehouse actors.
func (a Actor) IsStaff() bool {
	return a.Role == RoleAdmin || a.Role == RoleWarehouse
}

// ActsForSupplier reports whether the actor is the given supplier's account.
func (a Actor) ActsForSupplier(supplierID string) bool {
	return a.Role == RoleSupplier && supplierID != "" && a.SupplierID == supplierID
}

// HasRole reports whether the actor holds one of roles.
func (a Actor) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}
