package rbac

import "github.com/bazarly/bazarly/internal/shared"

// Capability is an atomic action a principal may perform.
type Capability string

const (
	OrdersCreate    Capability = "orders:create"
	OrdersUpdate    Capability = "orders:update"
	OrdersCancel    Capability = "orders:cancel"
	ReturnsCreate   Capability = "returns:create"
	InventoryAdjust Capability = "inventory:adjust"
	InventoryView   Capability = "inventory:view"
	ReportsView     Capability = "reports:view"
	ExpensesCreate  Capability = "expenses:create"
	CatalogWrite    Capability = "catalog:write"
)

// CapabilitySet is a membership set over capabilities.
type CapabilitySet map[Capability]struct{}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

func newSet(caps ...Capability) CapabilitySet {
	set := make(CapabilitySet, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}

var staffCaps = newSet(
	OrdersCreate,
	OrdersUpdate,
	ReturnsCreate,
	InventoryView,
)

var managerCaps = newSet(
	OrdersCreate,
	OrdersUpdate,
	OrdersCancel,
	ReturnsCreate,
	InventoryAdjust,
	InventoryView,
	ReportsView,
	ExpensesCreate,
	CatalogWrite,
)

var adminCaps = newSet(
	OrdersCreate,
	OrdersUpdate,
	OrdersCancel,
	ReturnsCreate,
	InventoryAdjust,
	InventoryView,
	ReportsView,
	ExpensesCreate,
	CatalogWrite,
)

// RoleCapabilities returns the static capability set for a role.
// Unknown roles get an empty set, never a nil map.
func RoleCapabilities(role shared.Role) CapabilitySet {
	switch role {
	case shared.RoleAdmin:
		return adminCaps
	case shared.RoleManager:
		return managerCaps
	case shared.RoleStaff:
		return staffCaps
	default:
		return CapabilitySet{}
	}
}

// Allowed reports whether the role grants the capability.
func Allowed(role shared.Role, cap Capability) bool {
	return RoleCapabilities(role).Has(cap)
}
