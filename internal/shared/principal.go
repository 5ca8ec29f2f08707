package shared

// Role enumerates the account roles known to the system.
type Role string

const (
	RoleAdmin   Role = "ADMIN"
	RoleManager Role = "MANAGER"
	RoleStaff   Role = "STAFF"
)

// Principal is the authenticated actor for the current request. It is
// resolved once by the auth middleware and passed explicitly into every
// state-changing service call; there is no ambient global.
type Principal struct {
	UserID   int64
	Username string
	Role     Role
}

// Valid reports whether the principal identifies a real account.
func (p Principal) Valid() bool {
	return p.UserID > 0 && p.Username != ""
}
