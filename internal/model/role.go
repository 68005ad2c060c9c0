package model

// Role names form a small fixed catalog; rows in 'roles' are reference data
// seeded by the schema migration. Authorization is a flat membership check,
// so admin accounts are granted RoleUser explicitly at creation instead of
// the authorizer knowing about a hierarchy.
const (
	RoleUser           = "user"
	RoleAdmin          = "admin"
	RoleEmailVerified  = "email-verified"
	RoleTrustedContact = "trusted-contact"
)

var roleCatalog = map[string]bool{
	RoleUser:           true,
	RoleAdmin:          true,
	RoleEmailVerified:  true,
	RoleTrustedContact: true,
}

// KnownRole reports whether name is part of the fixed role catalog.
func KnownRole(name string) bool { return roleCatalog[name] }

// RequestableRoles are the roles a user may ask for via an access request.
// Admin is never requestable.
var RequestableRoles = map[string]bool{
	RoleTrustedContact: true,
}
