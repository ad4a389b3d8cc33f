package auth

// Principal is a stored account: unique username, bcrypt hash and role set
type Principal struct {
	ID           int64
	Username     string
	PasswordHash string
	Roles        []Role
}

// RoleNames returns the principal's roles as sorted strings
func (p *Principal) RoleNames() []string {
	return RoleNames(p.Roles)
}
