package model

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSeller   Role = "seller"
	RoleCustomer Role = "customer"
	RoleSystem   Role = "system"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// SystemActor performs automated transitions.
var SystemActor = Actor{ID: "system", Name: "automation", Role: RoleSystem}

// IsAdmin treats the automation actor as an administrator.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleSystem
}

func (a Actor) IsSeller() bool {
	return a.Role == RoleSeller
}
