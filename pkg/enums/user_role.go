package enums

type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleRider    UserRole = "rider"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = []UserRole{UserRoleCustomer, UserRoleRider, UserRoleAdmin}

func (u UserRole) String() string { return string(u) }

func (u UserRole) IsValid() bool { return isMember(userRoles, u) }

func ParseUserRole(value string) (UserRole, error) {
	return parseMember(userRoles, value, "user role")
}
