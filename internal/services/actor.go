package services

// Role is a capability granted to an authenticated actor.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleEmployee Role = "employee"
	RoleAuthor   Role = "author"
)

// Actor is the authenticated identity a request runs as. The transport
// resolves it once; CustomerID and AuthorID are nil when the account has no
// such profile.
type Actor struct {
	Subject    string
	Roles      []Role
	CustomerID *int64
	AuthorID   *int64
}

func (a Actor) HasRole(role Role) bool {
	for _, r := range a.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// customer returns the actor's customer id or ErrNoCustomerProfile.
func (a Actor) customer() (int64, error) {
	if a.CustomerID == nil {
		return 0, ErrNoCustomerProfile
	}
	return *a.CustomerID, nil
}

func (a Actor) author() (int64, error) {
	if a.AuthorID == nil {
		return 0, ErrNoAuthorProfile
	}
	return *a.AuthorID, nil
}
