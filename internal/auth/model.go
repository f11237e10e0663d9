package auth

import (
	"github.com/daap14/parley/internal/team"
	"github.com/daap14/parley/internal/user"
)

// RegisterInput holds the fields accepted by Register.
type RegisterInput struct {
	Email       string
	Password    string
	DisplayName *string
}

// RegisterResult holds the rows created by Register.
type RegisterResult struct {
	User       *user.User
	Team       *team.Team
	Membership *team.Membership
}

// LoginInput holds the fields accepted by Login.
type LoginInput struct {
	Email    string
	Password string
}

// LoginResult holds the authenticated user and their team context. Team is
// nil when the user belongs to no team.
type LoginResult struct {
	User        *user.User
	Team        *team.Team
	Memberships []team.Membership
}

// RecoverInput holds the fields accepted by Recover.
type RecoverInput struct {
	Email string
}

// RecoverResult holds the issued recovery token.
type RecoverResult struct {
	Token string
}

// ResetInput holds the fields accepted by ResetPassword.
type ResetInput struct {
	Token    string
	Password string
}
