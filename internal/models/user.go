package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRole reports whether role is one of the two supported roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleUser
}

type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // Never serialize in JSON
	Role         string     `json:"role" db:"role"`
	FirstLogin   *time.Time `json:"first_login" db:"first_login"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// UserView is the public projection of a user record. The password hash
// never appears here; the store-maintained timestamps only appear in the
// full view.
type UserView struct {
	ID         uuid.UUID  `json:"id"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	FullName   string     `json:"full_name"`
	Email      string     `json:"email"`
	Role       string     `json:"role"`
	FirstLogin *time.Time `json:"first_login"`
	LastLogin  *time.Time `json:"last_login"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
	UpdatedAt  *time.Time `json:"updated_at,omitempty"`
}

// NewUserView builds the public projection of a user. full=true includes
// created_at/updated_at; full=false is the restricted shape used after
// mutations.
func NewUserView(u *User, full bool) *UserView {
	view := &UserView{
		ID:         u.ID,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		FullName:   u.FullName(),
		Email:      u.Email,
		Role:       u.Role,
		FirstLogin: u.FirstLogin,
		LastLogin:  u.LastLogin,
	}
	if full {
		createdAt := u.CreatedAt
		updatedAt := u.UpdatedAt
		view.CreatedAt = &createdAt
		view.UpdatedAt = &updatedAt
	}
	return view
}

// Pagination describes the slice of a user listing that was returned.
type Pagination struct {
	Total       int `json:"total"`
	PerPage     int `json:"per_page"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	From        int `json:"from"`
	To          int `json:"to"`
}

// UserPage is one page of user views plus its pagination metadata.
type UserPage struct {
	Users      []*UserView `json:"users"`
	Pagination Pagination  `json:"pagination"`
}

// UserStatistics aggregates admin-facing counts over the whole user set.
// Percentages are rounded to two decimals and are 0 when there are no
// users at all.
type UserStatistics struct {
	TotalUsers       int     `json:"total_users"`
	AdminCount       int     `json:"admin_count"`
	UserCount        int     `json:"user_count"`
	RecentUsers      int     `json:"recent_users"`
	ActiveUsers      int     `json:"active_users"`
	AdminPercentage  float64 `json:"admin_percentage"`
	ActivePercentage float64 `json:"active_percentage"`
}

// UserActivity is one row of the admin activity report.
type UserActivity struct {
	ID                 uuid.UUID  `json:"id"`
	FullName           string     `json:"full_name"`
	Email              string     `json:"email"`
	Role               string     `json:"role"`
	FirstLogin         *time.Time `json:"first_login"`
	LastLogin          *time.Time `json:"last_login"`
	CreatedAt          time.Time  `json:"created_at"`
	DaysSinceLastLogin *int       `json:"days_since_last_login"`
	AccountAgeDays     int        `json:"account_age_days"`
}
