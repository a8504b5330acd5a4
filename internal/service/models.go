package service

import "time"

// Account is a registered user.
type Account struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	EmailVerified bool   `json:"emailVerified"`
}

// DisplayName returns the best human-readable label for the account.
func (a Account) DisplayName() string {
	switch {
	case a.FirstName != "" && a.LastName != "":
		return a.FirstName + " " + a.LastName
	case a.FirstName != "":
		return a.FirstName
	default:
		return a.Username
	}
}

// SignupRequest creates an account.
type SignupRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

// SigninRequest opens a session.
type SigninRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is an authenticated session.
type Session struct {
	Token   string  `json:"token"`
	Account Account `json:"account"`
}

// VerificationRequest sends or confirms an email verification code.
type VerificationRequest struct {
	Email string `json:"email,omitempty"`
	Code  string `json:"code,omitempty"`
}

// Incident is a reported incident.
type Incident struct {
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CategoryID  string    `json:"categoryId"`
	Location    string    `json:"location"`
	Severity    string    `json:"severity"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Category groups incidents.
type Category struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Role is a named set of permissions.
type Role struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
}
