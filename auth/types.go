package auth

import (
	"strings"

	"github.com/transcriba/transcriba/session"
)

// LoginRequest carries the credentials posted to the login endpoint.
// RememberMe selects durable token storage and is forwarded to the server
// verbatim.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// RegisterRequest carries the fields posted to the register endpoint.
type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RegisterResponse is the created-user summary returned on registration.
type RegisterResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// ResetPasswordRequest carries an emailed reset token and the new password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// authPayload is the envelope data returned by login and refresh.
type authPayload struct {
	User         authUser `json:"user"`
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
}

type authUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (u authUser) toSession() session.User {
	return session.User{ID: u.ID, Email: u.Email, Name: u.Name}
}

// profileDTO is the profile endpoint's payload. The display name is
// derived client-side from the name parts, falling back to the email.
type profileDTO struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (p profileDTO) toSession() session.User {
	name := strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
	if name == "" {
		name = p.Email
	}
	return session.User{
		ID:        p.ID,
		Email:     p.Email,
		Name:      name,
		FirstName: p.FirstName,
		LastName:  p.LastName,
	}
}
