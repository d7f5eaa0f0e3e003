package models

import "strings"

// Identity is the signed-in user as reported by the auth provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
}

// User is the profile node stored under users/{uid}.
type User struct {
	UID               string `json:"-"`
	Email             string `json:"email"`
	DisplayName       string `json:"displayName"`
	CustomDisplayName string `json:"customDisplayName"`
	PhotoURL          string `json:"photoURL,omitempty"`
}

// Name returns the name to show for the user: the custom name, then the
// provider display name, then the local part of the email.
func (u *User) Name() string {
	if u.CustomDisplayName != "" {
		return u.CustomDisplayName
	}
	if u.DisplayName != "" {
		return u.DisplayName
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}
