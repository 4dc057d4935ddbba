package response

import "github.com/rifadigital/rifa-api/internal/domain"

type AuthResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}
