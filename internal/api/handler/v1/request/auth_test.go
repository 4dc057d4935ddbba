package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignupRequest_Validate(t *testing.T) {
	valid := SignupRequest{
		Email:           "ana@example.com",
		Password:        "password123",
		ConfirmPassword: "password123",
		Name:            "Ana",
	}

	tests := []struct {
		name    string
		mutate  func(*SignupRequest)
		wantErr string
	}{
		{
			name:   "valid request",
			mutate: func(*SignupRequest) {},
		},
		{
			name: "missing email",
			mutate: func(req *SignupRequest) {
				req.Email = ""
			},
			wantErr: "email: cannot be blank",
		},
		{
			name: "malformed email",
			mutate: func(req *SignupRequest) {
				req.Email = "not-an-email"
			},
			wantErr: "email: must be a valid email address",
		},
		{
			name: "password too short",
			mutate: func(req *SignupRequest) {
				req.Password = "abc123"
				req.ConfirmPassword = "abc123"
			},
			wantErr: errInvalidPassword.Error(),
		},
		{
			name: "password without a number",
			mutate: func(req *SignupRequest) {
				req.Password = "passwordonly"
				req.ConfirmPassword = "passwordonly"
			},
			wantErr: errInvalidPassword.Error(),
		},
		{
			name: "password without a letter",
			mutate: func(req *SignupRequest) {
				req.Password = "1234567890"
				req.ConfirmPassword = "1234567890"
			},
			wantErr: errInvalidPassword.Error(),
		},
		{
			name: "confirm password mismatch",
			mutate: func(req *SignupRequest) {
				req.ConfirmPassword = "password456"
			},
			wantErr: errConfirmPasswordMismatch.Error(),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := valid
			tc.mutate(&req)

			err := req.Validate()

			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoginRequest_Validate(t *testing.T) {
	valid := LoginRequest{Email: "ana@example.com", Password: "password123"}
	assert.NoError(t, valid.Validate())

	missing := LoginRequest{Email: "ana@example.com"}
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password: cannot be blank")
}
