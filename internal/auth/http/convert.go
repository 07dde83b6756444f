package http

import (
	"github.com/aussiebroadwan/quickfix/internal/auth/domain"
	"github.com/aussiebroadwan/quickfix/internal/auth/service"
	"github.com/aussiebroadwan/quickfix/pkg/authsdk"
)

func toUser(u domain.User) authsdk.User {
	return authsdk.User{
		ID:           u.ID,
		Email:        u.Email,
		FullName:     u.FullName,
		Phone:        u.Phone,
		Organization: u.Organization,
		ProfileImage: u.ProfileImage,
		Role:         u.Role,
		Bio:          u.Bio,
		Location:     u.Location,
		HasPassword:  u.HasPassword(),
		GoogleLinked: u.GoogleID != nil,
		CreatedAt:    u.CreatedAt,
	}
}

func toUsers(us []domain.User) []authsdk.User {
	out := make([]authsdk.User, len(us))
	for i, u := range us {
		out[i] = toUser(u)
	}
	return out
}

func toAuthResponse(res domain.AuthResult) authsdk.AuthResponse {
	return authsdk.AuthResponse{
		AccessToken: res.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(res.ExpiresIn.Seconds()),
		AdminMode:   res.Session.AdminMode,
		User:        toUser(res.User),
	}
}

func toNewUser(req authsdk.RegisterRequest) service.NewUser {
	return service.NewUser{
		Email:        req.Email,
		FullName:     req.FullName,
		Password:     req.Password,
		Phone:        req.Phone,
		Organization: req.Organization,
		ProfileImage: req.ProfileImage,
	}
}

func toProfileUpdate(req authsdk.UpdateProfileRequest) domain.ProfileUpdate {
	return domain.ProfileUpdate{
		FullName:     req.FullName,
		Phone:        req.Phone,
		Organization: req.Organization,
		ProfileImage: req.ProfileImage,
		Bio:          req.Bio,
		Location:     req.Location,
	}
}
