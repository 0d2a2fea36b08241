package auth

import (
	"context"

	"github.com/servicehub/booking-api/internal/model"
	"github.com/servicehub/booking-api/internal/repository"
	"github.com/servicehub/booking-api/pkg/auth"
	apperr "github.com/servicehub/booking-api/pkg/errors"
	"github.com/servicehub/booking-api/pkg/security"
)

type Service struct {
	users  repository.UserDirectory
	jwtSvc auth.JWTService
	hasher security.PasswordHasher
}

func NewService(users repository.UserDirectory, jwtSvc auth.JWTService, hasher security.PasswordHasher) *Service {
	return &Service{
		users:  users,
		jwtSvc: jwtSvc,
		hasher: hasher,
	}
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperr.IsCode(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized(err)
		}
		return nil, err
	}

	if err := s.hasher.Compare(user.PasswordHash, req.Password); err != nil {
		return nil, apperr.Unauthorized(err)
	}

	token, err := s.jwtSvc.GenerateAccessToken(user)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	return &model.LoginResponse{Token: token, User: user}, nil
}

func (s *Service) ValidateToken(_ context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtSvc.ValidateToken(token)
	if err != nil {
		return nil, apperr.Unauthorized(err)
	}
	return claims, nil
}
