package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/vncsmyrnk/rankedpoll/internal/core/domain"
	"github.com/vncsmyrnk/rankedpoll/internal/core/ports"
)

type tokenService struct {
	secret []byte
	now    func() time.Time
}

func NewTokenService(secret string) ports.TokenService {
	return &tokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

func (s *tokenService) Issue(identity domain.Identity, ttl time.Duration) (string, error) {
	if identity.PollID == "" || identity.UserID == "" {
		return "", errors.New("identity requires poll and user id")
	}

	now := s.now()
	claims := jwt.MapClaims{
		"sub":    identity.UserID,
		"pollID": identity.PollID,
		"name":   identity.Name,
		"iat":    now.Unix(),
		"exp":    now.Add(ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *tokenService) Verify(token string) (domain.Identity, error) {
	if token == "" {
		return domain.Identity{}, fmt.Errorf("%w: no token provided", domain.ErrInvalidToken)
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}

	sub, _ := claims["sub"].(string)
	pollID, _ := claims["pollID"].(string)
	name, _ := claims["name"].(string)
	if sub == "" || pollID == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing claims", domain.ErrInvalidToken)
	}

	return domain.Identity{PollID: pollID, UserID: sub, Name: name}, nil
}
