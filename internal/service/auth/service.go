// Package auth checks manager credentials for operations that need approval.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"brewpos/internal/domain"
	managerrepo "brewpos/internal/repository/manager"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Service struct {
	repo   managerrepo.Repository
	logger *zap.Logger
}

func New(repo managerrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger.Named("auth")}
}

// Verify returns the manager named in proof when the password matches.
// Unknown users and wrong passwords both yield domain.ErrUnauthorized.
func (s *Service) Verify(ctx context.Context, proof domain.AuthorizationProof) (*domain.Manager, error) {
	username := strings.TrimSpace(proof.Username)
	if username == "" || proof.Password == "" {
		return nil, fmt.Errorf("%w: credentials required", domain.ErrUnauthorized)
	}
	m, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("unknown manager", zap.String("username", username))
			return nil, domain.ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(proof.Password)); err != nil {
		s.logger.Warn("manager password mismatch", zap.String("username", username))
		return nil, domain.ErrUnauthorized
	}
	return m, nil
}

// Enroll hashes password and stores the manager, replacing any previous hash.
func (s *Service) Enroll(ctx context.Context, username, fullName, password string) (*domain.Manager, error) {
	username = strings.TrimSpace(username)
	if username == "" || len(password) < 6 {
		return nil, fmt.Errorf("%w: username and a password of at least 6 characters required", domain.ErrInvalidInput)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return s.repo.Upsert(ctx, domain.Manager{Username: username, FullName: fullName, PasswordHash: string(hashed)})
}
