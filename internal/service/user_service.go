package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/google/uuid"

	"github.com/taxharvest/engine/internal/apperrors"
	"github.com/taxharvest/engine/internal/model"
	"github.com/taxharvest/engine/internal/repository"
)

// UserService manages per-account profiles. Broker tokens are encrypted with
// fernet before they reach the repository; the plaintext never touches disk.
type UserService struct {
	userRepo *repository.UserRepository
	key      *fernet.Key
}

// NewUserService creates a new UserService. The fernet secret may be empty,
// in which case profiles work but broker tokens are rejected.
func NewUserService(userRepo *repository.UserRepository, fernetSecret string) (*UserService, error) {
	s := &UserService{userRepo: userRepo}

	if fernetSecret != "" {
		key, err := fernet.DecodeKey(fernetSecret)
		if err != nil {
			return nil, fmt.Errorf("invalid fernet secret: %w", err)
		}
		s.key = key
	}

	return s, nil
}

// GetProfile returns the profile for an account with the broker token
// decrypted.
func (s *UserService) GetProfile(accountID string) (model.UserProfile, error) {
	profile, err := s.userRepo.GetProfileByAccount(accountID)
	if err != nil {
		return model.UserProfile{}, err
	}

	if profile.BrokerToken != "" {
		token, err := s.decryptToken(profile.BrokerToken)
		if err != nil {
			return model.UserProfile{}, err
		}
		profile.BrokerToken = token
	}

	return profile, nil
}

// SetProfile creates or updates the account's profile. A non-empty broker
// token is encrypted before storage; an empty one clears the stored token.
func (s *UserService) SetProfile(ctx context.Context, profile model.UserProfile) (model.UserProfile, error) {
	if profile.TaxRate != nil {
		if profile.TaxRate.IsNegative() {
			return model.UserProfile{}, fmt.Errorf("%w: tax rate", apperrors.ErrNegativeAmount)
		}
	}
	if profile.WashSaleWindowDays != nil && *profile.WashSaleWindowDays < 0 {
		return model.UserProfile{}, fmt.Errorf("%w: wash sale window", apperrors.ErrNegativeAmount)
	}

	now := time.Now().UTC()

	existing, err := s.userRepo.GetProfileByAccount(profile.AccountID)
	switch {
	case errors.Is(err, apperrors.ErrUserProfileNotFound):
		profile.ID = uuid.New().String()
		profile.CreatedAt = now
	case err != nil:
		return model.UserProfile{}, err
	default:
		profile.ID = existing.ID
		profile.CreatedAt = existing.CreatedAt
	}
	profile.UpdatedAt = now

	stored := profile
	if profile.BrokerToken != "" {
		ciphertext, err := s.encryptToken(profile.BrokerToken)
		if err != nil {
			return model.UserProfile{}, err
		}
		stored.BrokerToken = ciphertext
	}

	if err := s.userRepo.UpsertProfile(ctx, &stored); err != nil {
		return model.UserProfile{}, err
	}

	return profile, nil
}

func (s *UserService) encryptToken(plaintext string) (string, error) {
	if s.key == nil {
		return "", errors.New("broker token encryption requires FERNET_SECRET")
	}

	token, err := fernet.EncryptAndSign([]byte(plaintext), s.key)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt broker token: %w", err)
	}
	return string(token), nil
}

func (s *UserService) decryptToken(ciphertext string) (string, error) {
	if s.key == nil {
		return "", errors.New("broker token decryption requires FERNET_SECRET")
	}

	// TTL 0 disables token expiry; the stored token lives as long as the row.
	plaintext := fernet.VerifyAndDecrypt([]byte(ciphertext), 0, []*fernet.Key{s.key})
	if plaintext == nil {
		return "", errors.New("failed to decrypt broker token")
	}
	return string(plaintext), nil
}
