package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"fitvoice/internal/models"
)

// AuthenticateUser verifies credentials and returns the matching user on success.
func (s *Storage) AuthenticateUser(email, password string) (models.User, error) {
	if password == "" {
		return models.User{}, errors.New("password is required")
	}
	user, ok := s.FindUserByEmail(email)
	if !ok {
		return models.User{}, ErrInvalidCredentials
	}
	if user.PasswordHash == "" {
		return models.User{}, ErrPasswordLoginUnsupported
	}
	if err := verifyPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	return user, nil
}

// SetUserPassword replaces the stored password hash for the provided user.
func (s *Storage) SetUserPassword(id, password string) (models.User, error) {
	if len(password) < 8 {
		return models.User{}, errors.New("password must be at least 8 characters")
	}

	hashed, err := hashPassword(password)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	updatedData := cloneDataset(s.data)

	user, ok := updatedData.Users[id]
	if !ok {
		return models.User{}, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}

	user.PasswordHash = hashed
	updatedData.Users[id] = user

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}

	s.data = updatedData

	return user, nil
}

func oauthKey(provider, subject string) string {
	return strings.ToLower(strings.TrimSpace(provider)) + ":" + strings.TrimSpace(subject)
}

// AuthenticateOAuth resolves an OAuth identity to a local account. A
// known (provider, subject) pair reuses its linked account; otherwise
// the identity is linked to an existing account with the same email, or
// a fresh self-signup account is provisioned. Identities without an
// email get a synthetic one scoped to the provider.
func (s *Storage) AuthenticateOAuth(params OAuthLoginParams) (models.User, error) {
	provider := strings.ToLower(strings.TrimSpace(params.Provider))
	subject := strings.TrimSpace(params.Subject)
	if provider == "" || subject == "" {
		return models.User{}, errors.New("provider and subject are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := oauthKey(provider, subject)
	if account, ok := s.data.OAuthAccounts[key]; ok {
		if user, exists := s.data.Users[account.UserID]; exists {
			return user, nil
		}
	}

	updatedData := cloneDataset(s.data)

	email := strings.TrimSpace(strings.ToLower(params.Email))
	if email == "" {
		email = fmt.Sprintf("%s@%s.oauth", strings.ToLower(subject), provider)
	}

	var user models.User
	found := false
	for _, existing := range updatedData.Users {
		if existing.Email == email {
			user = existing
			found = true
			break
		}
	}

	if !found {
		displayName := strings.TrimSpace(params.DisplayName)
		if displayName == "" {
			displayName = fmt.Sprintf("%s user", provider)
		}
		user = models.User{
			ID:          newID(),
			DisplayName: displayName,
			Email:       email,
			Roles:       []string{"athlete"},
			SelfSignup:  true,
			CreatedAt:   s.now(),
		}
		updatedData.Users[user.ID] = user
	}

	updatedData.OAuthAccounts[key] = models.OAuthAccount{
		Provider:    provider,
		Subject:     subject,
		UserID:      user.ID,
		Email:       email,
		DisplayName: strings.TrimSpace(params.DisplayName),
		LinkedAt:    s.now(),
	}

	if err := s.persistDataset(updatedData); err != nil {
		return models.User{}, err
	}
	s.data = updatedData

	return user, nil
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, passwordHashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	derived := pbkdf2.Key([]byte(password), salt, passwordHashIterations, passwordHashKeyLength, sha256.New)
	encodedSalt := base64.RawStdEncoding.EncodeToString(salt)
	encodedKey := base64.RawStdEncoding.EncodeToString(derived)
	return fmt.Sprintf("pbkdf2$sha256$%d$%s$%s", passwordHashIterations, encodedSalt, encodedKey), nil
}

func verifyPassword(encodedHash, candidate string) error {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 5 {
		return fmt.Errorf("verify password: invalid hash format")
	}
	if parts[0] != "pbkdf2" || parts[1] != "sha256" {
		return fmt.Errorf("verify password: unsupported hash identifier")
	}
	iterations, err := strconv.Atoi(parts[2])
	if err != nil || iterations <= 0 {
		return fmt.Errorf("verify password: invalid iteration count")
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[3])
	if err != nil {
		return fmt.Errorf("verify password: decode salt: %w", err)
	}
	storedKey, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("verify password: decode hash: %w", err)
	}
	derived := pbkdf2.Key([]byte(candidate), salt, iterations, len(storedKey), sha256.New)
	if len(derived) != len(storedKey) || subtle.ConstantTimeCompare(derived, storedKey) != 1 {
		return ErrInvalidCredentials
	}
	return nil
}
