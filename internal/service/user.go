// Package service contains the business logic layer.
//
// Services orchestrate interactions between the repository, the payment
// gateways, and the entitlement rules in the domain package. They are
// responsible for:
// - Input validation
// - Business rule enforcement
// - Transaction coordination
// - Error translation (database errors -> domain errors)
package service

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

// =============================================================================
// Configuration Constants
// =============================================================================

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	//
	// SECURITY NOTE: This should NOT be configurable at runtime. If you need
	// to change it, do so here and redeploy.
	BcryptCost = 12

	// MinPasswordLength is the minimum password length.
	MinPasswordLength = 8

	// MaxPasswordLength is the bcrypt input limit.
	MaxPasswordLength = 72
)

// dummyHash is compared against when the email is unknown so that a login
// for a missing account costs the same as a wrong password.
const dummyHash = "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"

// commonPasswords are rejected even when they satisfy the other rules.
// Compared case-insensitively.
var commonPasswords = newPasswordSet(
	"password1", "password12", "password123", "passw0rd",
	"qwerty123", "qwerty12", "letmein1", "welcome1", "welcome123",
	"admin123", "abc12345", "iloveyou1", "12345678a",
	"senha123", "senha1234", "mudar123", "123mudar", "brasil123", "brasil2026",
	"flamengo1", "corinthians1", "palmeiras1", "mundo123",
)

func newPasswordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

// =============================================================================
// Interface Definition
// =============================================================================

// UserService defines account operations.
type UserService interface {
	// Register creates a new account on the free plan.
	// Returns domain.ECONFLICT if email already exists.
	// Returns domain.EINVALID for validation errors.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and opens a session for the device.
	// Returns domain.EUNAUTHORIZED for invalid credentials and
	// domain.EFORBIDDEN when the plan's device limit is reached.
	Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error)

	// Logout invalidates a session by its raw token. Idempotent.
	Logout(ctx context.Context, token string) error

	// GetByID retrieves a user by their ID.
	// Returns domain.ENOTFOUND if user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetBySessionToken validates a session token and returns its user.
	// Returns domain.EUNAUTHORIZED if token is invalid or expired.
	GetBySessionToken(ctx context.Context, token string) (*domain.User, error)

	// LogoutAll closes every device session of a user, freeing all of the
	// plan's device slots.
	LogoutAll(ctx context.Context, userID uuid.UUID) error
}

// =============================================================================
// Implementation
// =============================================================================

type userService struct {
	store    repository.Store
	sessions SessionService
	logger   *slog.Logger
}

// NewUserService creates a new UserService instance.
func NewUserService(store repository.Store, sessions SessionService, logger *slog.Logger) UserService {
	return &userService{
		store:    store,
		sessions: sessions,
		logger:   logger,
	}
}

// Register creates a new account.
//
// The password is hashed even when the email is taken, so the response time
// does not reveal which emails are registered.
func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "user.register"

	params.Email = strings.ToLower(strings.TrimSpace(params.Email))
	params.Name = strings.TrimSpace(params.Name)

	if err := validateEmail(params.Email); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}
	if params.Name == "" {
		return nil, domain.Invalid(op, "Informe o nome")
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, domain.Wrap(err, domain.EINVALID, op, domain.ErrorMessage(err))
	}

	_, err := s.store.GetUserByEmail(ctx, params.Email)
	if err == nil {
		_, _ = bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
		return nil, domain.Conflict(op, "Este e-mail já está cadastrado")
	}
	if !isNoRows(err) {
		return nil, domain.Internal(err, op, "Failed to check email availability")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.store.CreateUser(ctx, repository.CreateUserParams{
		Email:        params.Email,
		PasswordHash: string(passwordHash),
		Name:         params.Name,
		Role:         string(domain.RoleUser),
		Plan:         string(domain.PlanFree),
	})
	if err != nil {
		// Concurrent registration of the same email.
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Este e-mail já está cadastrado")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login checks the credentials and opens a session through the device
// registry. A device-limit denial is returned as EFORBIDDEN carrying the
// localized denial message.
func (s *userService) Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error) {
	const op = "user.login"

	email := strings.ToLower(strings.TrimSpace(params.Email))

	repoUser, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if isNoRows(err) {
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(params.Password))
			return nil, domain.Unauthorized(op, "E-mail ou senha inválidos")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(params.Password)); err != nil {
		return nil, domain.Unauthorized(op, "E-mail ou senha inválidos")
	}

	grant, err := s.sessions.Open(ctx, repoUser.ID, params.Device)
	if err != nil {
		return nil, err
	}
	if !grant.Decision.Allowed {
		s.logger.Info("login denied by device limit",
			"user_id", repoUser.ID,
			"devices", grant.Decision.Used,
			"limit", grant.Decision.Limit,
		)
		return nil, domain.Forbidden(op, grant.Decision.Message)
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID, "email", user.Email)
	return &domain.LoginResult{
		User:  user,
		Token: grant.Token,
	}, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Close(ctx, token); err != nil {
		return err
	}
	s.logger.Debug("session invalidated")
	return nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get_by_id"

	repoUser, err := s.store.GetUserByID(ctx, id)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

// GetBySessionToken resolves the session (sliding its expiry) and loads the
// user behind it.
func (s *userService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.get_by_session_token"

	session, err := s.sessions.Resolve(ctx, token)
	if err != nil {
		return nil, err
	}

	repoUser, err := s.store.GetUserByID(ctx, session.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.Unauthorized(op, "Sessão inválida ou expirada")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if err := s.sessions.CloseAll(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("all sessions invalidated", "user_id", userID)
	return nil
}

// =============================================================================
// Validation helpers
// =============================================================================

// validateEmail checks basic address shape and the RFC 5321 length limit.
func validateEmail(email string) error {
	if email == "" {
		return domain.Invalid("", "Informe o e-mail")
	}
	if len(email) > 254 {
		return domain.Invalid("", "O e-mail deve ter no máximo 254 caracteres")
	}

	at := strings.IndexByte(email, '@')
	if at < 0 || strings.Count(email, "@") != 1 {
		return domain.Invalid("", "O e-mail deve conter exatamente um @")
	}
	if at == 0 {
		return domain.Invalid("", "O e-mail não pode começar com @")
	}
	if at == len(email)-1 {
		return domain.Invalid("", "O e-mail não pode terminar com @")
	}
	if !strings.Contains(email[at+1:], ".") {
		return domain.Invalid("", "O domínio do e-mail deve conter um ponto")
	}
	if strings.Contains(email, "..") {
		return domain.Invalid("", "O e-mail não pode conter pontos consecutivos")
	}

	return nil
}

// validatePassword enforces the password rules:
// - 8 to 72 characters
// - at least one letter and one number
// - not on the common password list
func validatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return domain.Invalid("", "A senha deve ter pelo menos 8 caracteres")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid("", "A senha deve ter no máximo 72 caracteres")
	}

	var hasLetter, hasNumber bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasNumber = true
		}
	}
	if !hasLetter {
		return domain.Invalid("", "A senha deve conter pelo menos uma letra")
	}
	if !hasNumber {
		return domain.Invalid("", "A senha deve conter pelo menos um número")
	}

	if _, ok := commonPasswords[strings.ToLower(password)]; ok {
		return domain.Invalid("", "Essa senha é muito comum, escolha outra")
	}

	return nil
}

var _ UserService = (*userService)(nil)
