package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"powershare/internal/apperror"
	"powershare/internal/auth"
	"powershare/internal/db"
	"powershare/internal/models"
	"powershare/internal/store"
	"powershare/internal/validator"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Check(hash, plaintext string) bool
}

type TokenIssuer interface {
	Generate(email string) (string, error)
}

// AccountService registers users, issues bearer tokens and resolves token
// subjects back to user ids.
type AccountService struct {
	txRunner   db.TxRunner
	userStore  UserStore
	auditStore AuditStore
	hasher     PasswordHasher
	tokens     TokenIssuer
}

func NewAccountService(txRunner db.TxRunner, userStore UserStore, auditStore AuditStore, hasher PasswordHasher, tokens TokenIssuer) *AccountService {
	return &AccountService{
		txRunner:   txRunner,
		userStore:  userStore,
		auditStore: auditStore,
		hasher:     hasher,
		tokens:     tokens,
	}
}

type RegisterRequest struct {
	Name     string
	Email    string
	Mobile   string
	Password string
}

func (s *AccountService) Register(ctx context.Context, req RegisterRequest) (string, error) {
	name := strings.TrimSpace(req.Name)
	email := validator.NormalizeEmail(req.Email)
	mobile := strings.TrimSpace(req.Mobile)
	if err := validator.ValidateName(name); err != nil {
		return "", apperror.InvalidArgument("name", err.Error())
	}
	if err := validator.ValidateEmail(email); err != nil {
		return "", apperror.InvalidArgument("email", err.Error())
	}
	if err := validator.ValidateMobile(mobile); err != nil {
		return "", apperror.InvalidArgument("mobile", err.Error())
	}
	if err := validator.ValidatePassword(req.Password); err != nil {
		return "", apperror.InvalidArgument("password", err.Error())
	}
	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return "", apperror.InvalidArgument("password", err.Error())
		}
		return "", err
	}

	userID := uuid.NewString()
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.userStore.Create(ctx, tx, store.UserInput{
			ID:           userID,
			Name:         name,
			Email:        email,
			Mobile:       mobile,
			PasswordHash: passwordHash,
		}); err != nil {
			if db.IsUniqueViolation(err) {
				return apperror.Conflict("email already registered")
			}
			return err
		}
		return s.auditStore.Log(ctx, tx, userID, "register", "user", userID, nil)
	})
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "user registered", "user_id", userID)
	return userID, nil
}

// Login returns a bearer token for valid credentials. Unknown emails and
// wrong passwords fail the same way.
func (s *AccountService) Login(ctx context.Context, email, password string) (string, error) {
	user, err := s.userStore.GetByEmail(ctx, validator.NormalizeEmail(email))
	if err != nil {
		if isNoRows(err) {
			return "", apperror.Unauthorized("invalid credentials")
		}
		return "", err
	}
	if !s.hasher.Check(user.PasswordHash, password) {
		return "", apperror.Unauthorized("invalid credentials")
	}
	return s.tokens.Generate(user.Email)
}

func (s *AccountService) Me(ctx context.Context, userID string) (models.User, error) {
	user, err := s.userStore.GetByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return models.User{}, apperror.NotFound("user")
		}
		return models.User{}, err
	}
	return user, nil
}

// ResolveEmail maps a token subject to a user id.
func (s *AccountService) ResolveEmail(ctx context.Context, email string) (string, error) {
	user, err := s.userStore.GetByEmail(ctx, validator.NormalizeEmail(email))
	if err != nil {
		if isNoRows(err) {
			return "", apperror.Unauthorized("user not found")
		}
		return "", err
	}
	return user.ID, nil
}
