package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/greg5320/mappool/internal/auth"
	"github.com/greg5320/mappool/internal/domain"
	"github.com/greg5320/mappool/internal/guard"
	"github.com/greg5320/mappool/internal/repository"
	"github.com/greg5320/mappool/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// AccountService handles registration, login sessions and profiles.
type AccountService struct {
	db         repository.DB
	users      repository.UserRepository
	sessions   session.Store
	lockout    *guard.Lockout
	sessionTTL time.Duration
	allowStaff bool
	logger     *slog.Logger
}

// AccountConfig holds account settings.
type AccountConfig struct {
	SessionTTL             time.Duration
	AllowStaffRegistration bool
}

// NewAccountService creates an AccountService.
func NewAccountService(db repository.DB, repos repository.Set, sessions session.Store, lockout *guard.Lockout, cfg AccountConfig, logger *slog.Logger) *AccountService {
	return &AccountService{
		db:         db,
		users:      repos.Users,
		sessions:   sessions,
		lockout:    lockout,
		sessionTTL: cfg.SessionTTL,
		allowStaff: cfg.AllowStaffRegistration,
		logger:     logger,
	}
}

// RegisterInput holds the registration fields.
type RegisterInput struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
	IsStaff   bool
}

// Register creates a user. The staff flag is honored only when staff
// registration is enabled.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	if err := domain.ValidateUsername(in.Username); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(in.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateEmail(in.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	user := &domain.User{
		Username:     in.Username,
		PasswordHash: string(hash),
		Email:        in.Email,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		IsStaff:      in.IsStaff && s.allowStaff,
	}
	if err := s.users.Create(ctx, s.db, user); err != nil {
		return nil, appErr("create user", err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username, "is_staff", user.IsStaff)
	return user, nil
}

// LoginInput holds the login fields.
type LoginInput struct {
	Username  string
	Password  string
	IPAddress string
}

// LoginResult carries the new session token and the user.
type LoginResult struct {
	Token string
	User  *domain.User
}

// Login verifies credentials and opens a session.
func (s *AccountService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if in.Username == "" || in.Password == "" {
		return nil, domain.ErrValidation("username and password are required")
	}
	if err := s.lockout.CheckLocked(ctx, in.Username); err != nil {
		return nil, err
	}

	user, err := s.users.FindByUsername(ctx, s.db, in.Username)
	if err != nil {
		return nil, appErr("find user", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)) != nil {
		s.lockout.RecordAttempt(ctx, in.Username, in.IPAddress, false)
		return nil, domain.ErrAuthenticationRequired("invalid credentials")
	}
	s.lockout.RecordAttempt(ctx, in.Username, in.IPAddress, true)

	token := uuid.NewString()
	if err := s.sessions.Set(ctx, token, []byte(user.Username), s.sessionTTL); err != nil {
		return nil, domain.ErrDependency("session store unavailable", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

// Logout removes the session if one is given.
func (s *AccountService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return domain.ErrDependency("session store unavailable", err)
	}
	return nil
}

// ProfileInput holds optional profile fields; nil means unchanged.
type ProfileInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Password  *string
}

// UpdateProfile changes the caller's own profile.
func (s *AccountService) UpdateProfile(ctx context.Context, actor domain.Identity, in ProfileInput) (*domain.User, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	upd := domain.ProfileUpdate{Email: in.Email, FirstName: in.FirstName, LastName: in.LastName}
	if in.Email != nil {
		if err := domain.ValidateEmail(*in.Email); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
	}
	if in.Password != nil {
		if err := domain.ValidatePassword(*in.Password); err != nil {
			return nil, domain.ErrValidation(err.Error())
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, domain.ErrInternal("hash password", err)
		}
		h := string(hash)
		upd.PasswordHash = &h
	}

	user, err := s.users.UpdateProfile(ctx, s.db, actor.UserID, upd)
	if err != nil {
		return nil, appErr("update profile", err)
	}
	return user, nil
}

// Me returns the caller's user record.
func (s *AccountService) Me(ctx context.Context, actor domain.Identity) (*domain.User, error) {
	if err := auth.Check(actor, auth.RequireAuthenticated); err != nil {
		return nil, err
	}
	user, err := s.users.FindByUsername(ctx, s.db, actor.Username)
	if err != nil {
		return nil, appErr("find user", err)
	}
	if user == nil {
		return nil, domain.ErrAuthenticationRequired("user no longer exists")
	}
	return user, nil
}
