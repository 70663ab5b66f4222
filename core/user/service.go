package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/elimu-cd/elimu/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		QueryTeachers(ctx context.Context) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, usr User, t time.Time) (User, error)

		// refresh token blacklist
		BlacklistToken(ctx context.Context, jti, userID string, expiresAt time.Time) error
		IsTokenBlacklisted(ctx context.Context, jti string) (bool, error)
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		logger  core.Logger
	}
)

func NewService(repo Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, logger: logger}
}

// CheckUniqueness maps repository uniqueness errors to field errors.
func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUniqueness(context.Background(), uname, email, exclUsers...); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a new active User and sends them a welcome email.
func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Email:       nu.Email,
		Username:    nu.Username,
		FirstName:   nu.FirstName,
		LastName:    nu.LastName,
		PhoneNumber: nu.PhoneNumber,
		Role:        nu.Role,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Welcome to " + core.Conf.AppName,
		TemplateName: "welcome",
		TemplateData: struct{ Name string }{usr.FirstName},
	})
	return usr, nil
}

// Authenticate verifies the credentials and stamps last_login.
// Unknown email and wrong password both surface as the same validation error
// so callers cannot probe for existing accounts.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, core.NewValidationError(errors.New("invalid credentials"))
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, core.NewValidationError(errors.New("invalid credentials"))
	}
	if !usr.IsActive {
		return User{}, core.NewPermissionError(errors.New("account deactivated"))
	}

	usr, err = svc.repo.SetLastLogin(ctx, usr, time.Now().UTC())
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

// Teachers returns all active teachers.
func (svc *Service) Teachers(ctx context.Context) ([]User, error) {
	return svc.repo.QueryTeachers(ctx)
}

// UpdateProfile applies a profile update to the given User.
func (svc *Service) UpdateProfile(ctx context.Context, id string, up UpdateProfile) (User, error) {
	usr := User{
		ID:          id,
		FirstName:   up.FirstName,
		LastName:    up.LastName,
		PhoneNumber: up.PhoneNumber,
		Bio:         up.Bio,
		UpdatedAt:   time.Now().UTC(),
	}
	return svc.repo.UpdateUser(ctx, usr)
}

// ChangePassword replaces the stored credential. The caller is responsible for
// issuing a fresh token pair; tokens minted against the old credential become
// invalid through session hash rotation.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) (User, error) {
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Logout blacklists the presented refresh token. It is deliberately best-effort:
// all failures are swallowed (and logged) so logout always succeeds for the caller.
func (svc *Service) Logout(ctx context.Context, jti, userID string, expiresAt time.Time) {
	if jti == "" {
		return
	}
	if err := svc.repo.BlacklistToken(ctx, jti, userID, expiresAt); err != nil {
		svc.logger.Warn("blacklisting refresh token", err)
	}
}

// IsTokenBlacklisted reports whether the refresh token was invalidated by a logout.
func (svc *Service) IsTokenBlacklisted(ctx context.Context, jti string) (bool, error) {
	return svc.repo.IsTokenBlacklisted(ctx, jti)
}
