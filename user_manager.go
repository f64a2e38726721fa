package submanager

import (
	"context"
	"fmt"

	"github.com/coregx/submanager/auth"
	"github.com/coregx/submanager/model"
)

// UserManager manages the accounts that own topics and subscriptions.
// Every operation requires an admin caller.
//
// Thread safety: Safe for concurrent use.
type UserManager struct {
	userRepo   UserRepository
	logger     Logger
	iterations int
}

// UserManagerOption is a function that configures a UserManager.
type UserManagerOption func(*UserManager) error

// NewUserManager creates a new UserManager with the provided options.
//
// Required options:
//   - WithUserRepository: user repository
//
// Optional options:
//   - WithUserManagerLogger: logger instance (default: NoopLogger)
//   - WithPasswordIterations: PBKDF2 cost (default: auth.DefaultIterations)
func NewUserManager(opts ...UserManagerOption) (*UserManager, error) {
	um := &UserManager{
		logger:     &NoopLogger{},
		iterations: auth.DefaultIterations,
	}

	for _, opt := range opts {
		if err := opt(um); err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to apply user manager option", err)
		}
	}

	if um.userRepo == nil {
		return nil, NewError(ErrCodeConfiguration, "UserRepository is required (use WithUserRepository)")
	}

	return um, nil
}

// WithUserRepository sets the user repository.
func WithUserRepository(repo UserRepository) UserManagerOption {
	return func(um *UserManager) error {
		if repo == nil {
			return fmt.Errorf("userRepo cannot be nil")
		}
		um.userRepo = repo
		return nil
	}
}

// WithUserManagerLogger sets the logger instance.
func WithUserManagerLogger(logger Logger) UserManagerOption {
	return func(um *UserManager) error {
		if logger == nil {
			return fmt.Errorf("logger cannot be nil")
		}
		um.logger = logger
		return nil
	}
}

// WithPasswordIterations sets the PBKDF2 cost for new password hashes.
func WithPasswordIterations(iterations int) UserManagerOption {
	return func(um *UserManager) error {
		if iterations <= 0 {
			return fmt.Errorf("iterations must be > 0, got %d", iterations)
		}
		um.iterations = iterations
		return nil
	}
}

// ListUsers returns every user in creation order.
func (um *UserManager) ListUsers(ctx context.Context, caller Caller) ([]model.User, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}

	users, err := um.userRepo.List(ctx)
	if err != nil {
		return nil, storageError(err, "failed to list users")
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// GetUser retrieves a user by ID.
func (um *UserManager) GetUser(ctx context.Context, caller Caller, id int64) (*model.User, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}

	user, err := um.userRepo.Load(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to load user")
	}
	return &user, nil
}

// CreateUser stores a new user with a hashed password.
// Returns a DUPLICATE error if the username is taken.
func (um *UserManager) CreateUser(ctx context.Context, caller Caller, req UserRequest) (*model.User, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPasswordWithIterations(req.Password, um.iterations)
	if err != nil {
		return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to hash password", err)
	}

	user := model.NewUser(req.Username, hash)
	user.IsAdmin = req.IsAdmin
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := um.userRepo.Create(ctx, &user); err != nil {
		return nil, storageError(err, "failed to create user")
	}

	um.logger.Infof("User created: id=%d, username=%s, admin=%t", user.ID, user.Username, user.IsAdmin)
	return &user, nil
}

// UpdateUser applies a partial update. The password is re-hashed only when
// the proposed plaintext does not match the stored hash.
func (um *UserManager) UpdateUser(ctx context.Context, caller Caller, id int64, upd UserUpdate) (*model.User, error) {
	if err := RequireAdmin(caller); err != nil {
		return nil, err
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	previous, err := um.userRepo.Load(ctx, id)
	if err != nil {
		return nil, storageError(err, "failed to load user")
	}

	proposed := previous
	if upd.Username != nil {
		proposed.Username = *upd.Username
	}
	if upd.Active != nil {
		proposed.Active = *upd.Active
	}
	if upd.IsAdmin != nil {
		proposed.IsAdmin = *upd.IsAdmin
	}
	if upd.Password != nil && !auth.CheckPassword(previous.Password, *upd.Password) {
		hash, err := auth.HashPasswordWithIterations(*upd.Password, um.iterations)
		if err != nil {
			return nil, NewErrorWithCause(ErrCodeConfiguration, "failed to hash password", err)
		}
		proposed.Password = hash
	}

	if err := um.userRepo.Update(ctx, &proposed); err != nil {
		return nil, storageError(err, "failed to update user")
	}

	um.logger.Infof("User updated: id=%d, username=%s", proposed.ID, proposed.Username)
	return &proposed, nil
}

// DeleteUser removes a user. Topics and subscriptions it owns are kept.
func (um *UserManager) DeleteUser(ctx context.Context, caller Caller, id int64) error {
	if err := RequireAdmin(caller); err != nil {
		return err
	}

	user, err := um.userRepo.Load(ctx, id)
	if err != nil {
		return storageError(err, "failed to load user")
	}

	if err := um.userRepo.Delete(ctx, &user); err != nil {
		return storageError(err, "failed to delete user")
	}

	um.logger.Infof("User deleted: id=%d, username=%s", user.ID, user.Username)
	return nil
}

// Authenticator resolves basic-auth credentials into a Caller.
type Authenticator struct {
	userRepo UserRepository
	logger   Logger
}

// NewAuthenticator creates an Authenticator backed by repo.
// A nil logger falls back to NoopLogger.
func NewAuthenticator(repo UserRepository, logger Logger) (*Authenticator, error) {
	if repo == nil {
		return nil, NewError(ErrCodeConfiguration, "UserRepository is required")
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &Authenticator{userRepo: repo, logger: logger}, nil
}

// Authenticate checks username and password. Unknown users, wrong passwords
// and inactive users all yield ErrInvalidCredentials.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (Caller, error) {
	user, err := a.userRepo.FindByUsername(ctx, username)
	if err != nil {
		if IsNotFound(err) {
			return Caller{}, ErrInvalidCredentials
		}
		return Caller{}, storageError(err, "failed to load user")
	}

	if !user.Active || !auth.CheckPassword(user.Password, password) {
		a.logger.Debugf("Authentication rejected: username=%s", username)
		return Caller{}, ErrInvalidCredentials
	}

	return Caller{UserID: user.ID, Username: user.Username, IsAdmin: user.IsAdmin}, nil
}
