package relica

import (
	"context"
	"database/sql"

	"github.com/coregx/relica"

	"github.com/coregx/submanager"
	"github.com/coregx/submanager/model"
)

// UserRepository implements submanager.UserRepository using Relica ORM.
type UserRepository struct {
	db          *relica.DB
	tablePrefix string
}

var _ submanager.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates a new UserRepository with default table prefix.
func NewUserRepository(sqlDB *sql.DB, driverName string) *UserRepository {
	return &UserRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: DefaultTablePrefix}
}

// NewUserRepositoryWithPrefix creates a new UserRepository with custom table prefix.
func NewUserRepositoryWithPrefix(sqlDB *sql.DB, driverName, prefix string) *UserRepository {
	return &UserRepository{db: relica.WrapDB(sqlDB, driverName), tablePrefix: prefix}
}

func (r *UserRepository) tableName() string {
	return r.tablePrefix + "user"
}

// Load retrieves a user by ID.
func (r *UserRepository) Load(ctx context.Context, id int64) (model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("id = ?", id).One(&row)
	if err != nil {
		return model.User{}, notFoundOr(err, "failed to load user")
	}
	return row.model(), nil
}

// List retrieves all users in creation order.
func (r *UserRepository) List(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).OrderBy("id ASC").All(&rows)
	if err != nil {
		return nil, classify(err, "failed to list users")
	}

	users := make([]model.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.model())
	}
	return users, nil
}

// FindByUsername retrieves a user by its unique username.
func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Select("*").From(r.tableName()).Where("username = ?", username).One(&row)
	if err != nil {
		return model.User{}, notFoundOr(err, "failed to find user by username")
	}
	return row.model(), nil
}

// Create inserts a user and populates its ID.
func (r *UserRepository) Create(ctx context.Context, m *model.User) error {
	row := newUserRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Insert(); err != nil {
		return classify(err, "failed to insert user")
	}
	m.ID = row.ID
	return nil
}

// Update persists changes to a user.
func (r *UserRepository) Update(ctx context.Context, m *model.User) error {
	row := newUserRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Update(); err != nil {
		return classify(err, "failed to update user")
	}
	return nil
}

// Delete permanently removes a user.
func (r *UserRepository) Delete(ctx context.Context, m *model.User) error {
	row := newUserRow(*m)
	if err := r.db.WithContext(ctx).Model(&row).Table(r.tableName()).Delete(); err != nil {
		return classify(err, "failed to delete user")
	}
	return nil
}
