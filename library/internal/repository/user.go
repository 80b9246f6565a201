package repository

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var userColumns = []string{"id", "email", "password_hash", "first_name", "last_name", "role", "created_at"}

var userSortColumns = map[string]string{
	"email":     "email",
	"firstName": "first_name",
	"lastName":  "last_name",
	"createdAt": "created_at",
	"id":        "id",
}

type userStore struct {
	q   Querier
	log *zap.Logger
}

func (s *userStore) get(ctx context.Context, b sq.SelectBuilder) (model.User, error) {
	query, args, err := b.Limit(1).ToSql()
	if err != nil {
		return model.User{}, err
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.User{}, err
	}
	defer rows.Close()

	return pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
}

func (s *userStore) Get(ctx context.Context, id int64) (model.User, error) {
	user, err := s.get(ctx, qb.Select(userColumns...).From(usersTableName).Where(sq.Eq{"id": id}))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, errs.NotFound("User", id)
	}
	return user, err
}

func (s *userStore) GetForUpdate(ctx context.Context, id int64) (model.User, error) {
	user, err := s.get(ctx, qb.Select(userColumns...).From(usersTableName).Where(sq.Eq{"id": id}).Suffix("for update"))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, errs.NotFound("User", id)
	}
	return user, err
}

func (s *userStore) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx, `select exists(select 1 from users where id = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (model.User, error) {
	user, err := s.get(ctx, qb.Select(userColumns...).From(usersTableName).Where(sq.Eq{"email": email}))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, errs.NotFound("User with email", email)
	}
	return user, err
}

func (s *userStore) Create(ctx context.Context, user model.User) (model.User, error) {
	q := `
insert into users (email, password_hash, first_name, last_name, role)
values (@email, @password_hash, @first_name, @last_name, @role)
returning ` + joinColumns(userColumns)
	args := pgx.NamedArgs{
		"email":         user.Email,
		"password_hash": user.PasswordHash,
		"first_name":    user.FirstName,
		"last_name":     user.LastName,
		"role":          user.Role,
	}
	rows, err := s.q.Query(ctx, q, args)
	if err != nil {
		return model.User{}, translate(err)
	}
	defer rows.Close()

	created, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return model.User{}, translate(err)
	}
	return created, nil
}

func (s *userStore) UpdateName(ctx context.Context, user model.User) (model.User, error) {
	query, args, err := qb.Update(usersTableName).
		Set("first_name", user.FirstName).
		Set("last_name", user.LastName).
		Where(sq.Eq{"id": user.ID}).
		Suffix("returning " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return model.User{}, err
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.User{}, translate(err)
	}
	defer rows.Close()

	updated, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[model.User])
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, errs.NotFound("User", user.ID)
	}
	return updated, err
}

func (s *userStore) FindAll(ctx context.Context, page model.PageRequest) (model.Page[model.User], error) {
	page = page.Normalize()
	total, err := count(ctx, s.q, qb.Select("count(*)").From(usersTableName))
	if err != nil {
		return model.Page[model.User]{}, err
	}

	query, args, err := qb.Select(userColumns...).
		From(usersTableName).
		OrderBy(orderBy(page, userSortColumns, "email")...).
		Limit(uint64(page.Size)).
		Offset(uint64(page.Offset())).
		ToSql()
	if err != nil {
		return model.Page[model.User]{}, err
	}
	s.log.Debug("FindAll users", zap.String("query", query), zap.Any("args", args))

	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return model.Page[model.User]{}, err
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[model.User])
	if err != nil {
		return model.Page[model.User]{}, errors.Wrap(err, "pgx.CollectRows")
	}
	return model.Page[model.User]{
		Paging: model.Paging{
			Page:          page.Page,
			PageSize:      page.Size,
			TotalElements: total,
		},
		Items: users,
	}, nil
}
