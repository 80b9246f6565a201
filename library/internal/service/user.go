package service

import (
	"context"
	"strings"

	"github.com/booktrack/library-service/library/internal/errs"
	"github.com/booktrack/library-service/library/internal/model"
	"github.com/booktrack/library-service/library/internal/repository"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	tx       repository.Transactor
	log      *zap.Logger
	observer Observer
	cost     int
}

func NewUserService(tx repository.Transactor, log *zap.Logger) *UserService {
	return &UserService{
		tx:       tx,
		log:      log.Named("user"),
		observer: NopObserver{},
		cost:     bcrypt.DefaultCost,
	}
}

func (s *UserService) GetUser(ctx context.Context, id int64) (model.User, error) {
	var user model.User
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().Get(ctx, id)
		return err
	})
	return user, err
}

// Register stores a new user with a bcrypt password hash. Emails are unique, case-insensitively.
func (s *UserService) Register(ctx context.Context, req model.RegisterUserRequest) (model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return model.User{}, errors.Wrap(err, "bcrypt")
	}

	var created model.User
	err = s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		_, err := tx.Users().FindByEmail(ctx, email)
		switch {
		case err == nil:
			return errors.Wrapf(errs.ErrConflict, "user with email %s already exists", email)
		case !errors.Is(err, errs.ErrNotFound):
			return err
		}
		created, err = tx.Users().Create(ctx, model.User{
			Email:        email,
			PasswordHash: string(hash),
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Role:         req.Role,
		})
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user registered", zap.Int64("userId", created.ID), zap.String("role", string(created.Role)))
	if err := s.observer.UserRegistered(ctx, created); err != nil {
		s.log.Warn("observer UserRegistered", zap.Int64("userId", created.ID), zap.Error(err))
	}
	return created, nil
}

func (s *UserService) ListUsers(ctx context.Context, page model.PageRequest) (model.Page[model.User], error) {
	var out model.Page[model.User]
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Users().FindAll(ctx, page)
		return err
	})
	return out, err
}

// UpdateUser changes the name fields that are set in req.
func (s *UserService) UpdateUser(ctx context.Context, id int64, req model.UpdateUserRequest) (model.User, error) {
	var updated model.User
	err := s.tx.WithinTx(ctx, func(tx repository.Tx) error {
		user, err := tx.Users().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		req.Apply(&user)
		updated, err = tx.Users().UpdateName(ctx, user)
		return err
	})
	if err != nil {
		return model.User{}, err
	}
	s.log.Info("user updated", zap.Int64("userId", updated.ID))
	return updated, nil
}

// Authenticate checks the password against the stored hash.
// Unknown email and wrong password both return errs.ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user model.User
	err := s.tx.ReadOnly(ctx, func(tx repository.Tx) error {
		var err error
		user, err = tx.Users().FindByEmail(ctx, email)
		return err
	})
	switch {
	case errors.Is(err, errs.ErrNotFound):
		return model.User{}, errs.ErrInvalidCredentials
	case err != nil:
		return model.User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return model.User{}, errs.ErrInvalidCredentials
		}
		return model.User{}, errors.Wrap(err, "bcrypt")
	}
	return user, nil
}
