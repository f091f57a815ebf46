// Package profile - профиль и настройки пользователя
package profile

import (
	"context"
	"log/slog"
	"strings"

	"tradelock/internal/errs"
	"tradelock/internal/gate"
	"tradelock/internal/models"
	"tradelock/internal/notify"
	"tradelock/internal/storage"
	"tradelock/internal/syncer"
	"tradelock/pkg/validator"
)

// Gate - шлюз режима и сессии
type Gate interface {
	gate.Switch
	CurrentUser(ctx context.Context) (models.User, error)
}

// Backend - часть API бэкенда для профиля
type Backend interface {
	GetUser(ctx context.Context) (models.User, error)
	UpdateUser(ctx context.Context, upd models.ProfileUpdate) (models.User, error)
	UpdateSettings(ctx context.Context, s models.Settings) (models.User, error)
}

type Repository struct {
	gate     Gate
	backend  Backend
	records  *storage.Records
	notifier notify.Notifier
	logger   *slog.Logger
}

func New(g Gate, backend Backend, records *storage.Records, notifier notify.Notifier, logger *slog.Logger) *Repository {
	if notifier == nil {
		notifier = notify.Nop{}
	}

	return &Repository{
		gate:     g,
		backend:  backend,
		records:  records,
		notifier: notifier,
		logger:   logger,
	}
}

// Get возвращает профиль текущего пользователя
func (r *Repository) Get(ctx context.Context) (models.User, error) {
	if _, err := r.gate.CurrentUser(ctx); err != nil {
		return models.User{}, err
	}

	return gate.Do(ctx, r.gate, r.logger, "user.get",
		func(ctx context.Context) (models.User, error) {
			return r.mirror(ctx)(r.backend.GetUser(ctx))
		},
		r.gate.CurrentUser,
	)
}

// UpdateProfile изменяет имя и username
func (r *Repository) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (models.User, error) {
	upd.FirstName = strings.TrimSpace(upd.FirstName)
	upd.LastName = strings.TrimSpace(upd.LastName)
	upd.Username = strings.TrimPrefix(strings.TrimSpace(upd.Username), "@")

	if err := validator.Struct(upd); err != nil {
		return models.User{}, errs.Validation(validator.GetErrorMsg(err))
	}

	u, err := gate.Do(ctx, r.gate, r.logger, "user.update",
		func(ctx context.Context) (models.User, error) {
			return r.mirror(ctx)(r.backend.UpdateUser(ctx, upd))
		},
		func(ctx context.Context) (models.User, error) {
			return r.updateLocal(ctx, func(u *models.User) {
				u.FirstName = upd.FirstName
				u.LastName = upd.LastName
				u.Username = upd.Username
			})
		},
	)
	if err != nil {
		return models.User{}, err
	}

	r.notifier.Success(ctx, "Profile updated")

	return u, nil
}

// UpdateSettings сохраняет настройки и дублирует их в tradelock_settings
func (r *Repository) UpdateSettings(ctx context.Context, s models.Settings) (models.User, error) {
	if s.Theme == "" {
		s.Theme = models.ThemeAuto
	}

	if err := validator.Struct(s); err != nil {
		return models.User{}, errs.Validation(validator.GetErrorMsg(err))
	}

	u, err := gate.Do(ctx, r.gate, r.logger, "user.settings",
		func(ctx context.Context) (models.User, error) {
			return r.mirror(ctx)(r.backend.UpdateSettings(ctx, s))
		},
		func(ctx context.Context) (models.User, error) {
			return r.updateLocal(ctx, func(u *models.User) { u.Settings = s })
		},
	)
	if err != nil {
		return models.User{}, err
	}

	r.records.SaveSettings(ctx, s)
	r.notifier.Success(ctx, "Settings saved")

	return u, nil
}

// Settings возвращает сохраненные настройки
func (r *Repository) Settings(ctx context.Context) models.Settings {
	return r.records.Settings(ctx)
}

func (r *Repository) updateLocal(ctx context.Context, fn func(u *models.User)) (models.User, error) {
	var out models.User

	err := r.records.Mutate(ctx, func(st *storage.State) error {
		if st.User == nil {
			return errs.Authorization("not authenticated")
		}

		fn(st.User)
		syncer.MarkUser(st.User)
		st.TouchUser()

		out = *st.User

		return nil
	})

	return out, err
}

// mirror кэширует пользователя бэкенда, если локальных несинхронизированных изменений нет
func (r *Repository) mirror(ctx context.Context) func(models.User, error) (models.User, error) {
	return func(u models.User, err error) (models.User, error) {
		if err != nil {
			return models.User{}, err
		}

		r.records.MirrorUser(ctx, u)

		return u, nil
	}
}
