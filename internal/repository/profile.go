package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
)

type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error)
	CreateProfile(ctx context.Context, name string) (*entity.Profile, error)
	GetOrCreateByName(ctx context.Context, name string) (*entity.Profile, bool, error)
	ListProfiles(ctx context.Context) ([]*entity.Profile, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

type profileRepository struct {
	store
	logger *slog.Logger
}

func NewProfileRepository(drv *entsql.Driver, logger *slog.Logger) ProfileRepository {
	return &profileRepository{
		store:  store{drv: drv},
		logger: logger,
	}
}

var profileColumns = []string{"id", "name", "created_at", "updated_at"}

func scanProfile(row interface{ Scan(...any) error }) (*entity.Profile, error) {
	var p entity.Profile
	if err := row.Scan(&p.ID, &p.Name, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

func (r *profileRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Profile, error) {
	query, args := r.builder().Select(profileColumns...).
		From(entsql.Table(ProfilesTable.Name)).
		Where(entsql.EQ("id", id)).
		Query()
	p, err := scanProfile(r.db().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "profile "+id.String())
	}
	return p, nil
}

func (r *profileRepository) getByName(ctx context.Context, name string) (*entity.Profile, error) {
	query, args := r.builder().Select(profileColumns...).
		From(entsql.Table(ProfilesTable.Name)).
		Where(entsql.EQ("name", name)).
		Query()
	p, err := scanProfile(r.db().QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, notFound(err, "profile "+name)
	}
	return p, nil
}

func (r *profileRepository) CreateProfile(ctx context.Context, name string) (*entity.Profile, error) {
	now := time.Now().UTC()
	p := &entity.Profile{ID: uuid.New(), Name: strings.TrimSpace(name), CreatedAt: now, UpdatedAt: now}
	query, args := r.builder().Insert(ProfilesTable.Name).
		Columns(profileColumns...).
		Values(p.ID, p.Name, p.CreatedAt, p.UpdatedAt).
		Query()
	if _, err := r.db().ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("failed to create profile", "name", p.Name, "error", err)
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

// GetOrCreateByName returns the named profile, creating it when missing. The
// flag reports whether it already existed.
func (r *profileRepository) GetOrCreateByName(ctx context.Context, name string) (*entity.Profile, bool, error) {
	name = strings.TrimSpace(name)
	if p, err := r.getByName(ctx, name); err == nil {
		return p, true, nil
	} else if !isNotFound(err) {
		r.logger.Error("failed to look up profile", "name", name, "error", err)
		return nil, false, err
	}
	p, err := r.CreateProfile(ctx, name)
	if err != nil {
		return nil, false, err
	}
	return p, false, nil
}

func (r *profileRepository) ListProfiles(ctx context.Context) ([]*entity.Profile, error) {
	query, args := r.builder().Select(profileColumns...).
		From(entsql.Table(ProfilesTable.Name)).
		OrderBy("created_at").
		Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to list profiles", "error", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *profileRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	query, args := r.builder().Select("id").
		From(entsql.Table(ProfilesTable.Name)).
		Where(entsql.EQ("id", id)).
		Limit(1).
		Query()
	rows, err := r.db().QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to check profile existence", "profile_id", id, "error", err)
		return false, err
	}
	defer rows.Close()
	return rows.Next(), rows.Err()
}

func isNotFound(err error) bool {
	return err != nil && errors.Is(err, common.ErrNotFound)
}
