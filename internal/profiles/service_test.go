package profiles

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
)

func newService(t *testing.T) *Service {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv, err := repository.OpenSQLite(ctx, "", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, repository.Migrate(ctx, drv, log))
	return NewService(repository.NewProfileRepository(drv, log), log)
}

func TestCreateProfile(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	p, err := s.CreateProfile(ctx, CreateProfileRequest{Name: " Ada "})
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)

	again, err := s.CreateProfile(ctx, CreateProfileRequest{Name: "Ada"})
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID, "names are unique")

	tests := []struct {
		name string
		in   string
	}{
		{name: "blank", in: "   "},
		{name: "too long", in: strings.Repeat("x", 101)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateProfile(ctx, CreateProfileRequest{Name: tt.in})
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}

	list, err := s.ListProfiles(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestRequire(t *testing.T) {
	ctx := context.Background()
	s := newService(t)
	p, err := s.CreateProfile(ctx, CreateProfileRequest{Name: "Ada"})
	require.NoError(t, err)

	assert.NoError(t, s.Require(ctx, p.ID))
	assert.ErrorIs(t, s.Require(ctx, uuid.New()), common.ErrNotFound)
	assert.ErrorIs(t, s.Require(ctx, uuid.Nil), common.ErrInvalidInput)
}
