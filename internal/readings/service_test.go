package readings

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/constants"
	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/entity"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/storage"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

type harness struct {
	svc     *Service
	images  repository.SourceImageRepository
	store   *storage.LocalStore
	profile uuid.UUID
	other   uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	drv, err := repository.OpenSQLite(ctx, "", log)
	require.NoError(t, err)
	t.Cleanup(func() { _ = drv.Close() })
	require.NoError(t, repository.Migrate(ctx, drv, log))

	profiles := repository.NewProfileRepository(drv, log)
	p, err := profiles.CreateProfile(ctx, "Ada")
	require.NoError(t, err)
	o, err := profiles.CreateProfile(ctx, "Grace")
	require.NoError(t, err)
	store, err := storage.NewLocalStore(t.TempDir(), log)
	require.NoError(t, err)

	images := repository.NewSourceImageRepository(drv, log)
	return &harness{
		svc:     NewService(repository.NewReadingRepository(drv, log), images, store, log),
		images:  images,
		store:   store,
		profile: p.ID,
		other:   o.ID,
	}
}

var day = time.Date(2025, 2, 10, 8, 0, 0, 0, time.UTC)

func TestCreateManualReading(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	r, err := h.svc.Create(ctx, CreateRequest{
		ProfileID:  h.profile,
		MeasuredAt: day,
		Values:     vitals.Measurements{HeightCm: vitals.F(164.63), WeightKg: vitals.F(63.21)},
	})
	require.NoError(t, err)
	assert.Equal(t, 164.6, *r.HeightCm)
	assert.Equal(t, 23.33, *r.BMI, "manual entry derives bmi too")
	assert.Empty(t, r.SourceImages)
	assert.Nil(t, r.ExtractionJobID)

	tests := []struct {
		name  string
		req   CreateRequest
		check func(t *testing.T, err error)
	}{
		{
			name: "no values",
			req:  CreateRequest{ProfileID: h.profile, MeasuredAt: day},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
			},
		},
		{
			name: "missing timestamp",
			req:  CreateRequest{ProfileID: h.profile, Values: vitals.Measurements{Pulse: vitals.F(60)}},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, common.ErrInvalidInput)
			},
		},
		{
			name: "out of range",
			req:  CreateRequest{ProfileID: h.profile, MeasuredAt: day, Values: vitals.Measurements{HeightCm: vitals.F(50), WeightKg: vitals.F(63)}},
			check: func(t *testing.T, err error) {
				var rv *common.RangeValidationError
				require.ErrorAs(t, err, &rv)
				assert.Equal(t, "heightCm", rv.Violations[0].Field)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.Create(ctx, tt.req)
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestListGetDelete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		_, err := h.svc.Create(ctx, CreateRequest{ProfileID: h.profile, MeasuredAt: day.AddDate(0, 0, i), Values: vitals.Measurements{Pulse: vitals.F(float64(70 + i))}})
		require.NoError(t, err)
	}

	list, err := h.svc.List(ctx, h.profile, ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, 72.0, *list[0].Pulse)

	_, err = h.svc.Create(ctx, CreateRequest{ProfileID: h.profile, MeasuredAt: day.Add(time.Hour), Values: vitals.Measurements{Systolic: vitals.F(150), Diastolic: vitals.F(95)}})
	require.NoError(t, err)
	high, err := h.svc.List(ctx, h.profile, ListFilter{BPCategory: constants.BPStage2, Limit: 1})
	require.NoError(t, err)
	require.Len(t, high, 1)
	assert.Equal(t, 150.0, *high[0].Systolic)

	_, err = h.svc.List(ctx, h.profile, ListFilter{Start: timeRef(day.AddDate(0, 0, 2)), End: timeRef(day)})
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = h.svc.Get(ctx, h.other, list[0].ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, h.svc.Delete(ctx, h.other, list[0].ID), common.ErrNotFound)

	require.NoError(t, h.svc.Delete(ctx, h.profile, list[0].ID))
	list, err = h.svc.List(ctx, h.profile, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestSummary(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	empty, err := h.svc.Summary(ctx, h.profile)
	require.NoError(t, err)
	assert.Nil(t, empty.Latest)
	assert.Equal(t, constants.BPUnknown, empty.BPCategory)

	_, err = h.svc.Create(ctx, CreateRequest{ProfileID: h.profile, MeasuredAt: day, Values: vitals.Measurements{
		HeightCm: vitals.F(170), WeightKg: vitals.F(80), Systolic: vitals.F(118), Diastolic: vitals.F(76),
	}})
	require.NoError(t, err)
	_, err = h.svc.Create(ctx, CreateRequest{ProfileID: h.profile, MeasuredAt: day.Add(24 * time.Hour), Values: vitals.Measurements{
		HeightCm: vitals.F(170), WeightKg: vitals.F(78.5), Systolic: vitals.F(135), Diastolic: vitals.F(85),
	}})
	require.NoError(t, err)

	s, err := h.svc.Summary(ctx, h.profile)
	require.NoError(t, err)
	require.NotNil(t, s.Latest)
	require.NotNil(t, s.Previous)
	assert.Equal(t, -1.5, *s.Deltas[vitals.WeightKg])
	assert.Equal(t, 17.0, *s.Deltas[vitals.Systolic])
	assert.Equal(t, 0.0, *s.Deltas[vitals.HeightCm], "zero change is reported, not dropped")
	assert.NotContains(t, s.Deltas, vitals.Pulse)
	assert.Equal(t, constants.BMIOverweight, s.BMICategory)
	assert.Equal(t, constants.BPStage1, s.BPCategory)
}

func TestSourceImage(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	ref, err := h.store.Put(ctx, []byte("jpeg bytes"), "kiosk.jpg")
	require.NoError(t, err)
	img := entity.SourceImage{ProfileID: h.profile, StorageRef: ref, OriginalName: "kiosk.jpg", MediaType: "image/jpeg", SizeBytes: 10}
	require.NoError(t, h.images.Create(ctx, &img))

	got, data, err := h.svc.SourceImage(ctx, h.profile, img.ID)
	require.NoError(t, err)
	assert.Equal(t, "kiosk.jpg", got.OriginalName)
	assert.Equal(t, []byte("jpeg bytes"), data)

	_, _, err = h.svc.SourceImage(ctx, h.other, img.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func timeRef(t time.Time) *time.Time { return &t }
