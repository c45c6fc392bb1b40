package app

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm/llmtest"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/vitals"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func testConfig(t *testing.T) *common.Config {
	cfg := common.DefaultConfig()
	cfg.Database.Driver = "sqlite"
	cfg.Storage.UploadDir = t.TempDir()
	return cfg
}

func TestBuildWithRedisDrafts(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.Review.RedisAddr = mr.Addr()
	cfg.Review.DraftTTL = time.Hour

	ctx := context.Background()
	a, err := Build(ctx, cfg, quiet(), Options{Recognizer: llmtest.New(`{"systolic": 121, "diastolic": 79, "pulse": 64}`)})
	require.NoError(t, err)
	defer a.Close()

	p, err := a.Profiles.CreateProfile(ctx, profiles.CreateProfileRequest{Name: "kiosk"})
	require.NoError(t, err)

	img := image.NewGray(image.Rect(0, 0, 32, 32))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	res, err := a.Extractor.Extract(ctx, pipeline.Request{
		ProfileID: p.ID,
		Images:    []imaging.RawImage{{Data: buf.Bytes(), MediaType: "image/png", Filename: "cuff.png"}},
	})
	require.NoError(t, err)
	d, err := a.Gate.Open(ctx, res)
	require.NoError(t, err)
	assert.Len(t, mr.Keys(), 1, "draft lives in redis")

	r, err := a.Gate.Confirm(ctx, p.ID, d.ID, review.ConfirmRequest{MeasuredAt: time.Now().Add(-time.Minute)})
	require.NoError(t, err)
	assert.Equal(t, 64.0, *r.Pulse)
	require.Len(t, r.SourceImages, 1)
}

func TestBuildOffline(t *testing.T) {
	ctx := context.Background()
	a, err := Build(ctx, testConfig(t), quiet(), Options{Offline: true})
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Recognizer)
	assert.Nil(t, a.Extractor)

	p, err := a.Profiles.CreateProfile(ctx, profiles.CreateProfileRequest{Name: "offline"})
	require.NoError(t, err)
	r, err := a.Readings.Create(ctx, readings.CreateRequest{
		ProfileID:  p.ID,
		MeasuredAt: time.Now().Add(-time.Hour),
		Values:     vitals.Measurements{HeightCm: vitals.F(180), WeightKg: vitals.F(81)},
	})
	require.NoError(t, err)
	require.NotNil(t, r.BMI)
	assert.InDelta(t, 25.0, *r.BMI, 1e-9)
}

func TestBuildFailsOnUnreachableRedis(t *testing.T) {
	cfg := testConfig(t)
	cfg.Review.RedisAddr = "127.0.0.1:1"
	_, err := Build(context.Background(), cfg, quiet(), Options{Recognizer: llmtest.New("{}")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestNewRecognizer(t *testing.T) {
	ctx := context.Background()

	cfg := common.DefaultConfig().Recognition
	cfg.Provider = "openai"
	cfg.OpenAI.APIKey = "sk-test"
	rec, err := NewRecognizer(ctx, cfg, quiet())
	require.NoError(t, err)
	assert.Equal(t, "openai", rec.Name())

	cfg.Provider = "gemini"
	cfg.Gemini.APIKey = ""
	_, err = NewRecognizer(ctx, cfg, quiet())
	assert.Error(t, err)

	cfg.Provider = "tesseract"
	_, err = NewRecognizer(ctx, cfg, quiet())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
