package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/vitals-tracker/internal/common"
	"github.com/joseph-ayodele/vitals-tracker/internal/export"
	"github.com/joseph-ayodele/vitals-tracker/internal/imaging"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm/llmtest"
	"github.com/joseph-ayodele/vitals-tracker/internal/pipeline"
	"github.com/joseph-ayodele/vitals-tracker/internal/profiles"
	"github.com/joseph-ayodele/vitals-tracker/internal/readings"
	"github.com/joseph-ayodele/vitals-tracker/internal/repository"
	"github.com/joseph-ayodele/vitals-tracker/internal/review"
	"github.com/joseph-ayodele/vitals-tracker/internal/storage"
)

const scaleResponse = `{"heightCm": 164.63, "weightKg": 63.21, "bmi": null, "standardWeightKg": 59.6,
 "systolic": null, "diastolic": null, "pulse": null, "machineNotes": []}`

type client struct {
	t    *testing.T
	conn *grpc.ClientConn
}

func (c *client) call(method string, in map[string]any) (*structpb.Struct, error) {
	c.t.Helper()
	req, err := structpb.NewStruct(in)
	require.NoError(c.t, err)
	out := new(structpb.Struct)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.conn.Invoke(ctx, method, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *client) mustCall(method string, in map[string]any) map[string]any {
	c.t.Helper()
	out, err := c.call(method, in)
	require.NoError(c.t, err, method)
	return out.AsMap()
}

func startServer(t *testing.T, recognizer *llmtest.Recognizer) *client {
	t.Helper()
	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	drv, closeDB, err := ConnectDB(ctx, common.DatabaseConfig{Driver: "sqlite"}, log)
	require.NoError(t, err)
	t.Cleanup(closeDB)
	require.NoError(t, PingDB(ctx, drv, log, time.Second))

	store, err := storage.NewLocalStore(t.TempDir(), log)
	require.NoError(t, err)

	profileRepo := repository.NewProfileRepository(drv, log)
	jobs := repository.NewExtractionJobRepository(drv, log)
	images := repository.NewSourceImageRepository(drv, log)
	readingRepo := repository.NewReadingRepository(drv, log)

	profileSvc := profiles.NewService(profileRepo, log)
	readingSvc := readings.NewService(readingRepo, images, store, log)
	extractor := pipeline.NewExtractor(log, imaging.NewNormalizer(imaging.Config{}, nil, log), store, recognizer, jobs, images)
	gate := review.NewGate(log, review.NewMemoryStore(time.Hour), readingRepo)

	lis := bufconn.Listen(1 << 20)
	gs := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(log)))
	Register(gs, Servers{
		Profiles:   NewProfileServer(profileSvc, log),
		Extraction: NewExtractionServer(profileSvc, extractor, gate, log),
		Readings:   NewReadingServer(readingSvc, log),
		Export:     NewExportServer(export.NewService(readingSvc, log), log),
	})
	go func() { _ = gs.Serve(lis) }()
	t.Cleanup(gs.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func pngBase64(t *testing.T) (string, []byte) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	img.Set(1, 1, color.RGBA{G: 200, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes()), buf.Bytes()
}

func createProfile(c *client, name string) string {
	out := c.mustCall("/vitals.v1.ProfilesService/CreateProfile", map[string]any{"name": name})
	return out["profile"].(map[string]any)["id"].(string)
}

func TestExtractReviewConfirmFlow(t *testing.T) {
	c := startServer(t, llmtest.New(scaleResponse))
	pid := createProfile(c, "kiosk user")
	assert.Equal(t, pid, createProfile(c, "kiosk user"), "create is idempotent by name")

	encoded, original := pngBase64(t)
	out := c.mustCall("/vitals.v1.ExtractionService/Extract", map[string]any{
		"profile_id": pid,
		"images":     []any{map[string]any{"data": encoded, "media_type": "image/png", "filename": "scale.png"}},
	})
	assert.Equal(t, "fake-vision", out["model"])
	draft := out["draft"].(map[string]any)
	draftID := draft["id"].(string)
	values := draft["values"].(map[string]any)
	assert.InDelta(t, 164.6, values["heightCm"], 1e-9)
	assert.InDelta(t, 23.33, values["bmi"], 1e-9)
	assert.Nil(t, values["pulse"])
	assert.Equal(t, "fresh", draft["derivation_state"])

	out = c.mustCall("/vitals.v1.ExtractionService/EditDraft", map[string]any{
		"profile_id": pid,
		"draft_id":   draftID,
		"values":     map[string]any{"weightKg": 70.04, "standardWeightKg": nil},
	})
	values = out["draft"].(map[string]any)["values"].(map[string]any)
	assert.InDelta(t, 70.0, values["weightKg"], 1e-9)
	assert.InDelta(t, 25.84, values["bmi"], 1e-9)
	assert.Nil(t, values["standardWeightKg"])

	measured := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	out = c.mustCall("/vitals.v1.ExtractionService/ConfirmDraft", map[string]any{
		"profile_id":  pid,
		"draft_id":    draftID,
		"measured_at": measured,
		"notes":       "morning",
	})
	reading := out["reading"].(map[string]any)
	readingID := reading["id"].(string)
	assert.Equal(t, "Overweight", reading["bmi_category"])
	assert.Equal(t, "morning", reading["notes"])
	imgs := reading["source_images"].([]any)
	require.Len(t, imgs, 1)
	imageID := imgs[0].(map[string]any)["id"].(string)

	_, err := c.call("/vitals.v1.ExtractionService/GetDraft", map[string]any{"profile_id": pid, "draft_id": draftID})
	assert.Equal(t, codes.FailedPrecondition, status.Code(err))

	list := c.mustCall("/vitals.v1.ReadingsService/ListReadings", map[string]any{"profile_id": pid})
	assert.Len(t, list["readings"].([]any), 1)

	img := c.mustCall("/vitals.v1.ReadingsService/GetSourceImage", map[string]any{"profile_id": pid, "image_id": imageID})
	data, err := base64.StdEncoding.DecodeString(img["data"].(string))
	require.NoError(t, err)
	assert.Equal(t, original, data, "originals are archived unmodified")

	sum := c.mustCall("/vitals.v1.ReadingsService/GetSummary", map[string]any{"profile_id": pid})
	assert.Equal(t, readingID, sum["latest"].(map[string]any)["id"])
	assert.Equal(t, "Unknown", sum["bp_category"])

	xlsx := c.mustCall("/vitals.v1.ExportService/ExportReadings", map[string]any{"profile_id": pid})
	raw, err := base64.StdEncoding.DecodeString(xlsx["xlsx"].(string))
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("PK")))

	c.mustCall("/vitals.v1.ReadingsService/DeleteReading", map[string]any{"profile_id": pid, "reading_id": readingID})
	_, err = c.call("/vitals.v1.ReadingsService/GetReading", map[string]any{"profile_id": pid, "reading_id": readingID})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestManualReadingAndFilters(t *testing.T) {
	c := startServer(t, llmtest.New(scaleResponse))
	pid := createProfile(c, "manual")

	for _, bp := range [][2]float64{{118, 76}, {142, 91}} {
		c.mustCall("/vitals.v1.ReadingsService/CreateReading", map[string]any{
			"profile_id":  pid,
			"measured_at": "2025-03-01",
			"values":      map[string]any{"systolic": bp[0], "diastolic": bp[1], "pulse": 70},
		})
	}

	out := c.mustCall("/vitals.v1.ReadingsService/ListReadings", map[string]any{
		"profile_id": pid, "bp_category": "stage 2", "from": "2025-03-01", "to": "2025-03-01",
	})
	got := out["readings"].([]any)
	require.Len(t, got, 1)
	assert.Equal(t, "Stage 2 Hypertension", got[0].(map[string]any)["bp_category"])

	_, err := c.call("/vitals.v1.ReadingsService/ListReadings", map[string]any{"profile_id": pid, "bp_category": "purple"})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = c.call("/vitals.v1.ReadingsService/CreateReading", map[string]any{
		"profile_id":  pid,
		"measured_at": "2025-03-01",
		"values":      map[string]any{"systolic": 400},
	})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Contains(t, status.Convert(err).Message(), "systolic")
}

func TestExtractErrorsMapToCodes(t *testing.T) {
	encoded, _ := pngBase64(t)
	photo := map[string]any{"data": encoded, "media_type": "image/png"}

	tests := []struct {
		name string
		rec  *llmtest.Recognizer
		req  func(pid string) map[string]any
		want codes.Code
	}{
		{
			name: "no images",
			rec:  llmtest.New(scaleResponse),
			req:  func(pid string) map[string]any { return map[string]any{"profile_id": pid} },
			want: codes.InvalidArgument,
		},
		{
			name: "bad profile id",
			rec:  llmtest.New(scaleResponse),
			req:  func(string) map[string]any { return map[string]any{"profile_id": "nope", "images": []any{photo}} },
			want: codes.InvalidArgument,
		},
		{
			name: "unknown profile",
			rec:  llmtest.New(scaleResponse),
			req: func(string) map[string]any {
				return map[string]any{"profile_id": "7c9e6679-7425-40de-944b-e07fc1f90ae7", "images": []any{photo}}
			},
			want: codes.NotFound,
		},
		{
			name: "corrupt image",
			rec:  llmtest.New(scaleResponse),
			req: func(pid string) map[string]any {
				bad := map[string]any{"data": base64.StdEncoding.EncodeToString([]byte("not an image"))}
				return map[string]any{"profile_id": pid, "images": []any{bad}}
			},
			want: codes.InvalidArgument,
		},
		{
			name: "no json in reply",
			rec:  llmtest.New("I cannot read this display."),
			req:  func(pid string) map[string]any { return map[string]any{"profile_id": pid, "images": []any{photo}} },
			want: codes.FailedPrecondition,
		},
		{
			name: "out of range",
			rec:  llmtest.New(`{"heightCm": 999, "weightKg": null, "bmi": null, "standardWeightKg": null, "systolic": null, "diastolic": null, "pulse": null, "machineNotes": []}`),
			req:  func(pid string) map[string]any { return map[string]any{"profile_id": pid, "images": []any{photo}} },
			want: codes.InvalidArgument,
		},
		{
			name: "backend down",
			rec:  &llmtest.Recognizer{Err: &common.RecognitionUnavailableError{Provider: "fake", StatusCode: 503}},
			req:  func(pid string) map[string]any { return map[string]any{"profile_id": pid, "images": []any{photo}} },
			want: codes.Unavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := startServer(t, tt.rec)
			pid := createProfile(c, "errors")
			_, err := c.call("/vitals.v1.ExtractionService/Extract", tt.req(pid))
			require.Error(t, err)
			assert.Equal(t, tt.want, status.Code(err), status.Convert(err).Message())
		})
	}
}

func TestHealthServing(t *testing.T) {
	c := startServer(t, llmtest.New(scaleResponse))
	resp, err := healthpb.NewHealthClient(c.conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ExtractionServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
}
