package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/vitals-tracker/internal/app"
	"github.com/joseph-ayodele/vitals-tracker/internal/llm/llmtest"
)

const cuffResponse = `{"heightCm": null, "weightKg": null, "bmi": null, "standardWeightKg": null,
 "systolic": 131, "diastolic": 84, "pulse": 72, "machineNotes": []}`

func run(t *testing.T, reply string, args ...string) (map[string]any, error) {
	t.Helper()
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("REDIS_ADDR", "")

	c := &cli{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		opts:   app.Options{Recognizer: llmtest.New(reply)},
	}
	root := newRootCmd(c)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{"--inmem", "--upload-dir", t.TempDir()}, args...))
	if err := root.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}
	var got map[string]any
	if bytes.HasPrefix(bytes.TrimSpace(out.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	}
	return got, nil
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 30))))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

func TestExtractDraftAndConfirm(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "cuff.png")
	writePNG(t, photo)

	got, err := run(t, cuffResponse, "extract", photo)
	require.NoError(t, err)
	draft := got["draft"].(map[string]any)
	assert.Equal(t, 131.0, draft["values"].(map[string]any)["systolic"])
	assert.Equal(t, false, draft["confirmed"])

	got, err = run(t, cuffResponse, "extract", "--confirm", "--measured-at", "2025-03-01", "--notes", "left arm", photo)
	require.NoError(t, err)
	reading := got["reading"].(map[string]any)
	assert.Equal(t, "Stage 1 Hypertension", reading["bp_category"])
	assert.Equal(t, "left arm", reading["notes"])
	assert.Equal(t, "2025-03-01T00:00:00Z", reading["measured_at"])
}

func TestExtractRejectsTooManyFiles(t *testing.T) {
	_, err := run(t, cuffResponse, "extract", "1.png", "2.png", "3.png", "4.png", "5.png", "6.png")
	assert.Error(t, err)
}

func TestScanConfirmWritesWorkbook(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))
	writePNG(t, filepath.Join(dir, "session", "1.png"))
	writePNG(t, filepath.Join(dir, "session", "2.png"))
	out := filepath.Join(t.TempDir(), "out.xlsx")

	got, err := run(t, cuffResponse, "scan", "--confirm", "--workers", "2", "--out", out, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got["failures"])
	results := got["results"].([]any)
	require.Len(t, results, 2)
	assert.Equal(t, "a.png", results[0].(map[string]any)["group"])
	assert.Equal(t, 2.0, results[1].(map[string]any)["images"])
	assert.NotEmpty(t, results[1].(map[string]any)["reading_id"])

	info, err := os.Stat(out)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestScanReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"))

	got, err := run(t, "no numbers here", "scan", dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, got["failures"])
	res := got["results"].([]any)[0].(map[string]any)
	assert.Equal(t, "RESPONSE_PARSE", res["error_code"])
	assert.NotEmpty(t, res["extraction_job_id"])
}

func TestAddManualReading(t *testing.T) {
	got, err := run(t, "", "add", "--heightCm", "172.44", "--weightKg", "70.06", "--measured-at", "2025-03-01T08:30:00Z")
	require.NoError(t, err)
	values := got["reading"].(map[string]any)["values"].(map[string]any)
	assert.Equal(t, 172.4, values["heightCm"])
	assert.Equal(t, 70.1, values["weightKg"])
	assert.Equal(t, 23.59, values["bmi"])
	assert.Nil(t, values["pulse"])

	_, err = run(t, "", "add")
	assert.Error(t, err, "at least one value is required")

	_, err = run(t, "", "add", "--pulse", "500")
	assert.Error(t, err)
}

func TestExportValidatesFlags(t *testing.T) {
	out := filepath.Join(t.TempDir(), "v.xlsx")
	_, err := run(t, "", "export", "--out", out, "--from", "2025-01-01", "--bp", "stage 2")
	require.NoError(t, err)
	_, err = os.Stat(out)
	require.NoError(t, err)

	_, err = run(t, "", "export", "--bp", "purple")
	assert.ErrorContains(t, err, "unknown --bp")

	_, err = run(t, "", "export", "--from", "01/02/2025")
	assert.Error(t, err)
}

func TestConfirmFlagSaysDraftsAreAcceptedUnseen(t *testing.T) {
	root := newRootCmd(&cli{logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	for _, name := range []string{"extract", "scan"} {
		t.Run(name, func(t *testing.T) {
			cmd, _, err := root.Find([]string{name})
			require.NoError(t, err)
			flag := cmd.Flags().Lookup("confirm")
			require.NotNil(t, flag)
			assert.Contains(t, flag.Usage, "unseen")
			assert.Equal(t, "false", flag.DefValue)
		})
	}
}
