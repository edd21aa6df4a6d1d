package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agalue/swictation/internal/swicterr"
)

func writeTempModel(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("fake"), 0o644))
	return path
}

func TestDefaultConfigMatchesSpecDefaults(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(t, 0.25, cfg.VADThreshold())
	require.Equal(t, 800*time.Millisecond, cfg.MinSilenceDuration())
	require.Equal(t, 250*time.Millisecond, cfg.MinSpeechDuration())
	require.Equal(t, 500*time.Millisecond, cfg.ChunkDuration())
	require.Equal(t, 16000, cfg.SampleRate())
	require.Equal(t, "cpu", cfg.ExecutionProvider())
	require.Equal(t, "fast", cfg.Audio.ResampleQuality)
}

func TestLoadOverridesDefaultsFromTOML(t *testing.T) {
	dir := t.TempDir()
	sttModel := writeTempModel(t, dir, "encoder.onnx")
	vadModel := writeTempModel(t, dir, "silero_vad.onnx")

	toml := `
[vad]
threshold = 0.4
model_path = "` + vadModel + `"

[stt]
model_path = "` + sttModel + `"
execution_provider = "cuda"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 0.4, cfg.VADThreshold())
	require.Equal(t, "cuda", cfg.ExecutionProvider())
	require.Equal(t, sttModel, cfg.STTModelPath())
	require.Equal(t, 16000, cfg.SampleRate())
}

func TestLoadRejectsMissingModelFiles(t *testing.T) {
	dir := t.TempDir()
	toml := `
[stt]
model_path = "` + filepath.Join(dir, "missing-encoder.onnx") + `"
[vad]
model_path = "` + filepath.Join(dir, "missing-vad.onnx") + `"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadAcceptsHighQualityResample(t *testing.T) {
	dir := t.TempDir()
	sttModel := writeTempModel(t, dir, "encoder.onnx")
	vadModel := writeTempModel(t, dir, "silero_vad.onnx")
	toml := `
[audio]
resample_quality = "high"
[stt]
model_path = "` + sttModel + `"
[vad]
model_path = "` + vadModel + `"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "high", cfg.Audio.ResampleQuality)
}

func TestLoadRejectsInvalidResampleQuality(t *testing.T) {
	dir := t.TempDir()
	sttModel := writeTempModel(t, dir, "encoder.onnx")
	vadModel := writeTempModel(t, dir, "silero_vad.onnx")
	toml := `
[audio]
resample_quality = "lossless"
[stt]
model_path = "` + sttModel + `"
[vad]
model_path = "` + vadModel + `"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMissingModelFilesWithConfigKindError(t *testing.T) {
	dir := t.TempDir()
	toml := `
[stt]
model_path = "` + filepath.Join(dir, "missing-encoder.onnx") + `"
[vad]
model_path = "` + filepath.Join(dir, "missing-vad.onnx") + `"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	_, err := Load(path)
	require.Error(t, err)

	var swicErr *swicterr.Error
	require.ErrorAs(t, err, &swicErr)
	require.Equal(t, swicterr.KindConfig, swicErr.Kind)
}

func TestLoadRejectsInvalidExecutionProvider(t *testing.T) {
	dir := t.TempDir()
	sttModel := writeTempModel(t, dir, "encoder.onnx")
	vadModel := writeTempModel(t, dir, "silero_vad.onnx")
	toml := `
[stt]
model_path = "` + sttModel + `"
execution_provider = "tpu"
[vad]
model_path = "` + vadModel + `"
`
	path := filepath.Join(dir, "swictation.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
