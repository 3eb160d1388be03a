package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir переходит во временный каталог без .env и config/.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("APP_ENV", "test")
	t.Setenv("CONFIG_PATH", "")
	return dir
}

func TestDefaults(t *testing.T) {
	chdir(t)
	cfg := Load()
	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, StorePostgres, cfg.StoreBackend)
	assert.Equal(t, BlobLocal, cfg.BlobBackend)
	assert.Equal(t, 10.0, cfg.ProximityRadiusKm)
	assert.Equal(t, 8, cfg.FanoutConcurrency)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadSize)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 20, cfg.DBMaxConnections())
}

func TestYAMLThenEnv(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_addr: ":9000"
store_backend: mongo
mongo:
  mongo_uri: mongodb://db:27017
  mongo_database: paws
blob_backend: s3
s3:
  bucket: photos
  endpoint: http://minio:9000
proximity_radius_km: 5
`), 0o644))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("S3_BUCKET", "override")
	t.Setenv("FANOUT_CONCURRENCY", "3")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.ServerAddr)
	assert.Equal(t, StoreMongo, cfg.StoreBackend)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "paws", cfg.Mongo.Database)
	assert.Equal(t, BlobS3, cfg.BlobBackend)
	assert.Equal(t, "override", cfg.S3.Bucket)
	assert.Equal(t, "http://minio:9000", cfg.S3.Endpoint)
	assert.Equal(t, 5.0, cfg.ProximityRadiusKm)
	assert.Equal(t, 3, cfg.FanoutConcurrency)
}

func TestDotEnvDoesNotOverrideEnv(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("PUSH_SERVICE_URL=http://push:8082\nLOG_LEVEL=debug\n"), 0o644))
	t.Setenv("LOG_LEVEL", "info")
	// godotenv выставляет переменные процесса: вернуть после теста
	t.Setenv("PUSH_SERVICE_URL", "")
	require.NoError(t, os.Unsetenv("PUSH_SERVICE_URL"))

	cfg := Load()
	assert.Equal(t, "http://push:8082", cfg.PushServiceURL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestInvalidNumbersFallBack(t *testing.T) {
	chdir(t)
	t.Setenv("PROXIMITY_RADIUS_KM", "far")
	t.Setenv("MAX_WS_CONNECTIONS", "many")
	cfg := Load()
	assert.Equal(t, 10.0, cfg.ProximityRadiusKm)
	assert.Equal(t, 10000, cfg.MaxWSConnections)
}
