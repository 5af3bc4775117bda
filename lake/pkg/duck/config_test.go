package duck

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearS3Env(t *testing.T) {
	for _, k := range []string{
		"S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID", "S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY",
		"S3_ENDPOINT", "AWS_ENDPOINT_URL", "S3_REGION", "AWS_REGION", "S3_USE_SSL", "S3_URL_STYLE",
	} {
		t.Setenv(k, "")
	}
}

func TestLake_Duck_LoadS3ConfigFromEnv(t *testing.T) {
	t.Run("credential chain on AWS", func(t *testing.T) {
		clearS3Env(t)
		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, &S3Config{Region: "us-east-1", UseSSL: true, URLStyle: "path"}, cfg)
	})

	t.Run("custom endpoint with keys", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_ACCESS_KEY_ID", "key")
		t.Setenv("AWS_SECRET_ACCESS_KEY", "secret")
		t.Setenv("S3_ENDPOINT", "http://localhost:9000")
		t.Setenv("AWS_REGION", "eu-west-1")
		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.Equal(t, &S3Config{
			AccessKeyID:     "key",
			SecretAccessKey: "secret",
			Endpoint:        "http://localhost:9000",
			Region:          "eu-west-1",
			UseSSL:          false,
			URLStyle:        "path",
		}, cfg)
	})

	t.Run("explicit overrides", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_USE_SSL", "1")
		t.Setenv("S3_URL_STYLE", "virtual")
		t.Setenv("S3_ENDPOINT", "http://minio:9000")
		cfg, err := LoadS3ConfigFromEnv()
		require.NoError(t, err)
		require.True(t, cfg.UseSSL)
		require.Equal(t, "virtual", cfg.URLStyle)
	})

	t.Run("half configured credentials", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_ACCESS_KEY_ID", "key")
		_, err := LoadS3ConfigFromEnv()
		require.ErrorContains(t, err, "must be set together")
	})
}

func TestLake_Duck_PrepareS3ConfigForStorageURI(t *testing.T) {
	t.Run("file storage needs nothing", func(t *testing.T) {
		cfg, err := PrepareS3ConfigForStorageURI(context.Background(), testLogger(t), "file:///data")
		require.NoError(t, err)
		require.Nil(t, cfg)
	})

	t.Run("custom endpoint requires keys", func(t *testing.T) {
		clearS3Env(t)
		t.Setenv("S3_ENDPOINT", "http://minio.internal:9000")
		_, err := PrepareS3ConfigForStorageURI(context.Background(), testLogger(t), "s3://lake-bucket/data")
		require.ErrorContains(t, err, "requires explicit credentials")
	})
}

func TestLake_Duck_S3SecretSQL(t *testing.T) {
	t.Parallel()

	cfg := &S3Config{AccessKeyID: "k'ey", SecretAccessKey: "s", Endpoint: "http://localhost:9000", Region: "us-east-1", URLStyle: "path"}
	require.Equal(t,
		"CREATE SECRET IF NOT EXISTS lake_s3 (TYPE s3, KEY_ID 'k''ey', SECRET 's', ENDPOINT 'localhost:9000', REGION 'us-east-1', URL_STYLE 'path', USE_SSL false)",
		cfg.secretSQL())

	cfg = &S3Config{Region: "us-east-2", UseSSL: true}
	require.Equal(t,
		"CREATE SECRET IF NOT EXISTS lake_s3 (TYPE s3, PROVIDER credential_chain, REGION 'us-east-2', URL_STYLE 'path', USE_SSL true)",
		cfg.secretSQL())
}
