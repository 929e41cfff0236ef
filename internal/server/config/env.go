package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/dmitrijs2005/gophtour/internal/flagx"
)

const envPrefix = "GOPHTOUR_"

// defaultEnvFile is read when present and no -env-file flag is given.
const defaultEnvFile = ".env"

// parseEnv overlays Config with GOPHTOUR_* variables. Values come from the
// process environment first and from the dotenv file second, so exported
// variables always win over the file, as with godotenv.Load.
//
// The dotenv file is taken from -env-file; otherwise ./.env is used when it
// exists. An explicit file that cannot be read, or a malformed value, panics.
func parseEnv(config *Config) {
	fileVals := map[string]string{}

	if path := flagx.EnvFilePath(os.Args[1:]); path != "" {
		vals, err := godotenv.Read(path)
		if err != nil {
			panic(err)
		}
		fileVals = vals
	} else {
		vals, err := godotenv.Read(defaultEnvFile)
		switch {
		case err == nil:
			fileVals = vals
		case errors.Is(err, fs.ErrNotExist):
		default:
			panic(err)
		}
	}

	lookup := func(name string) (string, bool) {
		key := envPrefix + name
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVals[key]
		return v, ok
	}

	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	dur := func(name string, dst *time.Duration) {
		if v, ok := lookup(name); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				panic(err)
			}
			*dst = d
		}
	}
	num := func(name string, dst *int) {
		if v, ok := lookup(name); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				panic(err)
			}
			*dst = n
		}
	}

	str("HTTP_ADDR", &config.EndpointAddrHTTP)
	str("DATABASE_DSN", &config.DatabaseDSN)
	str("SECRET_KEY", &config.SecretKey)
	str("CONTENT_ROOT", &config.ContentRoot)
	str("STORAGE_BACKEND", &config.StorageBackend)
	str("S3_ROOT_USER", &config.S3RootUser)
	str("S3_ROOT_PASSWORD", &config.S3RootPassword)
	str("S3_BUCKET", &config.S3Bucket)
	str("S3_REGION", &config.S3Region)
	str("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)
	str("S3_PREFIX", &config.S3Prefix)
	dur("STAGING_TTL", &config.StagingTTL)
	dur("SWEEP_INTERVAL", &config.SweepInterval)
	num("SWEEP_BATCH_SIZE", &config.SweepBatchSize)
	str("METRICS_NAMESPACE", &config.MetricsNamespace)
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			panic(err)
		}
		config.MaxUploadBytes = n
	}
	str("LOG_LEVEL", &config.LogLevel)
}
