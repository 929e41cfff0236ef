package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/gophtour/internal/flagx"
	"github.com/dmitrijs2005/gophtour/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "6h" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP string         `json:"endpoint_addr_http"`
	DatabaseDSN      string         `json:"database_dsn"`
	SecretKey        string         `json:"secret_key"`
	ContentRoot      string         `json:"content_root"`
	StorageBackend   string         `json:"storage_backend"`
	S3RootUser       string         `json:"s3_root_user"`
	S3RootPassword   string         `json:"s3_root_password"`
	S3Bucket         string         `json:"s3_bucket"`
	S3Region         string         `json:"s3_region"`
	S3BaseEndpoint   string         `json:"s3_base_endpoint"`
	S3Prefix         string         `json:"s3_prefix"`
	StagingTTL       timex.Duration `json:"staging_ttl"`
	SweepInterval    timex.Duration `json:"sweep_interval"`
	SweepBatchSize   int            `json:"sweep_batch_size"`
	MetricsNamespace string         `json:"metrics_namespace"`
	MaxUploadBytes   int64          `json:"max_upload_bytes"`
	LogLevel         string         `json:"log_level"`
}

// parseJson loads values from the JSON file named by -c or -config.
// Without the flag nothing is loaded. Keys absent from the file keep their
// current value. An unreadable file or invalid JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.ContentRoot, c.ContentRoot)
	setString(&config.StorageBackend, c.StorageBackend)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.S3Prefix, c.S3Prefix)
	setString(&config.MetricsNamespace, c.MetricsNamespace)
	setString(&config.LogLevel, c.LogLevel)

	if c.StagingTTL.Duration != 0 {
		config.StagingTTL = c.StagingTTL.Duration
	}
	if c.SweepInterval.Duration != 0 {
		config.SweepInterval = c.SweepInterval.Duration
	}
	if c.MaxUploadBytes != 0 {
		config.MaxUploadBytes = c.MaxUploadBytes
	}
	if c.SweepBatchSize != 0 {
		config.SweepBatchSize = c.SweepBatchSize
	}
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
