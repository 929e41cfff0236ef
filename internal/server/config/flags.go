package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/gophtour/internal/flagx"
)

// parseFlags populates Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string     HTTP bind address (e.g., ":8080")
//	-d string     PostgreSQL DSN
//	-s string     JWT HMAC secret key
//	-r string     content root for fs storage
//	-m string     storage backend: fs or s3
//	-u string     S3 root user
//	-p string     S3 root password
//	-b string     S3 bucket name
//	-g string     S3 region
//	-e string     S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-t duration   staging TTL (e.g., "6h")
//	-i duration   sweep interval (e.g., "15m")
//	-n int        sweep batch size
//	-x int        max upload request size, bytes
//	-l string     log level
//
// os.Args is filtered with flagx.FilterArgs first so -c and -env-file,
// handled elsewhere, do not break parsing.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-r", "-m", "-u", "-p", "-b", "-g", "-e", "-t", "-i", "-n", "-x", "-l"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.ContentRoot, "r", config.ContentRoot, "content root directory")
	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend (fs|s3)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.DurationVar(&config.StagingTTL, "t", config.StagingTTL, "staging upload ttl")
	fs.DurationVar(&config.SweepInterval, "i", config.SweepInterval, "expired upload sweep interval")
	fs.IntVar(&config.SweepBatchSize, "n", config.SweepBatchSize, "expired upload sweep batch size")
	fs.Int64Var(&config.MaxUploadBytes, "x", config.MaxUploadBytes, "max upload request size in bytes")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
