// Package publish uploads finished recordings to S3-compatible object
// storage using minio-go. Object keys are <prefix>/<playlist dir>/<file>.
package publish
