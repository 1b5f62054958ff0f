// Package archive stores forms received through ArchiveForm (ITI-36) and, when a test asks for
// it, SubmitForm (ITI-35). Each stored document gets a ksuid key.
package archive

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/ksuid"
)

const (
	TypeFile = "file"
	TypeS3   = "s3"
)

var ErrNotFound = errors.New("archived document not found")

type Store interface {
	Put(ctx context.Context, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) ([]byte, string, error)
}

type Config struct {
	Type string    `yaml:"type" validate:"omitempty,oneof=file s3"`
	Dir  string    `yaml:"dir" validate:"required_if=Type file"`
	S3   *S3Config `yaml:"s3" validate:"required_if=Type s3"`
}

type S3Config struct {
	Bucket       string `yaml:"bucket" validate:"required"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"usePathStyle"`
}

// Open creates the archive store selected by config.Type. An empty type means a file store in
// ./archive.
func Open(ctx context.Context, config Config) (Store, error) {
	switch config.Type {
	case "", TypeFile:
		dir := config.Dir
		if dir == "" {
			dir = "archive"
		}
		return NewFileStore(dir)
	case TypeS3:
		if config.S3 == nil {
			return nil, errors.New("s3 archive needs an s3 section")
		}
		return NewS3Store(ctx, *config.S3)
	default:
		return nil, fmt.Errorf("unknown archive type %q", config.Type)
	}
}

func newKey() string {
	return ksuid.New().String()
}

func validKey(key string) bool {
	_, err := ksuid.Parse(key)
	return err == nil
}
