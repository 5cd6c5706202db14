// Package proofstore keeps payment proof uploads and hands back an opaque
// reference that is stored on the registration.
package proofstore

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
)

// MaxProofSize bounds a single upload.
const MaxProofSize = 5 << 20

var (
	ErrEmpty    = errors.New("proof is empty")
	ErrTooLarge = errors.New("proof exceeds size limit")
	ErrNotData  = errors.New("not a data uri")
)

type Store interface {
	Put(ctx context.Context, registrationID int64, contentType string, data []byte) (string, error)
}

// Key builds the object key for a proof of registrationID.
func Key(registrationID int64, contentType string) string {
	ext := ""
	if exts, _ := mime.ExtensionsByType(contentType); len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("payment-proofs/%d/%s%s", registrationID, uuid.NewString(), ext)
}

func check(data []byte) error {
	if len(data) == 0 {
		return ErrEmpty
	}
	if len(data) > MaxProofSize {
		return ErrTooLarge
	}
	return nil
}

type S3Config struct {
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// Endpoint overrides the AWS endpoint for S3-compatible storage.
	Endpoint string
}

type S3Store struct {
	svc    *s3.S3
	bucket string
	region string
	host   string
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if cfg.Bucket == "" || cfg.Region == "" {
		return nil, fmt.Errorf("s3 bucket and region are required")
	}
	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	host := fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	if cfg.Endpoint != "" {
		host = strings.TrimRight(cfg.Endpoint, "/") + "/" + cfg.Bucket
	}
	return &S3Store{svc: s3.New(sess), bucket: cfg.Bucket, region: cfg.Region, host: host}, nil
}

func (s *S3Store) Put(ctx context.Context, registrationID int64, contentType string, data []byte) (string, error) {
	if err := check(data); err != nil {
		return "", err
	}
	key := Key(registrationID, contentType)
	_, err := s.svc.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload proof to S3: %w", err)
	}
	return s.host + "/" + key, nil
}

// MemoryStore keeps proofs in process.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string][]byte)}
}

func (m *MemoryStore) Put(_ context.Context, registrationID int64, contentType string, data []byte) (string, error) {
	if err := check(data); err != nil {
		return "", err
	}
	key := Key(registrationID, contentType)
	m.mu.Lock()
	m.objects[key] = append([]byte(nil), data...)
	m.mu.Unlock()
	return "mem://" + key, nil
}

// Get returns a stored object by reference.
func (m *MemoryStore) Get(ref string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[strings.TrimPrefix(ref, "mem://")]
	return data, ok
}

// DecodeDataURI parses an RFC 2397 data: URI. ErrNotData is returned for
// anything else so the caller can treat the value as a plain reference.
func DecodeDataURI(s string) (string, []byte, error) {
	if !strings.HasPrefix(s, "data:") {
		return "", nil, ErrNotData
	}
	meta, payload, ok := strings.Cut(s[len("data:"):], ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data uri")
	}
	contentType := "text/plain"
	isBase64 := false
	if meta != "" {
		parts := strings.Split(meta, ";")
		if parts[0] != "" {
			contentType = parts[0]
		}
		for _, p := range parts[1:] {
			if p == "base64" {
				isBase64 = true
			}
		}
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("malformed data uri: %w", err)
		}
		return contentType, data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data uri: %w", err)
	}
	return contentType, []byte(data), nil
}
