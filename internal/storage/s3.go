package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/rotisserie/eris"

	"github.com/tablerake/tablerake/internal/record"
)

// S3API is the slice of the S3 client the backend needs. The concrete
// *s3.Client satisfies it; tests substitute a fake.
type S3API interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options locates the single object holding one dataset.
type S3Options struct {
	Bucket   string
	Key      string
	Region   string
	Endpoint string // optional, for S3-compatible stores
}

// S3 stores the record set as one JSON object in a bucket. Saves are a
// single-object overwrite; S3 PUTs are atomic per object, so readers
// see either the old or the new set, never a mix.
type S3 struct {
	client S3API
	opts   S3Options
}

// NewS3 builds an S3 backend using the ambient AWS credential chain.
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, eris.Wrap(err, "s3: load aws config")
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = &opts.Endpoint
			o.UsePathStyle = true
		}
	})
	return NewS3WithClient(client, opts), nil
}

// NewS3WithClient builds an S3 backend around an existing client.
func NewS3WithClient(client S3API, opts S3Options) *S3 {
	return &S3{client: client, opts: opts}
}

func (s *S3) Name() string { return "s3" }

func (s *S3) Close() error { return nil }

// Load fetches the dataset object. A missing object is an empty set;
// any other API failure is an UnavailableError, and an object that
// exists but does not parse is a CorruptError.
func (s *S3) Load(ctx context.Context) (record.Set, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.opts.Bucket,
		Key:    &s.opts.Key,
	})
	if err != nil {
		if isS3NotFound(err) {
			return record.Set{}, nil
		}
		return nil, &UnavailableError{Backend: s.Name(), Err: err}
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, &UnavailableError{Backend: s.Name(), Err: err}
	}

	var records record.Set
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &CorruptError{Backend: s.Name(), Err: err}
	}
	return records, nil
}

// Save overwrites the dataset object with the given set.
func (s *S3) Save(ctx context.Context, records record.Set) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "s3: marshal records")
	}

	contentType := "application/json"
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.opts.Bucket,
		Key:         &s.opts.Key,
		Body:        bytes.NewReader(data),
		ContentType: &contentType,
	})
	if err != nil {
		return &UnavailableError{Backend: s.Name(), Err: err}
	}
	return nil
}

// isS3NotFound matches the ways S3 reports a missing object.
func isS3NotFound(err error) bool {
	var noKey *s3types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NoSuchKey" || code == "NotFound"
	}
	return false
}
