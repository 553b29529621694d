package storage

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tablerake/tablerake/internal/record"
)

// fakeS3 keeps objects in memory behind the S3API surface.
type fakeS3 struct {
	objects map[string][]byte
	getErr  error
	putErr  error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &s3types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.putErr != nil {
		return nil, f.putErr
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func newTestS3(client S3API) *S3 {
	return NewS3WithClient(client, S3Options{Bucket: "datasets", Key: "deals.json"})
}

func TestS3_LoadMissingObjectIsEmpty(t *testing.T) {
	backend := newTestS3(newFakeS3())

	records, err := backend.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestS3_RoundTrip(t *testing.T) {
	backend := newTestS3(newFakeS3())
	ctx := context.Background()
	want := testSet()

	require.NoError(t, backend.Save(ctx, want))

	got, err := backend.Load(ctx)
	require.NoError(t, err)
	assertSetsEqual(t, want, got)
}

func TestS3_SaveOverwrites(t *testing.T) {
	backend := newTestS3(newFakeS3())
	ctx := context.Background()

	require.NoError(t, backend.Save(ctx, testSet()))

	one := record.New()
	one.Set("id", "only")
	require.NoError(t, backend.Save(ctx, record.Set{one}))

	got, err := backend.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestS3_CorruptObjectFails(t *testing.T) {
	fake := newFakeS3()
	fake.objects["datasets/deals.json"] = []byte(`<html>not json</html>`)
	backend := newTestS3(fake)

	_, err := backend.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsCorrupt(err))
	assert.False(t, IsUnavailable(err))
}

func TestS3_LoadAPIFailureIsUnavailable(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = eris.New("connection reset")
	backend := newTestS3(fake)

	_, err := backend.Load(context.Background())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "non-notfound API errors must not look like an empty set")
}

func TestS3_SaveFailureIsSurfaced(t *testing.T) {
	fake := newFakeS3()
	fake.putErr = eris.New("503 slow down")
	backend := newTestS3(fake)

	err := backend.Save(context.Background(), testSet())
	require.Error(t, err)
	assert.True(t, IsUnavailable(err), "a failed save must never be reported as success")
}
