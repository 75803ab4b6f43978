package s3sheet

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

type fakeObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  error
}

func newFakeObjects() *fakeObjects {
	return &fakeObjects{objects: make(map[string][]byte)}
}

func (f *fakeObjects) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeObjects) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func TestWriteThenRead(t *testing.T) {
	api := newFakeObjects()
	c := NewClientWithAPI(api, "ledger", "sheets/", nil)
	ctx := context.Background()

	first := models.SheetRow{AssetName: "SBER", Date: "2024-01-10", Type: "Buy", Price: "270.5"}
	second := models.SheetRow{AssetName: "Gazprom, pref", Date: "2024-01-11", Type: "Sell", Price: "160"}
	require.NoError(t, c.WriteRow(ctx, "key", "abc", first))
	require.NoError(t, c.WriteRow(ctx, "key", "abc", second))

	raw := string(api.objects["ledger/sheets/abc.csv"])
	assert.Contains(t, raw, "Asset Name,Transaction Date,Type,Asset Price\n")
	assert.Contains(t, raw, `"Gazprom, pref"`)

	rows, err := c.ReadRows(ctx, "key", "abc")
	require.NoError(t, err)
	assert.Equal(t, []models.SheetRow{first, second}, rows)
}

func TestReadRows_MissingObject(t *testing.T) {
	c := NewClientWithAPI(newFakeObjects(), "ledger", "", nil)
	_, err := c.ReadRows(context.Background(), "key", "nope")
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

func TestReadRows_RequiresCredential(t *testing.T) {
	c := NewClientWithAPI(newFakeObjects(), "ledger", "", nil)
	_, err := c.ReadRows(context.Background(), "", "abc")
	assert.True(t, errors.Is(err, common.ErrCredentialMissing))
}

func TestReadRows_RejectsPathLikeID(t *testing.T) {
	c := NewClientWithAPI(newFakeObjects(), "ledger", "", nil)
	_, err := c.ReadRows(context.Background(), "key", "../other")
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}

func TestReadRows_BackendFailure(t *testing.T) {
	api := newFakeObjects()
	api.getErr = errors.New("connection refused")
	c := NewClientWithAPI(api, "ledger", "", nil)

	_, err := c.ReadRows(context.Background(), "key", "abc")
	assert.True(t, errors.Is(err, common.ErrExternalUnavailable))

	err = c.WriteRow(context.Background(), "key", "abc", models.SheetRow{AssetName: "X"})
	assert.True(t, errors.Is(err, common.ErrExternalUnavailable))
}

func TestNewClient_RequiresBucket(t *testing.T) {
	_, err := NewClient(context.Background(), common.S3Config{}, nil)
	assert.True(t, errors.Is(err, common.ErrInvalidInput))
}
