// Package s3sheet keeps each spreadsheet as a CSV object in an S3-compatible
// bucket (AWS S3 or MinIO).
package s3sheet

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/nikitakreml/invest-track-app/internal/common"
	"github.com/nikitakreml/invest-track-app/internal/interfaces"
	"github.com/nikitakreml/invest-track-app/internal/models"
)

// ObjectAPI is the subset of the S3 client used here.
type ObjectAPI interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client implements interfaces.SpreadsheetSync
type Client struct {
	api    ObjectAPI
	bucket string
	prefix string
	logger *common.Logger
}

var _ interfaces.SpreadsheetSync = (*Client)(nil)

// NewClient builds an S3 client from static credentials. A non-empty
// endpoint switches to path-style addressing for MinIO.
func NewClient(ctx context.Context, cfg common.S3Config, logger *common.Logger) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: s3 bucket is required", common.ErrInvalidInput)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewClientWithAPI(api, cfg.Bucket, cfg.Prefix, logger), nil
}

// NewClientWithAPI wraps an existing object API.
func NewClientWithAPI(api ObjectAPI, bucket, prefix string, logger *common.Logger) *Client {
	if logger == nil {
		logger = common.NewSilentLogger()
	}
	return &Client{api: api, bucket: bucket, prefix: prefix, logger: logger}
}

func (c *Client) objectKey(spreadsheetID string) string {
	return c.prefix + spreadsheetID + ".csv"
}

func checkArgs(credential, spreadsheetID string) error {
	if credential == "" {
		return fmt.Errorf("%w: spreadsheet key not set", common.ErrCredentialMissing)
	}
	if spreadsheetID == "" || strings.ContainsAny(spreadsheetID, "/\\") {
		return fmt.Errorf("%w: invalid spreadsheet id %q", common.ErrInvalidInput, spreadsheetID)
	}
	return nil
}

// load returns the rows of the object, or ErrNotFound when it does not exist.
func (c *Client) load(ctx context.Context, spreadsheetID string) ([]models.SheetRow, error) {
	out, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(c.objectKey(spreadsheetID)),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("spreadsheet %s: %w", spreadsheetID, common.ErrNotFound)
		}
		c.logger.Warn().Err(err).Str("spreadsheet_id", spreadsheetID).Msg("S3 GetObject failed")
		return nil, fmt.Errorf("%w: s3 get: %v", common.ErrExternalUnavailable, err)
	}
	defer out.Body.Close()

	r := csv.NewReader(out.Body)
	r.FieldsPerRecord = -1
	var rows []models.SheetRow
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: malformed csv in %s: %v", common.ErrExternalUnavailable, spreadsheetID, err)
		}
		row := models.SheetRowFromValues(rec)
		if row.IsHeader() || row == (models.SheetRow{}) {
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) ReadRows(ctx context.Context, credential, spreadsheetID string) ([]models.SheetRow, error) {
	if err := checkArgs(credential, spreadsheetID); err != nil {
		return nil, err
	}
	rows, err := c.load(ctx, spreadsheetID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.SheetRow{}
	}
	return rows, nil
}

// WriteRow rewrites the object with row appended. A missing object is
// created with the header row.
func (c *Client) WriteRow(ctx context.Context, credential, spreadsheetID string, row models.SheetRow) error {
	if err := checkArgs(credential, spreadsheetID); err != nil {
		return err
	}
	rows, err := c.load(ctx, spreadsheetID)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return err
	}
	rows = append(rows, row)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(models.SheetHeader); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write(r.Values()); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to encode csv: %w", err)
	}

	_, err = c.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(c.objectKey(spreadsheetID)),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("spreadsheet_id", spreadsheetID).Msg("S3 PutObject failed")
		return fmt.Errorf("%w: s3 put: %v", common.ErrExternalUnavailable, err)
	}

	c.logger.Debug().Str("spreadsheet_id", spreadsheetID).Int("rows", len(rows)).Msg("Wrote spreadsheet object")
	return nil
}
