package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/arkanlabs/riskpipe/internal/contracts"
	"github.com/arkanlabs/riskpipe/pkg/config"
	"github.com/arkanlabs/riskpipe/pkg/logger"
)

// S3Registry stores model bundles in an object-store bucket:
//
//	<prefix>/models/<version>/model.json   one bundle per version, immutable
//	<prefix>/production.json               the production pointer
//
// The pointer object is only ever written after the bundle it names is
// fully uploaded, so a crash between the two leaves the previous pointer
// intact. That single PutObject is the atomic repoint.
type S3Registry struct {
	client *s3.Client
	bucket string
	prefix string
	logger *logger.Logger
}

// NewS3Registry builds an S3-backed registry from config.
func NewS3Registry(ctx context.Context, cfg config.RegistryConfig, log *logger.Logger) (*S3Registry, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("REGISTRY_BUCKET is not set")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithRetryMaxAttempts(cfg.MaxRetries + 1),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Registry{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: log,
	}, nil
}

func (r *S3Registry) bundleKey(version string) string {
	return path.Join(r.prefix, "models", version, "model.json")
}

func (r *S3Registry) pointerKey() string {
	return path.Join(r.prefix, "production.json")
}

// Put uploads a model bundle under its version identifier.
func (r *S3Registry) Put(ctx context.Context, bundle contracts.ModelBundle) error {
	if bundle.Version == "" {
		return fmt.Errorf("bundle has no version")
	}

	data, err := json.Marshal(bundle)
	if err != nil {
		return fmt.Errorf("marshal bundle: %w", err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.bundleKey(bundle.Version)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload bundle %s: %w", bundle.Version, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"version": bundle.Version,
		"bucket":  r.bucket,
	}).Info("Model bundle uploaded")

	return nil
}

// Get retrieves a bundle by version.
func (r *S3Registry) Get(ctx context.Context, versionID string) (contracts.ModelBundle, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.bundleKey(versionID)),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return contracts.ModelBundle{}, fmt.Errorf("version %s: %w", versionID, ErrNotFound)
		}
		return contracts.ModelBundle{}, fmt.Errorf("get bundle %s: %w", versionID, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return contracts.ModelBundle{}, fmt.Errorf("read bundle %s: %w", versionID, err)
	}

	var bundle contracts.ModelBundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		return contracts.ModelBundle{}, fmt.Errorf("decode bundle %s: %w", versionID, err)
	}

	return bundle, nil
}

// GetCurrent returns the production version from the pointer object.
func (r *S3Registry) GetCurrent(ctx context.Context) (string, bool, error) {
	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(r.pointerKey()),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get production pointer: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", false, fmt.Errorf("read production pointer: %w", err)
	}

	var ptr Pointer
	if err := json.Unmarshal(data, &ptr); err != nil {
		return "", false, fmt.Errorf("decode production pointer: %w", err)
	}

	return ptr.Version, ptr.Version != "", nil
}

// SetCurrent repoints production. Single PutObject of the pointer record;
// object-store PUTs are all-or-nothing, so no reader observes a partial
// pointer.
func (r *S3Registry) SetCurrent(ctx context.Context, versionID string) error {
	// Refuse to point at a version that is not fully uploaded.
	if _, err := r.Get(ctx, versionID); err != nil {
		return fmt.Errorf("refusing to promote unreachable version %s: %w", versionID, err)
	}

	data, err := json.Marshal(Pointer{Version: versionID, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("marshal production pointer: %w", err)
	}

	_, err = r.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.bucket),
		Key:         aws.String(r.pointerKey()),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("write production pointer: %w", err)
	}

	r.logger.WithField("version", versionID).Info("Production model repointed")
	return nil
}

// ListVersions returns all uploaded version identifiers.
func (r *S3Registry) ListVersions(ctx context.Context) ([]string, error) {
	modelPrefix := path.Join(r.prefix, "models") + "/"

	var versions []string
	paginator := s3.NewListObjectsV2Paginator(r.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(r.bucket),
		Prefix:    aws.String(modelPrefix),
		Delimiter: aws.String("/"),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list versions: %w", err)
		}
		for _, cp := range page.CommonPrefixes {
			v := strings.TrimSuffix(strings.TrimPrefix(aws.ToString(cp.Prefix), modelPrefix), "/")
			if v != "" {
				versions = append(versions, v)
			}
		}
	}

	return versions, nil
}

func isNoSuchKey(err error) bool {
	var noKey *types.NoSuchKey
	if errors.As(err, &noKey) {
		return true
	}
	// HeadObject-style 404s surface as NotFound instead of NoSuchKey.
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
