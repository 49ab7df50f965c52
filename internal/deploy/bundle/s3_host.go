package bundle

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/GoSim-25-26J-441/toolsmith-backend/config"
)

// S3API is the subset of *s3.Client the host uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, opts ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	DeleteObjects(ctx context.Context, in *s3.DeleteObjectsInput, opts ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, opts ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Host writes releases under {prefix}{slug}/releases/{id}/ and serves
// whichever release id the {prefix}{slug}/current object names. A single
// PUT of that object is the swap.
type S3Host struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Client loads the default AWS credential chain for the deploy config.
func NewS3Client(ctx context.Context, cfg *config.DeployConfig) (*s3.Client, error) {
	opts := []func(*awscfg.LoadOptions) error{}
	if cfg.S3Region != "" {
		opts = append(opts, awscfg.WithRegion(cfg.S3Region))
	}
	awsConf, err := awscfg.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("aws config load: %w", err)
	}
	return s3.NewFromConfig(awsConf, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func NewS3Host(client S3API, bucket, prefix string) *S3Host {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &S3Host{client: client, bucket: bucket, prefix: prefix}
}

func (h *S3Host) slugPrefix(slug string) string { return h.prefix + slug + "/" }

func (h *S3Host) releasePrefix(slug, id string) string {
	return h.slugPrefix(slug) + releasesDir + "/" + id + "/"
}

func (h *S3Host) pointerKey(slug string) string { return h.slugPrefix(slug) + currentLink }

func (h *S3Host) Location(slug string) string {
	return "s3://" + h.bucket + "/" + h.slugPrefix(slug)
}

func (h *S3Host) Stage(ctx context.Context, slug string, files Files) (Release, error) {
	rel := Release{Slug: slug, ID: newReleaseID()}
	base := h.releasePrefix(slug, rel.ID)
	for name, data := range files {
		ctype := mime.TypeByExtension(path.Ext(name))
		if ctype == "" {
			ctype = "application/octet-stream"
		}
		_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(h.bucket),
			Key:         aws.String(base + name),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(ctype),
		})
		if err != nil {
			_ = h.deletePrefix(ctx, base)
			return Release{}, fmt.Errorf("failed to upload %s: %w", name, err)
		}
	}
	return rel, nil
}

func (h *S3Host) current(ctx context.Context, slug string) (string, error) {
	out, err := h.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.bucket),
		Key:    aws.String(h.pointerKey(slug)),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read current release: %w", err)
	}
	defer out.Body.Close()
	b, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read current release: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func (h *S3Host) point(ctx context.Context, slug, id string) error {
	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(h.bucket),
		Key:          aws.String(h.pointerKey(slug)),
		Body:         strings.NewReader(id),
		ContentType:  aws.String("text/plain"),
		CacheControl: aws.String("no-cache"),
	})
	if err != nil {
		return fmt.Errorf("failed to swap current release: %w", err)
	}
	return nil
}

func (h *S3Host) Commit(ctx context.Context, rel Release) (string, error) {
	prev, err := h.current(ctx, rel.Slug)
	if err != nil {
		return "", err
	}
	return prev, h.point(ctx, rel.Slug, rel.ID)
}

func (h *S3Host) Restore(ctx context.Context, slug, previous string) error {
	if previous == "" {
		return h.deleteKeys(ctx, []string{h.pointerKey(slug)})
	}
	return h.point(ctx, slug, previous)
}

func (h *S3Host) Discard(ctx context.Context, rel Release) error {
	return h.deletePrefix(ctx, h.releasePrefix(rel.Slug, rel.ID))
}

func (h *S3Host) Prune(ctx context.Context, slug string) error {
	cur, err := h.current(ctx, slug)
	if err != nil {
		return err
	}
	if cur == "" {
		return nil
	}
	base := h.slugPrefix(slug) + releasesDir + "/"
	keys, err := h.listKeys(ctx, base)
	if err != nil {
		return err
	}
	var stale []string
	for _, k := range keys {
		id, _, _ := strings.Cut(strings.TrimPrefix(k, base), "/")
		if id < cur {
			stale = append(stale, k)
		}
	}
	return h.deleteKeys(ctx, stale)
}

func (h *S3Host) Remove(ctx context.Context, slug string) error {
	return h.deletePrefix(ctx, h.slugPrefix(slug))
}

func (h *S3Host) List(ctx context.Context) ([]Listing, error) {
	seen := map[string]*Listing{}
	p := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(h.bucket),
		Prefix: aws.String(h.prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list bundles: %w", err)
		}
		for _, obj := range page.Contents {
			slug, _, ok := strings.Cut(strings.TrimPrefix(aws.ToString(obj.Key), h.prefix), "/")
			if !ok || slug == "" {
				continue
			}
			l, found := seen[slug]
			if !found {
				l = &Listing{Slug: slug}
				seen[slug] = l
			}
			if obj.LastModified != nil && obj.LastModified.After(l.UpdatedAt) {
				l.UpdatedAt = *obj.LastModified
			}
		}
	}
	out := make([]Listing, 0, len(seen))
	for _, l := range seen {
		out = append(out, *l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (h *S3Host) listKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(h.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (h *S3Host) deletePrefix(ctx context.Context, prefix string) error {
	keys, err := h.listKeys(ctx, prefix)
	if err != nil {
		return err
	}
	return h.deleteKeys(ctx, keys)
}

// deleteKeys batches by the 1000-key DeleteObjects limit.
func (h *S3Host) deleteKeys(ctx context.Context, keys []string) error {
	for start := 0; start < len(keys); start += 1000 {
		end := min(start+1000, len(keys))
		ids := make([]s3types.ObjectIdentifier, 0, end-start)
		for _, k := range keys[start:end] {
			ids = append(ids, s3types.ObjectIdentifier{Key: aws.String(k)})
		}
		out, err := h.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(h.bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("failed to delete objects: %w", err)
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
	}
	return nil
}
