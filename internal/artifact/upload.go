// File: internal/artifact/upload.go
// Brief: Application artifact upload to S3.

// Package artifact uploads built application artifacts (function bundles,
// prompt configs) to the environment's artifact bucket before the app stacks
// deploy and reference them.
package artifact

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/example/envctl/internal/config"
)

// Putter is the slice of S3 the uploader calls.
type Putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies local files or directories to s3:// destinations.
type Uploader struct {
	Client Putter
	Log    *zap.Logger
}

// Upload sends localPath to dest. A file uploads to the exact key (or under
// the prefix when dest ends in '/'); a directory uploads recursively keeping
// relative structure. Returns the uploaded keys.
func (u *Uploader) Upload(ctx context.Context, dest, localPath string) ([]string, error) {
	log := u.Log
	if log == nil {
		log = zap.NewNop()
	}
	bucket, prefix, err := config.SplitS3URL(dest)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", localPath, err)
	}
	var uploads [][2]string // local path, key
	if info.IsDir() {
		if !strings.HasSuffix(prefix, "/") {
			prefix += "/"
		}
		err := filepath.WalkDir(localPath, func(p string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(localPath, p)
			if err != nil {
				return err
			}
			uploads = append(uploads, [2]string{p, prefix + filepath.ToSlash(rel)})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %s: %w", localPath, err)
		}
	} else {
		key := prefix
		if strings.HasSuffix(dest, "/") {
			key = prefix + "/" + filepath.Base(localPath)
			key = strings.ReplaceAll(key, "//", "/")
		}
		uploads = append(uploads, [2]string{localPath, key})
	}
	if len(uploads) == 0 {
		log.Warn("nothing to upload", zap.String("path", localPath))
		return nil, nil
	}
	keys := make([]string, 0, len(uploads))
	for _, up := range uploads {
		f, err := os.Open(up[0])
		if err != nil {
			return keys, fmt.Errorf("open %s: %w", up[0], err)
		}
		_, err = u.Client.PutObject(ctx, &s3.PutObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(up[1]),
			Body:   f,
		})
		_ = f.Close()
		if err != nil {
			return keys, fmt.Errorf("upload s3://%s/%s: %w", bucket, up[1], err)
		}
		log.Info("uploaded artifact", zap.String("from", up[0]), zap.String("to", "s3://"+bucket+"/"+up[1]))
		keys = append(keys, up[1])
	}
	return keys, nil
}
