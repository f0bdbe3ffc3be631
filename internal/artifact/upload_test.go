package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string]string // bucket/key -> body
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)] = string(body)
	return &s3.PutObjectOutput{}, nil
}

func TestUploadSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bundle.zip")
	if err := os.WriteFile(path, []byte("zipbytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeS3{objects: map[string]string{}}
	u := &Uploader{Client: fake}

	keys, err := u.Upload(context.Background(), "s3://artifacts/releases/bundle.zip", path)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(keys) != 1 || keys[0] != "releases/bundle.zip" {
		t.Fatalf("keys %v", keys)
	}
	if fake.objects["artifacts/releases/bundle.zip"] != "zipbytes" {
		t.Fatalf("object missing or wrong body")
	}
}

func TestUploadDirectoryKeepsStructure(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"app.zip", "prompts/system.txt"} {
		p := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(rel), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	fake := &fakeS3{objects: map[string]string{}}
	u := &Uploader{Client: fake}

	keys, err := u.Upload(context.Background(), "s3://artifacts/releases/v2", dir)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	sort.Strings(keys)
	want := []string{"releases/v2/app.zip", "releases/v2/prompts/system.txt"}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys %v want %v", keys, want)
	}
}

func TestUploadRejectsBadDestination(t *testing.T) {
	u := &Uploader{Client: &fakeS3{objects: map[string]string{}}}
	if _, err := u.Upload(context.Background(), "https://whoops", "/tmp/x"); err == nil {
		t.Fatalf("want error for non-s3 destination")
	}
}
