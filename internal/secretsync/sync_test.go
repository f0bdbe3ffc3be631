package secretsync

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/example/envctl/internal/hydrate"
)

type fakeSM struct {
	secrets map[string]string
	creates int
	puts    int
}

func (f *fakeSM) DescribeSecret(_ context.Context, in *secretsmanager.DescribeSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error) {
	if _, ok := f.secrets[aws.ToString(in.SecretId)]; !ok {
		return nil, &smtypes.ResourceNotFoundException{Message: aws.String("not found")}
	}
	return &secretsmanager.DescribeSecretOutput{Name: in.SecretId}, nil
}

func (f *fakeSM) CreateSecret(_ context.Context, in *secretsmanager.CreateSecretInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error) {
	f.creates++
	f.secrets[aws.ToString(in.Name)] = aws.ToString(in.SecretString)
	return &secretsmanager.CreateSecretOutput{}, nil
}

func (f *fakeSM) PutSecretValue(_ context.Context, in *secretsmanager.PutSecretValueInput, _ ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error) {
	f.puts++
	f.secrets[aws.ToString(in.SecretId)] = aws.ToString(in.SecretString)
	return &secretsmanager.PutSecretValueOutput{}, nil
}

func TestSyncCreatesThenOverwrites(t *testing.T) {
	sm := &fakeSM{secrets: map[string]string{}}
	payload := Payload{Username: "rag", Password: "hunter2"}

	if err := Sync(context.Background(), sm, "ragchat-dev-db", payload); err != nil {
		t.Fatalf("first Sync: %v", err)
	}
	payload.Password = "hunter3"
	if err := Sync(context.Background(), sm, "ragchat-dev-db", payload); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	if sm.creates != 1 || sm.puts != 1 {
		t.Fatalf("creates=%d puts=%d want 1/1", sm.creates, sm.puts)
	}
	var stored Payload
	if err := json.Unmarshal([]byte(sm.secrets["ragchat-dev-db"]), &stored); err != nil {
		t.Fatalf("stored value not JSON: %v", err)
	}
	if stored.Password != "hunter3" {
		t.Fatalf("stored password %q", stored.Password)
	}
}

func TestFromSecretFileRequiresCredentials(t *testing.T) {
	_, err := FromSecretFile(&hydrate.SecretFile{})
	if err == nil {
		t.Fatalf("want error for empty database section")
	}
	p, err := FromSecretFile(&hydrate.SecretFile{Database: hydrate.DatabaseSecrets{
		MasterUsername: "rag", MasterPassword: "hunter2",
	}})
	if err != nil {
		t.Fatalf("FromSecretFile: %v", err)
	}
	if p.Username != "rag" {
		t.Fatalf("payload %+v", p)
	}
}
