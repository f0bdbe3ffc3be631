// File: internal/secretsync/sync.go
// Brief: Push per-environment secrets to the cloud secret store.

// Package secretsync pushes the secret file's database credentials to a
// per-environment Secrets Manager secret. The running application reads this
// secret at startup; the secret file itself never leaves the operator's
// machine or the CI secret store.
package secretsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	smtypes "github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/example/envctl/internal/hydrate"
)

// API is the slice of Secrets Manager the syncer calls.
type API interface {
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
}

// Payload is the stored secret document, shaped for the application's
// database client.
type Payload struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host,omitempty"`
	Port     string `json:"port,omitempty"`
	DBName   string `json:"dbname,omitempty"`
}

// FromSecretFile builds the payload from the secret file's database section.
func FromSecretFile(sf *hydrate.SecretFile) (Payload, error) {
	db := sf.Database
	if db.MasterUsername == "" || db.MasterPassword == "" {
		return Payload{}, fmt.Errorf("secret file database section is missing master_username or master_password")
	}
	return Payload{Username: db.MasterUsername, Password: db.MasterPassword}, nil
}

// Sync creates the named secret or overwrites its current value. Both paths
// are idempotent from the caller's perspective: the secret ends up holding
// exactly the given payload.
func Sync(ctx context.Context, client API, secretName string, payload Payload) error {
	doc, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode secret payload: %w", err)
	}
	_, err = client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{SecretId: aws.String(secretName)})
	if err != nil {
		var notFound *smtypes.ResourceNotFoundException
		if !errors.As(err, &notFound) {
			return fmt.Errorf("describe secret %s: %w", secretName, err)
		}
		if _, err := client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
			Name:         aws.String(secretName),
			SecretString: aws.String(string(doc)),
		}); err != nil {
			return fmt.Errorf("create secret %s: %w", secretName, err)
		}
		return nil
	}
	if _, err := client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     aws.String(secretName),
		SecretString: aws.String(string(doc)),
	}); err != nil {
		return fmt.Errorf("put secret %s: %w", secretName, err)
	}
	return nil
}
