// File: internal/awsauth/process.go
// Brief: credential_process output contract.

package awsauth

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// processOutput is the canonical ephemeral-credential JSON consumed by the
// generic credential_process hook. The object must be a single line on
// stdout; diagnostics go to stderr.
type processOutput struct {
	Version         int    `json:"Version"`
	AccessKeyID     string `json:"AccessKeyId,omitempty"`
	SecretAccessKey string `json:"SecretAccessKey,omitempty"`
	SessionToken    string `json:"SessionToken,omitempty"`
	Expiration      string `json:"Expiration,omitempty"`
	Error           string `json:"Error,omitempty"`
}

// WriteProcess emits a grant in credential_process form.
func WriteProcess(w io.Writer, grant *Grant) error {
	out := processOutput{
		Version:         1,
		AccessKeyID:     grant.AccessKeyID,
		SecretAccessKey: grant.SecretAccessKey,
		SessionToken:    grant.SessionToken,
	}
	if !grant.Expiry.IsZero() {
		out.Expiration = grant.Expiry.UTC().Format(time.RFC3339)
	}
	return writeLine(w, out)
}

// WriteProcessError emits a failure in credential_process form so the
// consuming client surfaces the message instead of a parse error.
func WriteProcessError(w io.Writer, err error) error {
	return writeLine(w, processOutput{Version: 1, Error: err.Error()})
}

func writeLine(w io.Writer, out processOutput) error {
	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
