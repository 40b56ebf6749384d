// Package paramstore reads storage credentials from AWS Systems Manager
// Parameter Store.
package paramstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
)

// Parameter names under the configured prefix.
const (
	userParam = "minio_user"
	passParam = "minio_pass"
)

// ssmAPI is the part of *ssm.Client used here.
type ssmAPI interface {
	GetParameter(ctx context.Context, in *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
}

// Client looks up decrypted parameters.
type Client struct {
	api ssmAPI
}

// New creates a Client.
func New(api ssmAPI) (*Client, error) {
	if api == nil {
		return nil, errors.New("paramstore: api must not be nil")
	}
	return &Client{api: api}, nil
}

// Get returns the decrypted value of parameter name.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.New("paramstore: name is required")
	}

	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("paramstore: get parameter %q: %w", name, err)
	}
	if out == nil || out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("paramstore: parameter %q has no value", name)
	}
	return *out.Parameter.Value, nil
}

// StorageCredentials reads <prefix>/minio_user and <prefix>/minio_pass.
func (c *Client) StorageCredentials(ctx context.Context, prefix string) (user, pass string, err error) {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), "/")
	if user, err = c.Get(ctx, prefix+"/"+userParam); err != nil {
		return "", "", err
	}
	if pass, err = c.Get(ctx, prefix+"/"+passParam); err != nil {
		return "", "", err
	}
	return user, pass, nil
}
