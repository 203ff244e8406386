// Package secrets resolves named secrets (service URLs, signing keys) once at
// startup.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// ErrNotFound is returned when a secret does not exist in the provider.
var ErrNotFound = errors.New("secret not found")

// Provider resolves a secret by name.
type Provider interface {
	Secret(ctx context.Context, name string) (string, error)
}

// Env reads secrets from environment variables.
type Env struct {
	lookup func(string) (string, bool)
}

func NewEnv() *Env {
	return &Env{lookup: os.LookupEnv}
}

func (e *Env) Secret(_ context.Context, name string) (string, error) {
	v, ok := e.lookup(name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return strings.TrimSpace(v), nil
}

// secretAccessor is the part of the Secret Manager client the provider uses.
type secretAccessor interface {
	AccessSecretVersion(ctx context.Context, req *secretmanagerpb.AccessSecretVersionRequest, opts ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error)
}

// GoogleSecretManager reads the latest version of secrets stored in a
// Google Cloud project.
type GoogleSecretManager struct {
	project string
	client  secretAccessor
	closer  func() error
}

// NewGoogleSecretManager connects to Secret Manager. Credentials are taken
// from the environment (ADC) unless credentialsFile is set.
func NewGoogleSecretManager(ctx context.Context, project, credentialsFile string) (*GoogleSecretManager, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := secretmanager.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create secret manager client: %w", err)
	}

	return &GoogleSecretManager{project: project, client: client, closer: client.Close}, nil
}

// ResourceName returns the fully qualified name of the latest version of name.
func (g *GoogleSecretManager) ResourceName(name string) string {
	if strings.HasPrefix(name, "projects/") {
		return name + "/versions/latest"
	}
	return fmt.Sprintf("projects/%s/secrets/%s/versions/latest", g.project, name)
}

func (g *GoogleSecretManager) Secret(ctx context.Context, name string) (string, error) {
	resp, err := g.client.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{
		Name: g.ResourceName(name),
	})
	if err != nil {
		return "", fmt.Errorf("access secret %s: %w", name, err)
	}
	if resp.GetPayload() == nil {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return strings.TrimSpace(string(resp.GetPayload().GetData())), nil
}

func (g *GoogleSecretManager) Close() error {
	if g.closer == nil {
		return nil
	}
	return g.closer()
}

// Chain asks each provider in turn and returns the first secret found.
type Chain []Provider

func (c Chain) Secret(ctx context.Context, name string) (string, error) {
	var errs []error
	for _, p := range c {
		v, err := p.Secret(ctx, name)
		if err == nil {
			return v, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	return "", errors.Join(errs...)
}
