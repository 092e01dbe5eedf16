package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mjtechguy/roughneck/internal/deployment"
)

// fakeAge reroutes the age subprocesses to an in-process base64 transform,
// so the blob on disk is never the plaintext but tests need no age install.
func fakeAge(t *testing.T) *Vault {
	t.Helper()

	origLook, origRun := lookPath, runCommand
	t.Cleanup(func() { lookPath, runCommand = origLook, origRun })

	lookPath = func(name string) (string, error) {
		switch name {
		case "age", "age-keygen":
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	runCommand = func(cmd *exec.Cmd) error {
		input, err := io.ReadAll(cmd.Stdin)
		if err != nil {
			return err
		}
		decrypting := false
		for _, arg := range cmd.Args {
			if arg == "-d" {
				decrypting = true
			}
		}
		if decrypting {
			plain, err := base64.StdEncoding.DecodeString(string(input))
			if err != nil {
				return err
			}
			_, err = cmd.Stdout.Write(plain)
			return err
		}
		_, err = io.WriteString(cmd.Stdout, base64.StdEncoding.EncodeToString(input))
		return err
	}

	root := t.TempDir()
	identity := filepath.Join(root, "key.txt")
	content := "# created: 2025-01-01\n# public key: age1testpublickey\nAGE-SECRET-KEY-TEST\n"
	require.NoError(t, os.WriteFile(identity, []byte(content), 0o600))

	return &Vault{Root: root, IdentityPath: identity}
}

func TestVault_PutGetList(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{
		Name:     "hetzner-personal",
		Provider: "hetzner",
		Data:     map[string]string{"hetzner_token": "tok-123"},
	}))
	require.NoError(t, v.Put(ctx, Profile{
		Name:     "aws-work",
		Provider: "aws",
		Data:     map[string]string{"aws_access_key": "AKIA", "aws_secret_key": "secret"},
	}))

	profiles, err := v.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "aws-work", profiles[0].Name)
	assert.Equal(t, "hetzner-personal", profiles[1].Name)

	p, err := v.Get(ctx, "hetzner-personal")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", p.Data["hetzner_token"])

	_, err = v.Get(ctx, "missing")
	require.Error(t, err)
}

func TestVault_BlobIsNotPlaintext(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{
		Name:     "hetzner-personal",
		Provider: "hetzner",
		Data:     map[string]string{"hetzner_token": "super-secret-token"},
	}))

	blob, err := os.ReadFile(filepath.Join(v.Root, "credentials.age"))
	require.NoError(t, err)
	assert.NotContains(t, string(blob), "super-secret-token")
}

func TestVault_PutReplacesByName(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{Name: "work", Provider: "hetzner", Data: map[string]string{"hetzner_token": "old"}}))
	require.NoError(t, v.Put(ctx, Profile{Name: "work", Provider: "hetzner", Data: map[string]string{"hetzner_token": "new"}}))

	profiles, err := v.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "new", profiles[0].Data["hetzner_token"])
}

func TestVault_Remove(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{Name: "work", Provider: "hetzner"}))
	require.NoError(t, v.Remove(ctx, "work"))

	profiles, err := v.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	err = v.Remove(ctx, "work")
	require.Error(t, err)
}

func TestVault_ListForProvider(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{Name: "h1", Provider: "hetzner"}))
	require.NoError(t, v.Put(ctx, Profile{Name: "a1", Provider: "aws"}))

	profiles, err := v.ListForProvider(ctx, "hetzner")
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "h1", profiles[0].Name)
}

func TestVault_EmptyWithoutBlob(t *testing.T) {
	v := fakeAge(t)
	profiles, err := v.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestVault_Resolve(t *testing.T) {
	v := fakeAge(t)
	ctx := context.Background()

	require.NoError(t, v.Put(ctx, Profile{
		Name:     "work",
		Provider: "hetzner",
		Data:     map[string]string{"hetzner_token": "tok-123"},
	}))

	cfg := &deployment.Config{Provider: "hetzner", CredentialProfile: "work"}
	require.NoError(t, v.Resolve(ctx, cfg))
	assert.Equal(t, "tok-123", cfg.HetznerToken)

	// No profile reference means nothing to do.
	plain := &deployment.Config{Provider: "hetzner", HetznerToken: "inline"}
	require.NoError(t, v.Resolve(ctx, plain))
	assert.Equal(t, "inline", plain.HetznerToken)
}

func TestVault_Unavailable(t *testing.T) {
	origLook := lookPath
	t.Cleanup(func() { lookPath = origLook })
	lookPath = func(string) (string, error) { return "", errors.New("not found") }

	v := &Vault{Root: t.TempDir(), IdentityPath: filepath.Join(t.TempDir(), "key.txt")}
	assert.False(t, v.Available())

	err := v.Put(context.Background(), Profile{Name: "work", Provider: "hetzner"})
	require.ErrorIs(t, err, deployment.ErrVaultUnavailable)
}

func TestVault_Available(t *testing.T) {
	origLook := lookPath
	t.Cleanup(func() { lookPath = origLook })
	lookPath = func(name string) (string, error) { return "/usr/bin/" + name, nil }

	assert.True(t, New(t.TempDir()).Available())
}
