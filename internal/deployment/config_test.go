package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigRoundTrip(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Provider:           "hetzner",
		ProjectName:        "staging",
		HetznerToken:       "tok-123",
		HetznerLocation:    "fsn1",
		HetznerServerType:  "cx32",
		EnableFirewall:     true,
		FirewallAllowedIPs: []string{"198.51.100.7/32", "203.0.113.0/24"},
		EnableLetsEncrypt:  true,
		DomainName:         "dev.example.com",
		TLSMode:            "http01",
		DNSProvider:        "cloudflare",
		CloudflareAPIToken: "cf-token",
		Extra:              map[string]string{"custom_note": "hello"},
	}

	parsed := ParseConfig(cfg.Marshal())
	assert.Equal(t, cfg.Provider, parsed.Provider)
	assert.Equal(t, cfg.HetznerToken, parsed.HetznerToken)
	assert.Equal(t, cfg.HetznerServerType, parsed.HetznerServerType)
	assert.True(t, parsed.EnableFirewall)
	assert.Equal(t, cfg.FirewallAllowedIPs, parsed.FirewallAllowedIPs)
	assert.True(t, parsed.EnableLetsEncrypt)
	assert.Equal(t, "dev.example.com", parsed.DomainName)
	assert.Equal(t, "cf-token", parsed.CloudflareAPIToken)
	assert.Equal(t, "hello", parsed.Extra["custom_note"])
}

func TestConfigVaultProfileNeverPersistsSecrets(t *testing.T) {
	t.Parallel()
	cfg := &Config{
		Provider:          "aws",
		ProjectName:       "p",
		CredentialProfile: "aws-personal",
		AWSAccessKey:      "AKIA-resolved-in-memory",
		AWSSecretKey:      "secret-resolved-in-memory",
		AWSRegion:         "us-east-1",
		AWSInstanceType:   "t3.medium",
	}

	data := string(cfg.Marshal())
	assert.NotContains(t, data, "AKIA-resolved-in-memory")
	assert.NotContains(t, data, "secret-resolved-in-memory")
	assert.Contains(t, data, `credential_profile = "aws-personal"`)
}

func TestParseConfigToleratesCommentsAndJunk(t *testing.T) {
	t.Parallel()
	doc := `
# deployment config
provider_name = "digitalocean"
digitalocean_region = "nyc1"
this line is not a tfvars assignment
enable_firewall = false
`
	cfg := ParseConfig([]byte(doc))
	require.Equal(t, "digitalocean", cfg.Provider)
	assert.Equal(t, "nyc1", cfg.DigitalOceanRegion)
	assert.False(t, cfg.EnableFirewall)
}

func TestConfigRegionSize(t *testing.T) {
	t.Parallel()
	cfg := &Config{Provider: "digitalocean", DigitalOceanRegion: "nyc1", DigitalOceanSize: "s-2vcpu-4gb"}
	assert.Equal(t, "nyc1", cfg.Region())
	assert.Equal(t, "s-2vcpu-4gb", cfg.Size())

	cfg.SetSize("s-4vcpu-8gb")
	assert.Equal(t, "s-4vcpu-8gb", cfg.DigitalOceanSize)
}
