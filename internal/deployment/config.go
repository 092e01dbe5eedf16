package deployment

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Config is a deployment's configuration record. It is persisted as
// terraform.tfvars so the same file doubles as the -var-file input to the
// provisioning backend.
//
// Credentials are either inline (the provider token fields) or a named
// vault profile reference (CredentialProfile) — never both resolved in the
// stored record, so a vault-backed deployment never persists plaintext
// secrets.
type Config struct {
	Provider          string // provider_name: hetzner, aws, digitalocean
	ProjectName       string
	CredentialProfile string
	SSHPublicKeyPath  string // empty means generate a key pair

	// Hetzner
	HetznerToken      string
	HetznerLocation   string
	HetznerServerType string

	// AWS
	AWSAccessKey    string
	AWSSecretKey    string
	AWSRegion       string
	AWSInstanceType string

	// DigitalOcean
	DigitalOceanToken  string
	DigitalOceanRegion string
	DigitalOceanSize   string

	// Firewall
	EnableFirewall     bool
	FirewallAllowedIPs []string

	// Optional tools
	EnableK9s       bool
	EnableAutoCoder bool

	// TLS / DNS
	EnableLetsEncrypt    bool
	DomainName           string
	TLSMode              string // http01 or dns01
	DNSProvider          string // cloudflare, route53, digitalocean, hetzner
	CloudflareAPIToken   string
	Route53AccessKey     string
	Route53SecretKey     string
	DigitalOceanDNSToken string
	HetznerDNSToken      string

	// Extra carries operator-added free-form settings so editing the file
	// by hand never loses keys the orchestrator does not know about.
	Extra map[string]string
}

// Region returns the provider-specific region/location value.
func (c *Config) Region() string {
	switch c.Provider {
	case "hetzner":
		return c.HetznerLocation
	case "aws":
		return c.AWSRegion
	case "digitalocean":
		return c.DigitalOceanRegion
	}
	return ""
}

// Size returns the provider-specific server size value.
func (c *Config) Size() string {
	switch c.Provider {
	case "hetzner":
		return c.HetznerServerType
	case "aws":
		return c.AWSInstanceType
	case "digitalocean":
		return c.DigitalOceanSize
	}
	return ""
}

// SetSize sets the provider-specific server size value.
func (c *Config) SetSize(size string) {
	switch c.Provider {
	case "hetzner":
		c.HetznerServerType = size
	case "aws":
		c.AWSInstanceType = size
	case "digitalocean":
		c.DigitalOceanSize = size
	}
}

var (
	tfvarsString = regexp.MustCompile(`^(\w+)\s*=\s*"(.*)"\s*$`)
	tfvarsBool   = regexp.MustCompile(`^(\w+)\s*=\s*(true|false)\s*$`)
	tfvarsList   = regexp.MustCompile(`^(\w+)\s*=\s*\[(.*)\]\s*$`)
	quotedItem   = regexp.MustCompile(`"([^"]*)"`)
)

// ParseConfig parses a terraform.tfvars document into a Config. Keys the
// record does not model are preserved in Extra. Malformed lines and comments
// are ignored, matching the tolerance of the provisioning backend.
func ParseConfig(data []byte) *Config {
	cfg := &Config{}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if m := tfvarsList.FindStringSubmatch(line); m != nil {
			var items []string
			for _, q := range quotedItem.FindAllStringSubmatch(m[2], -1) {
				items = append(items, q[1])
			}
			cfg.setList(m[1], items)
			continue
		}
		if m := tfvarsString.FindStringSubmatch(line); m != nil {
			cfg.set(m[1], m[2])
			continue
		}
		if m := tfvarsBool.FindStringSubmatch(line); m != nil {
			cfg.set(m[1], m[2])
		}
	}
	return cfg
}

func (c *Config) setList(key string, items []string) {
	if key == "firewall_allowed_ips" {
		c.FirewallAllowedIPs = items
		return
	}
	if c.Extra == nil {
		c.Extra = map[string]string{}
	}
	c.Extra[key] = `[` + strings.Join(items, ",") + `]`
}

func (c *Config) set(key, value string) {
	switch key {
	case "provider_name":
		c.Provider = value
	case "project_name":
		c.ProjectName = value
	case "credential_profile":
		c.CredentialProfile = value
	case "ssh_public_key_path":
		c.SSHPublicKeyPath = value
	case "hetzner_token":
		c.HetznerToken = value
	case "hetzner_location":
		c.HetznerLocation = value
	case "hetzner_server_type":
		c.HetznerServerType = value
	case "aws_access_key":
		c.AWSAccessKey = value
	case "aws_secret_key":
		c.AWSSecretKey = value
	case "aws_region":
		c.AWSRegion = value
	case "aws_instance_type":
		c.AWSInstanceType = value
	case "digitalocean_token":
		c.DigitalOceanToken = value
	case "digitalocean_region":
		c.DigitalOceanRegion = value
	case "digitalocean_size":
		c.DigitalOceanSize = value
	case "enable_firewall":
		c.EnableFirewall = value == "true"
	case "enable_k9s":
		c.EnableK9s = value == "true"
	case "enable_autocoder":
		c.EnableAutoCoder = value == "true"
	case "enable_letsencrypt":
		c.EnableLetsEncrypt = value == "true"
	case "domain_name":
		c.DomainName = value
	case "tls_mode":
		c.TLSMode = value
	case "dns_provider":
		c.DNSProvider = value
	case "cloudflare_api_token":
		c.CloudflareAPIToken = value
	case "route53_access_key":
		c.Route53AccessKey = value
	case "route53_secret_key":
		c.Route53SecretKey = value
	case "digitalocean_dns_token":
		c.DigitalOceanDNSToken = value
	case "hetzner_dns_token":
		c.HetznerDNSToken = value
	default:
		if c.Extra == nil {
			c.Extra = map[string]string{}
		}
		c.Extra[key] = value
	}
}

// Marshal renders the record as a terraform.tfvars document. Strings are
// quoted, booleans bare, lists of strings bracketed — the three forms the
// provisioning templates declare.
func (c *Config) Marshal() []byte {
	var b strings.Builder
	str := func(key, value string) {
		fmt.Fprintf(&b, "%s = %q\n", key, value)
	}
	flag := func(key string, value bool) {
		fmt.Fprintf(&b, "%s = %t\n", key, value)
	}

	str("provider_name", c.Provider)
	str("project_name", c.ProjectName)
	if c.CredentialProfile != "" {
		str("credential_profile", c.CredentialProfile)
	}
	str("ssh_public_key_path", c.SSHPublicKeyPath)

	switch c.Provider {
	case "hetzner":
		if c.CredentialProfile == "" {
			str("hetzner_token", c.HetznerToken)
		}
		str("hetzner_location", c.HetznerLocation)
		str("hetzner_server_type", c.HetznerServerType)
	case "aws":
		if c.CredentialProfile == "" {
			str("aws_access_key", c.AWSAccessKey)
			str("aws_secret_key", c.AWSSecretKey)
		}
		str("aws_region", c.AWSRegion)
		str("aws_instance_type", c.AWSInstanceType)
	case "digitalocean":
		if c.CredentialProfile == "" {
			str("digitalocean_token", c.DigitalOceanToken)
		}
		str("digitalocean_region", c.DigitalOceanRegion)
		str("digitalocean_size", c.DigitalOceanSize)
	}

	flag("enable_firewall", c.EnableFirewall)
	if len(c.FirewallAllowedIPs) > 0 {
		quoted := make([]string, len(c.FirewallAllowedIPs))
		for i, ip := range c.FirewallAllowedIPs {
			quoted[i] = fmt.Sprintf("%q", ip)
		}
		fmt.Fprintf(&b, "firewall_allowed_ips = [%s]\n", strings.Join(quoted, ", "))
	}

	flag("enable_k9s", c.EnableK9s)
	flag("enable_autocoder", c.EnableAutoCoder)

	flag("enable_letsencrypt", c.EnableLetsEncrypt)
	if c.EnableLetsEncrypt {
		str("domain_name", c.DomainName)
		str("tls_mode", c.TLSMode)
		str("dns_provider", c.DNSProvider)
		switch c.DNSProvider {
		case "cloudflare":
			str("cloudflare_api_token", c.CloudflareAPIToken)
		case "route53":
			str("route53_access_key", c.Route53AccessKey)
			str("route53_secret_key", c.Route53SecretKey)
		case "digitalocean":
			str("digitalocean_dns_token", c.DigitalOceanDNSToken)
		case "hetzner":
			str("hetzner_dns_token", c.HetznerDNSToken)
		}
	}

	if len(c.Extra) > 0 {
		keys := make([]string, 0, len(c.Extra))
		for k := range c.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			v := c.Extra[k]
			if v == "true" || v == "false" || strings.HasPrefix(v, "[") {
				fmt.Fprintf(&b, "%s = %s\n", k, v)
			} else {
				str(k, v)
			}
		}
	}

	return []byte(b.String())
}
