// Package wizard builds a deployment configuration interactively: provider,
// credentials, location and size from the live catalog, SSH key, firewall,
// optional tooling, and TLS. Each step is a separate huh form so a long
// catalog fetch sits between prompts, not inside one.
package wizard

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/provider"
	"github.com/mjtechguy/roughneck/internal/ui"
	"github.com/mjtechguy/roughneck/internal/vault"
)

// Run fills cfg by prompting the operator. The vault is consulted for
// stored credential profiles when available; otherwise credentials are
// entered inline.
func Run(ctx context.Context, cfg *deployment.Config, v *vault.Vault) error {
	if err := runProviderGroup(ctx, cfg); err != nil {
		return err
	}
	if err := runCredentialsGroup(ctx, cfg, v); err != nil {
		return err
	}

	adapter, err := provider.Get(cfg.Provider)
	if err != nil {
		return err
	}

	// Resolve a chosen profile in memory so the catalog fetch can
	// authenticate; the stored record keeps only the reference.
	if cfg.CredentialProfile != "" {
		if err := v.Resolve(ctx, cfg); err != nil {
			return err
		}
	}

	if err := runCapacityGroup(ctx, cfg, adapter); err != nil {
		return err
	}
	if err := runSSHKeyGroup(ctx, cfg); err != nil {
		return err
	}
	if err := runFirewallGroup(ctx, cfg); err != nil {
		return err
	}
	if err := runToolsGroup(ctx, cfg); err != nil {
		return err
	}
	return runTLSGroup(ctx, cfg)
}

func runProviderGroup(ctx context.Context, cfg *deployment.Config) error {
	options := make([]huh.Option[string], 0, len(provider.Kinds()))
	for _, kind := range provider.Kinds() {
		adapter, err := provider.Get(kind)
		if err != nil {
			return err
		}
		options = append(options, huh.NewOption(adapter.DisplayName(), kind))
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Cloud Provider").
				Options(options...).
				Value(&cfg.Provider),
		).Title("Provider"),
	).RunWithContext(ctx)
}

func runCredentialsGroup(ctx context.Context, cfg *deployment.Config, v *vault.Vault) error {
	if v != nil && v.Available() {
		profiles, err := v.ListForProvider(ctx, cfg.Provider)
		if err != nil {
			return err
		}
		if len(profiles) > 0 {
			const manual = "__manual__"
			options := make([]huh.Option[string], 0, len(profiles)+1)
			for _, p := range profiles {
				options = append(options, huh.NewOption(p.Name, p.Name))
			}
			options = append(options, huh.NewOption("Enter credentials manually", manual))

			var chosen string
			err := huh.NewForm(
				huh.NewGroup(
					huh.NewSelect[string]().
						Title("Credential Profile").
						Options(options...).
						Value(&chosen),
				).Title("Credentials"),
			).RunWithContext(ctx)
			if err != nil {
				return err
			}
			if chosen != manual {
				cfg.CredentialProfile = chosen
				return nil
			}
		}
	}
	return promptInlineCredentials(ctx, cfg)
}

func promptInlineCredentials(ctx context.Context, cfg *deployment.Config) error {
	switch cfg.Provider {
	case "hetzner":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Hetzner API Token").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.HetznerToken).
					Validate(required("token")),
			).Title("Credentials"),
		).RunWithContext(ctx)
	case "aws":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("AWS Access Key ID").
					Value(&cfg.AWSAccessKey).
					Validate(required("access key")),
				huh.NewInput().
					Title("AWS Secret Access Key").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.AWSSecretKey).
					Validate(required("secret key")),
			).Title("Credentials"),
		).RunWithContext(ctx)
	case "digitalocean":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("DigitalOcean API Token").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.DigitalOceanToken).
					Validate(required("token")),
			).Title("Credentials"),
		).RunWithContext(ctx)
	}
	return fmt.Errorf("unknown provider: %q", cfg.Provider)
}

func runCapacityGroup(ctx context.Context, cfg *deployment.Config, adapter provider.Adapter) error {
	ui.Info("Fetching available locations and sizes from %s...", adapter.DisplayName())
	catalog, err := adapter.Catalog(ctx, cfg)
	if err != nil {
		return err
	}

	var location string
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Location").
				Options(entryOptions(catalog.Locations)...).
				Value(&location),
		).Title("Capacity"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	setRegion(cfg, location)

	// Refetch so sizes reflect availability in the chosen location.
	catalog, err = adapter.Catalog(ctx, cfg)
	if err != nil {
		return err
	}
	var size string
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Server Size").
				Options(entryOptions(catalog.Sizes)...).
				Value(&size),
		).Title("Capacity"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	cfg.SetSize(size)
	return nil
}

func runSSHKeyGroup(ctx context.Context, cfg *deployment.Config) error {
	const generate = "__generate__"
	var choice string
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("SSH Key").
				Options(
					huh.NewOption("Generate a key pair for this deployment", generate),
					huh.NewOption("Use an existing public key", "existing"),
				).
				Value(&choice),
		).Title("SSH Access"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if choice == generate {
		cfg.SSHPublicKeyPath = ""
		return nil
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Public Key Path").
				Placeholder("~/.ssh/id_ed25519.pub").
				Value(&cfg.SSHPublicKeyPath).
				Validate(validatePublicKeyPath),
		).Title("SSH Access"),
	).RunWithContext(ctx)
}

func runFirewallGroup(ctx context.Context, cfg *deployment.Config) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Restrict SSH access to specific IPs?").
				Value(&cfg.EnableFirewall),
		).Title("Firewall"),
	).RunWithContext(ctx)
	if err != nil || !cfg.EnableFirewall {
		return err
	}

	var ips string
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Allowed IPs / CIDRs").
				Description("Comma-separated, e.g. 198.51.100.4/32").
				Value(&ips).
				Validate(ValidateCIDRList),
		).Title("Firewall"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	cfg.FirewallAllowedIPs = SplitCIDRList(ips)
	return nil
}

func runToolsGroup(ctx context.Context, cfg *deployment.Config) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Install k9s?").
				Value(&cfg.EnableK9s),
			huh.NewConfirm().
				Title("Install autocoder?").
				Value(&cfg.EnableAutoCoder),
		).Title("Optional Tools"),
	).RunWithContext(ctx)
}

func runTLSGroup(ctx context.Context, cfg *deployment.Config) error {
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Set up a domain with Let's Encrypt TLS?").
				Value(&cfg.EnableLetsEncrypt),
		).Title("TLS"),
	).RunWithContext(ctx)
	if err != nil || !cfg.EnableLetsEncrypt {
		return err
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Domain Name").
				Placeholder("dev.example.com").
				Value(&cfg.DomainName).
				Validate(ValidateDomain),
			huh.NewSelect[string]().
				Title("Challenge Mode").
				Options(
					huh.NewOption("HTTP-01 (port 80 must be open)", "http01"),
					huh.NewOption("DNS-01 (needs DNS provider credentials)", "dns01"),
				).
				Value(&cfg.TLSMode),
		).Title("TLS"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	if cfg.TLSMode != "dns01" {
		return nil
	}

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("DNS Provider").
				Options(
					huh.NewOption("Cloudflare", "cloudflare"),
					huh.NewOption("Route 53", "route53"),
					huh.NewOption("DigitalOcean", "digitalocean"),
					huh.NewOption("Hetzner DNS", "hetzner"),
				).
				Value(&cfg.DNSProvider),
		).Title("TLS"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}
	return promptDNSCredentials(ctx, cfg)
}

func promptDNSCredentials(ctx context.Context, cfg *deployment.Config) error {
	switch cfg.DNSProvider {
	case "cloudflare":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Cloudflare API Token").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.CloudflareAPIToken).
					Validate(required("token")),
			).Title("DNS Credentials"),
		).RunWithContext(ctx)
	case "route53":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Route 53 Access Key").
					Value(&cfg.Route53AccessKey).
					Validate(required("access key")),
				huh.NewInput().
					Title("Route 53 Secret Key").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.Route53SecretKey).
					Validate(required("secret key")),
			).Title("DNS Credentials"),
		).RunWithContext(ctx)
	case "digitalocean":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("DigitalOcean DNS Token").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.DigitalOceanDNSToken).
					Validate(required("token")),
			).Title("DNS Credentials"),
		).RunWithContext(ctx)
	case "hetzner":
		return huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Hetzner DNS Token").
					EchoMode(huh.EchoModePassword).
					Value(&cfg.HetznerDNSToken).
					Validate(required("token")),
			).Title("DNS Credentials"),
		).RunWithContext(ctx)
	}
	return fmt.Errorf("unknown DNS provider: %q", cfg.DNSProvider)
}

func entryOptions(entries []provider.CatalogEntry) []huh.Option[string] {
	options := make([]huh.Option[string], len(entries))
	for i, e := range entries {
		options[i] = huh.NewOption(e.Label, e.ID)
	}
	return options
}

func setRegion(cfg *deployment.Config, region string) {
	switch cfg.Provider {
	case "hetzner":
		cfg.HetznerLocation = region
	case "aws":
		cfg.AWSRegion = region
	case "digitalocean":
		cfg.DigitalOceanRegion = region
	}
}

func required(what string) func(string) error {
	return func(value string) error {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

// ValidateDomain accepts hostnames with at least two labels.
func ValidateDomain(domain string) error {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return fmt.Errorf("domain is required")
	}
	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return fmt.Errorf("domain must contain at least one dot")
	}
	for _, label := range labels {
		if label == "" {
			return fmt.Errorf("domain has an empty label")
		}
	}
	return nil
}

// ValidateCIDRList accepts a comma-separated list of IPs or CIDR blocks.
func ValidateCIDRList(list string) error {
	items := SplitCIDRList(list)
	if len(items) == 0 {
		return fmt.Errorf("at least one IP or CIDR is required")
	}
	for _, item := range items {
		if _, _, err := net.ParseCIDR(item); err == nil {
			continue
		}
		if net.ParseIP(item) != nil {
			continue
		}
		return fmt.Errorf("%q is not an IP or CIDR", item)
	}
	return nil
}

// SplitCIDRList splits a comma-separated list, trimming whitespace and
// dropping empties. Bare IPs get a host-mask suffix so the provisioning
// templates always see CIDR notation.
func SplitCIDRList(list string) []string {
	var out []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if !strings.Contains(item, "/") && net.ParseIP(item) != nil {
			if strings.Contains(item, ":") {
				item += "/128"
			} else {
				item += "/32"
			}
		}
		out = append(out, item)
	}
	return out
}

func validatePublicKeyPath(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("path is required")
	}
	expanded := path
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			expanded = home + path[1:]
		}
	}
	if _, err := os.Stat(expanded); err != nil {
		return fmt.Errorf("cannot read %s", path)
	}
	return nil
}
