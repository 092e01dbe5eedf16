package deployment

import (
	"fmt"
	"os"
	"strings"
)

// WriteInventory regenerates the inventory artifact from the configuration
// record and the live provider outputs. It is rewritten on every
// provisioning success and is never a source of truth: hand edits are lost
// by design, since the file must always be regenerable.
func (d *Deployment) WriteInventory(address, user string) error {
	if address == "" {
		return fmt.Errorf("cannot write inventory without a server address")
	}

	var b strings.Builder
	b.WriteString("# Generated by roughneck. Do not edit: regenerated on every deploy.\n")
	b.WriteString("[roughneck]\n")
	fmt.Fprintf(&b, "%s ansible_user=%s", address, user)
	if key := d.SSHPrivateKey(); key != "" {
		fmt.Fprintf(&b, " ansible_ssh_private_key_file=%s", key)
	}
	b.WriteString("\n\n[roughneck:vars]\n")

	cfg := d.Config
	fmt.Fprintf(&b, "project_name=%s\n", cfg.ProjectName)
	fmt.Fprintf(&b, "enable_firewall=%t\n", cfg.EnableFirewall)
	fmt.Fprintf(&b, "enable_k9s=%t\n", cfg.EnableK9s)
	fmt.Fprintf(&b, "enable_autocoder=%t\n", cfg.EnableAutoCoder)
	fmt.Fprintf(&b, "enable_letsencrypt=%t\n", cfg.EnableLetsEncrypt)
	if cfg.EnableLetsEncrypt {
		fmt.Fprintf(&b, "domain_name=%s\n", cfg.DomainName)
		fmt.Fprintf(&b, "tls_mode=%s\n", cfg.TLSMode)
		fmt.Fprintf(&b, "dns_provider=%s\n", cfg.DNSProvider)
	}

	return os.WriteFile(d.InventoryPath(), []byte(b.String()), 0o600)
}
