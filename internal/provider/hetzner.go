package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/util/retry"
)

func init() {
	register(&hetznerAdapter{})
}

// hetznerCatalogClient is the slice of the Hetzner API the adapter needs.
type hetznerCatalogClient interface {
	Locations(ctx context.Context) ([]*hcloud.Location, error)
	ServerTypes(ctx context.Context) ([]*hcloud.ServerType, error)
}

type hcloudCatalog struct {
	client *hcloud.Client
}

func (c *hcloudCatalog) Locations(ctx context.Context) ([]*hcloud.Location, error) {
	return c.client.Location.All(ctx)
}

func (c *hcloudCatalog) ServerTypes(ctx context.Context) ([]*hcloud.ServerType, error) {
	return c.client.ServerType.All(ctx)
}

// newHetznerCatalog is swapped in tests.
var newHetznerCatalog = func(token string) hetznerCatalogClient {
	return &hcloudCatalog{client: hcloud.NewClient(hcloud.WithToken(token))}
}

var hetznerCapacityRe = regexp.MustCompile(`Server Type "([^"]+)" is unavailable in "([^"]+)"`)

type hetznerAdapter struct{}

func (a *hetznerAdapter) Kind() string        { return "hetzner" }
func (a *hetznerAdapter) DisplayName() string { return "Hetzner Cloud" }
func (a *hetznerAdapter) DefaultUser() string { return "root" }

func (a *hetznerAdapter) CredentialEnv(cfg *deployment.Config) map[string]string {
	if cfg.HetznerToken == "" {
		return nil
	}
	return map[string]string{"HCLOUD_TOKEN": cfg.HetznerToken}
}

func (a *hetznerAdapter) BuildServerSpec(cfg *deployment.Config) []Var {
	return []Var{
		{Key: "hetzner_location", Value: cfg.HetznerLocation},
		{Key: "hetzner_server_type", Value: cfg.HetznerServerType},
	}
}

func (a *hetznerAdapter) MissingFields(cfg *deployment.Config) []string {
	var missing []string
	if cfg.HetznerToken == "" && cfg.CredentialProfile == "" {
		missing = append(missing, "hetzner_token")
	}
	return append(missing, missingKeys(a.BuildServerSpec(cfg))...)
}

func (a *hetznerAdapter) NormalizeOutputs(raw map[string]string) (Outputs, error) {
	out := Outputs{Address: raw["server_ip"], InstanceID: raw["instance_id"]}
	if out.Address == "" {
		return Outputs{}, fmt.Errorf("provisioning reported success but produced no server address")
	}
	return out, nil
}

func (a *hetznerAdapter) Catalog(ctx context.Context, cfg *deployment.Config) (*Catalog, error) {
	client := newHetznerCatalog(cfg.HetznerToken)

	var locations []*hcloud.Location
	var types []*hcloud.ServerType
	err := retry.WithExponentialBackoff(ctx, func() error {
		var err error
		if locations, err = client.Locations(ctx); err != nil {
			return err
		}
		types, err = client.ServerTypes(ctx)
		return err
	}, retry.WithMaxRetries(2))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch hetzner catalog: %w", err)
	}

	catalog := &Catalog{}

	// EU locations first, then US, then the rest.
	rank := func(country string) int {
		switch country {
		case "DE", "FI":
			return 0
		case "US":
			return 1
		}
		return 2
	}
	for _, group := range []int{0, 1, 2} {
		for _, loc := range locations {
			if rank(loc.Country) != group {
				continue
			}
			catalog.Locations = append(catalog.Locations, CatalogEntry{
				ID:    loc.Name,
				Label: fmt.Sprintf("%s, %s (%s)", loc.City, loc.Country, loc.Name),
			})
		}
	}

	for _, st := range types {
		if st.IsDeprecated() {
			continue
		}
		price, available := hetznerMonthlyPrice(st, cfg.HetznerLocation)
		if cfg.HetznerLocation != "" && !available {
			continue
		}
		label := fmt.Sprintf("%s - %d vCPU, %.0fGB RAM", strings.ToUpper(st.Name), st.Cores, st.Memory)
		if price != "" {
			label += fmt.Sprintf(" [%s/mo]", price)
		}
		catalog.Sizes = append(catalog.Sizes, CatalogEntry{ID: st.Name, Label: label})
	}

	return catalog, nil
}

// hetznerMonthlyPrice returns the gross monthly price for the location, or
// the first listed price when no location is set. The second return reports
// whether the type is offered in the location at all.
func hetznerMonthlyPrice(st *hcloud.ServerType, location string) (string, bool) {
	for _, pricing := range st.Pricings {
		if location == "" || (pricing.Location != nil && pricing.Location.Name == location) {
			return "€" + pricing.Monthly.Gross, true
		}
	}
	return "", false
}

func (a *hetznerAdapter) MatchCapacityError(output string) (string, string, bool) {
	m := hetznerCapacityRe.FindStringSubmatch(output)
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}
