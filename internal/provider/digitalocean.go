package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/digitalocean/godo"

	"github.com/mjtechguy/roughneck/internal/deployment"
	"github.com/mjtechguy/roughneck/internal/util/retry"
)

func init() {
	register(&digitalOceanAdapter{})
}

// doCatalogClient is the slice of the DigitalOcean API the adapter needs.
type doCatalogClient interface {
	ListRegions(ctx context.Context) ([]godo.Region, error)
	ListSizes(ctx context.Context) ([]godo.Size, error)
}

type godoCatalog struct {
	client *godo.Client
}

func (c *godoCatalog) ListRegions(ctx context.Context) ([]godo.Region, error) {
	regions, _, err := c.client.Regions.List(ctx, &godo.ListOptions{PerPage: 200})
	return regions, err
}

func (c *godoCatalog) ListSizes(ctx context.Context) ([]godo.Size, error) {
	sizes, _, err := c.client.Sizes.List(ctx, &godo.ListOptions{PerPage: 200})
	return sizes, err
}

// newDigitalOceanCatalog is swapped in tests.
var newDigitalOceanCatalog = func(token string) doCatalogClient {
	return &godoCatalog{client: godo.NewFromToken(token)}
}

type digitalOceanAdapter struct{}

func (a *digitalOceanAdapter) Kind() string        { return "digitalocean" }
func (a *digitalOceanAdapter) DisplayName() string { return "DigitalOcean" }
func (a *digitalOceanAdapter) DefaultUser() string { return "root" }

func (a *digitalOceanAdapter) CredentialEnv(cfg *deployment.Config) map[string]string {
	if cfg.DigitalOceanToken == "" {
		return nil
	}
	return map[string]string{"DIGITALOCEAN_TOKEN": cfg.DigitalOceanToken}
}

func (a *digitalOceanAdapter) BuildServerSpec(cfg *deployment.Config) []Var {
	return []Var{
		{Key: "digitalocean_region", Value: cfg.DigitalOceanRegion},
		{Key: "digitalocean_size", Value: cfg.DigitalOceanSize},
	}
}

func (a *digitalOceanAdapter) MissingFields(cfg *deployment.Config) []string {
	var missing []string
	if cfg.DigitalOceanToken == "" && cfg.CredentialProfile == "" {
		missing = append(missing, "digitalocean_token")
	}
	return append(missing, missingKeys(a.BuildServerSpec(cfg))...)
}

func (a *digitalOceanAdapter) NormalizeOutputs(raw map[string]string) (Outputs, error) {
	out := Outputs{Address: raw["server_ip"], InstanceID: raw["instance_id"]}
	if out.Address == "" {
		return Outputs{}, fmt.Errorf("provisioning reported success but produced no server address")
	}
	return out, nil
}

func (a *digitalOceanAdapter) Catalog(ctx context.Context, cfg *deployment.Config) (*Catalog, error) {
	client := newDigitalOceanCatalog(cfg.DigitalOceanToken)

	var regions []godo.Region
	var sizes []godo.Size
	err := retry.WithExponentialBackoff(ctx, func() error {
		var err error
		if regions, err = client.ListRegions(ctx); err != nil {
			return err
		}
		sizes, err = client.ListSizes(ctx)
		return err
	}, retry.WithMaxRetries(2))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch digitalocean catalog: %w", err)
	}

	catalog := &Catalog{}

	for _, region := range regions {
		if !region.Available {
			continue
		}
		catalog.Locations = append(catalog.Locations, CatalogEntry{
			ID:    region.Slug,
			Label: fmt.Sprintf("%s (%s)", region.Name, region.Slug),
		})
	}
	sort.Slice(catalog.Locations, func(i, j int) bool {
		return catalog.Locations[i].Label < catalog.Locations[j].Label
	})

	var offered []godo.Size
	for _, size := range sizes {
		if !size.Available {
			continue
		}
		if cfg.DigitalOceanRegion != "" && !sizeInRegion(size, cfg.DigitalOceanRegion) {
			continue
		}
		offered = append(offered, size)
	}
	sort.Slice(offered, func(i, j int) bool {
		return offered[i].PriceMonthly < offered[j].PriceMonthly
	})
	for _, size := range offered {
		catalog.Sizes = append(catalog.Sizes, CatalogEntry{
			ID: size.Slug,
			Label: fmt.Sprintf("%s - %d vCPU, %s RAM, %dGB disk [$%.2f/mo]",
				size.Slug, size.Vcpus, formatDOMemory(size.Memory), size.Disk, size.PriceMonthly),
		})
	}

	return catalog, nil
}

func sizeInRegion(size godo.Size, region string) bool {
	for _, slug := range size.Regions {
		if slug == region {
			return true
		}
	}
	return false
}

// formatDOMemory renders the API's MB figure as GB when it divides evenly.
func formatDOMemory(memoryMB int) string {
	if memoryMB >= 1024 {
		return fmt.Sprintf("%dGB", memoryMB/1024)
	}
	return fmt.Sprintf("%dMB", memoryMB)
}

func (a *digitalOceanAdapter) MatchCapacityError(string) (string, string, bool) {
	return "", "", false
}
