// Package provider defines the cloud backend adapters. Each adapter owns a
// backend's credential environment, its catalog of locations and sizes, and
// the mapping from provisioning outputs to the deployment record. Adding a
// backend means adding one adapter file and registering it.
package provider

import (
	"context"
	"fmt"
	"sort"

	"github.com/mjtechguy/roughneck/internal/deployment"
)

// Outputs is the normalized result of a successful provisioning run.
type Outputs struct {
	// Address is the public IPv4 address of the server.
	Address string

	// InstanceID is the backend's identifier for the server.
	InstanceID string
}

// CatalogEntry is one selectable location or size.
type CatalogEntry struct {
	// ID is the value stored in the configuration record.
	ID string

	// Label is the human-readable menu line.
	Label string
}

// Catalog holds the live location and size listings for a backend.
type Catalog struct {
	Locations []CatalogEntry
	Sizes     []CatalogEntry
}

// Var is one backend variable, keyed by its tfvars name.
type Var struct {
	Key   string
	Value string
}

// missingKeys returns the keys of the variable set that have no value yet,
// in declaration order.
func missingKeys(spec []Var) []string {
	var missing []string
	for _, v := range spec {
		if v.Value == "" {
			missing = append(missing, v.Key)
		}
	}
	return missing
}

// Adapter is the per-backend surface the engine and wizard work against.
type Adapter interface {
	// Kind returns the backend identifier stored in config records.
	Kind() string

	// DisplayName returns the backend name shown in menus.
	DisplayName() string

	// DefaultUser returns the login user the base image ships with.
	DefaultUser() string

	// CredentialEnv returns the environment variables the provisioning
	// backend reads credentials from. Values come from the config record
	// (already vault-resolved); they are never logged.
	CredentialEnv(cfg *deployment.Config) map[string]string

	// BuildServerSpec translates the config record into the backend's
	// variable set, in declaration order. The provisioning driver passes
	// these explicitly so the adapter, not the record file, is
	// authoritative for what the backend sees.
	BuildServerSpec(cfg *deployment.Config) []Var

	// MissingFields lists the config fields that must be filled before a
	// run can start, by tfvars key name.
	MissingFields(cfg *deployment.Config) []string

	// NormalizeOutputs maps raw provisioning outputs to Outputs. A missing
	// address is an error even when the run reported success.
	NormalizeOutputs(raw map[string]string) (Outputs, error)

	// Catalog fetches the live location and size listings.
	Catalog(ctx context.Context, cfg *deployment.Config) (*Catalog, error)

	// MatchCapacityError inspects failed provisioning output for a
	// size-unavailable-in-location condition. When it matches, the
	// reselect recovery action becomes available.
	MatchCapacityError(output string) (size, location string, ok bool)
}

var registry = map[string]Adapter{}

func register(a Adapter) {
	registry[a.Kind()] = a
}

// Get returns the adapter for the given backend kind.
func Get(kind string) (Adapter, error) {
	a, ok := registry[kind]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %q", kind)
	}
	return a, nil
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}
