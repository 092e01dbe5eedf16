// Package deployment implements the on-disk deployment store and the
// per-deployment isolation model.
//
// Every deployment owns a private directory containing its configuration
// record (terraform.tfvars), its lifecycle state record (state.yaml), the
// provisioning backend's opaque state blob, a generated inventory artifact,
// an optional generated SSH key pair, and a pinned copy of the bundled
// provisioning templates. Nothing is ever shared between deployments, so
// destroying or corrupting one cannot affect another.
package deployment
