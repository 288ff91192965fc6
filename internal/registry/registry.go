// Package registry is the process-wide list of resource types an
// application built on this module has declared. An application registers
// its resources (typically from an init() in the package that defines
// them) and the CLI, collector, and sync engine all operate over whatever
// has been registered at the time they run.
package registry

import "github.com/semitexa/semitexa-orm/internal/metadata"

var resources []metadata.Resource

// Register adds one or more resources to the process-wide registry. Safe
// to call from multiple init() functions across packages.
func Register(rs ...metadata.Resource) {
	resources = append(resources, rs...)
}

// All returns every resource registered so far.
func All() []metadata.Resource {
	out := make([]metadata.Resource, len(resources))
	copy(out, resources)
	return out
}

// ResetForTests clears the registry. Production code must never call this.
func ResetForTests() {
	resources = nil
}
