package target

//go:generate mockery -name Backend

import (
	"context"
	"fmt"
)

// Target is a running oxShibboleth instance that receives the synced files.
// Targets are resolved fresh on every listing, since the fleet changes
// underneath us.
type Target struct {
	// Name is the container or pod name.
	Name string

	// Address is the network address of the target. It's empty if the
	// backend didn't report one.
	Address string

	// ID is the Docker container ID. Unused by the Kubernetes backend.
	ID string

	// Namespace and Container address a pod's container. Unused by the
	// Docker backend.
	Namespace string
	Container string
}

func (t Target) String() string {
	if t.Namespace != "" {
		return fmt.Sprintf("%s/%s", t.Namespace, t.Name)
	}
	return t.Name
}

// Directory enumerates the targets that should receive files.
type Directory interface {
	ListTargets(ctx context.Context) ([]Target, error)
}

// Transport delivers files into a target's filesystem, at the same path they
// have on the producer.
type Transport interface {
	CopyFile(ctx context.Context, t Target, path string) error
	DeleteFile(ctx context.Context, t Target, path string) error
}

// Backend is implemented once per container runtime.
type Backend interface {
	Directory
	Transport
}
