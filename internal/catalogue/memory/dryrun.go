package memory

import (
	"context"
	"sync"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// dryRunStartID keeps synthetic IDs clear of real catalogue IDs.
const dryRunStartID = 1 << 30

// DryRun reads through to a real catalogue and keeps every write in an
// in-memory overlay. Objects created during the run are visible to later
// lookups, so a rehearsal resolves children against their would-be parents.
type DryRun struct {
	remote  catalogue.Client
	overlay *Catalogue

	mu      sync.Mutex
	updates []Call
}

// NewDryRun wraps remote.
func NewDryRun(remote catalogue.Client) *DryRun {
	return &DryRun{
		remote:  remote,
		overlay: New(WithStartID(dryRunStartID)),
	}
}

// Get implements catalogue.Client.
func (d *DryRun) Get(ctx context.Context, t records.ObjectType, query catalogue.Query) ([]catalogue.Object, error) {
	objs, err := d.remote.Get(ctx, t, query)
	if err != nil {
		return nil, err
	}
	local, err := d.overlay.Get(ctx, t, query)
	if err != nil {
		return nil, err
	}
	return append(objs, local...), nil
}

// Create implements catalogue.Client.
func (d *DryRun) Create(ctx context.Context, t records.ObjectType, payload any) (catalogue.WriteResponse, error) {
	return d.overlay.Create(ctx, t, payload)
}

// Update implements catalogue.Client. Updates to remote objects are
// recorded and echoed back without contacting the catalogue.
func (d *DryRun) Update(ctx context.Context, target uri.URI, payload any) (catalogue.WriteResponse, error) {
	if target.ID >= dryRunStartID {
		return d.overlay.Update(ctx, target, payload)
	}
	obj, err := toObject(payload)
	if err != nil {
		return catalogue.WriteResponse{}, err
	}
	obj["resource_uri"] = target.String()

	d.mu.Lock()
	d.updates = append(d.updates, Call{Method: "PUT", Type: records.ObjectType(target.Type), URI: target, Payload: obj})
	d.mu.Unlock()

	return catalogue.WriteResponse{StatusCode: 200, Object: clone(obj)}, nil
}

// Introspect implements catalogue.Client.
func (d *DryRun) Introspect(ctx context.Context) (catalogue.Introspection, error) {
	return d.remote.Introspect(ctx)
}

// Writes returns every write that would have been sent.
func (d *DryRun) Writes() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append(d.overlay.Calls(), d.updates...)
}
