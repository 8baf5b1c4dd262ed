package raid

import (
	"context"

	"github.com/agentstation/foundry/internal/idstore"
	"github.com/agentstation/foundry/internal/manifest"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/logging"
	"github.com/agentstation/foundry/pkg/records"
)

// Minter is the part of Client the Assigner needs.
type Minter interface {
	Mint(ctx context.Context, req MintRequest) (*RAiD, error)
}

// Assigner gives every project and experiment in a manifest a persistent
// identifier. Handles already recorded in the id store are reused; the
// rest are minted and recorded.
type Assigner struct {
	minter      Minter
	store       *idstore.Store
	contentPath string
	prefix      string
}

// AssignerOption configures an Assigner.
type AssignerOption func(*Assigner)

// WithContentPath sets the landing URL recorded on minted RAiDs.
func WithContentPath(u string) AssignerOption {
	return func(a *Assigner) {
		a.contentPath = u
	}
}

// WithNamePrefix prefixes minted RAiD names, e.g. "PGG-".
func WithNamePrefix(p string) AssignerOption {
	return func(a *Assigner) {
		a.prefix = p
	}
}

// NewAssigner creates an Assigner.
func NewAssigner(m Minter, store *idstore.Store, opts ...AssignerOption) *Assigner {
	a := &Assigner{minter: m, store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assignment summarizes an Assign call.
type Assignment struct {
	Minted  int
	Reused  int
	Present int
}

// Assign stamps persistent_id onto manifest projects and experiments that
// lack one. The store is saved even when minting fails part way.
func (a *Assigner) Assign(ctx context.Context, m *manifest.Manifest) (Assignment, error) {
	var out Assignment
	logger := logging.FromContext(ctx)

	err := func() error {
		for _, t := range []records.ObjectType{records.TypeProject, records.TypeExperiment} {
			for _, raw := range m.Records(t) {
				if hasIdentifier(raw) {
					out.Present++
					continue
				}
				name := raw.Name()
				if handle, ok := a.store.Get(t, name); ok {
					raw.Fields["persistent_id"] = handle
					out.Reused++
					continue
				}

				desc, _ := raw.String("description")
				start, _ := raw.String("start_time")
				r, err := a.minter.Mint(ctx, MintRequest{
					Name:        a.prefix + name,
					Description: desc,
					ContentPath: a.contentPath,
					StartDate:   start,
					Metadata:    map[string]any{"type": t.String()},
				})
				if err != nil {
					return errors.WrapResource("mint", "raid", name, err)
				}
				raw.Fields["persistent_id"] = r.Handle
				a.store.Set(t, name, r.Handle)
				out.Minted++
				logger.Info().Str("object_type", t.String()).Str("name", name).Str("handle", r.Handle).Msg("RAiD minted")
			}
		}
		return nil
	}()

	if saveErr := a.store.Save(); saveErr != nil && err == nil {
		err = saveErr
	}
	return out, err
}

// hasIdentifier reports whether raw already names a persistent identifier,
// under the catalogue key or its per-type alias.
func hasIdentifier(raw records.Raw) bool {
	return raw.Has("persistent_id") || raw.Has(raw.Type.String()+"_id")
}
