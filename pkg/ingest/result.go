package ingest

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"

	"github.com/agentstation/foundry/pkg/constants"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Entry is an object recorded under its display name. URI is zero for
// objects the catalogue did not name, such as datafiles.
type Entry struct {
	Name string
	URI  uri.URI
}

// MarshalJSON encodes the entry as a [name, uri] pair, with null for a
// missing URI.
func (e Entry) MarshalJSON() ([]byte, error) {
	var u any
	if !e.URI.IsZero() {
		u = e.URI.String()
	}
	return json.Marshal([]any{e.Name, u})
}

// TypeResult records the outcome of every object of one type. It is safe
// for concurrent use.
type TypeResult struct {
	mu sync.Mutex

	Success []Entry  `json:"success"`
	Updated []Entry  `json:"updated,omitempty"`
	Skipped []Entry  `json:"skipped"`
	Error   []string `json:"error"`
	Blocked []string `json:"blocked"`

	Duration time.Duration `json:"-"`
}

func newTypeResult() *TypeResult {
	return &TypeResult{
		Success: []Entry{},
		Skipped: []Entry{},
		Error:   []string{},
		Blocked: []string{},
	}
}

// AddSuccess records a created object.
func (tr *TypeResult) AddSuccess(name string, u uri.URI) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Success = append(tr.Success, Entry{Name: name, URI: u})
}

// AddUpdated records an existing object that was overwritten.
func (tr *TypeResult) AddUpdated(name string, u uri.URI) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Updated = append(tr.Updated, Entry{Name: name, URI: u})
}

// AddSkipped records an object that already existed.
func (tr *TypeResult) AddSkipped(name string, u uri.URI) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Skipped = append(tr.Skipped, Entry{Name: name, URI: u})
}

// AddError records an object that failed.
func (tr *TypeResult) AddError(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Error = append(tr.Error, name)
}

// AddBlocked records an object that was not written because it, or all of
// its parents, were blocked.
func (tr *TypeResult) AddBlocked(name string) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.Blocked = append(tr.Blocked, name)
}

// Counts summarizes a TypeResult or a whole run.
type Counts struct {
	Success int `json:"success"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Error   int `json:"error"`
	Blocked int `json:"blocked"`
}

// Total is the number of objects seen.
func (c Counts) Total() int {
	return c.Success + c.Updated + c.Skipped + c.Error + c.Blocked
}

// Failed is the number of objects that were neither written nor matched.
func (c Counts) Failed() int {
	return c.Error + c.Blocked
}

func (c *Counts) add(o Counts) {
	c.Success += o.Success
	c.Updated += o.Updated
	c.Skipped += o.Skipped
	c.Error += o.Error
	c.Blocked += o.Blocked
}

// Counts returns the number of entries in each outcome.
func (tr *TypeResult) Counts() Counts {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return Counts{
		Success: len(tr.Success),
		Updated: len(tr.Updated),
		Skipped: len(tr.Skipped),
		Error:   len(tr.Error),
		Blocked: len(tr.Blocked),
	}
}

// TransferResult summarizes the post-ingest datafile transfer.
type TransferResult struct {
	Transferred int      `json:"transferred"`
	Skipped     int      `json:"skipped"`
	Failed      []string `json:"failed"`
	Bytes       int64    `json:"bytes"`
}

// Result represents the complete result of an ingestion run.
type Result struct {
	RunID      string
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	Types    map[records.ObjectType]*TypeResult
	Transfer *TransferResult
}

// NewResult creates an empty result for every ingested object type.
func NewResult(runID string, dryRun bool) *Result {
	r := &Result{
		RunID:     runID,
		DryRun:    dryRun,
		StartedAt: time.Now().UTC(),
		Types:     make(map[records.ObjectType]*TypeResult, len(records.IngestionOrder)),
	}
	for _, t := range records.IngestionOrder {
		r.Types[t] = newTypeResult()
	}
	return r
}

// For returns the result for type t.
func (r *Result) For(t records.ObjectType) *TypeResult {
	tr, ok := r.Types[t]
	if !ok {
		tr = newTypeResult()
		r.Types[t] = tr
	}
	return tr
}

// Finish stamps the end of the run.
func (r *Result) Finish() {
	r.FinishedAt = time.Now().UTC()
}

// Duration is the wall time of the run.
func (r *Result) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Totals sums the counts of every type.
func (r *Result) Totals() Counts {
	var c Counts
	for _, t := range records.IngestionOrder {
		c.add(r.For(t).Counts())
	}
	return c
}

// HasFailures returns true if any object errored or was blocked, or a
// transfer failed.
func (r *Result) HasFailures() bool {
	if r.Totals().Failed() > 0 {
		return true
	}
	return r.Transfer != nil && len(r.Transfer.Failed) > 0
}

// Summary returns a human-readable summary of the run.
func (r *Result) Summary() string {
	c := r.Totals()
	if c.Total() == 0 {
		return "Nothing to ingest"
	}

	summary := fmt.Sprintf("%d objects: %d created, %d updated, %d already present, %d failed, %d blocked",
		c.Total(), c.Success, c.Updated, c.Skipped, c.Error, c.Blocked)
	if r.Transfer != nil {
		summary += fmt.Sprintf("; %d files transferred (%s)", r.Transfer.Transferred, humanize.Bytes(uint64(max(r.Transfer.Bytes, 0))))
	}
	if r.DryRun {
		summary += " (Dry run)"
	}
	return summary
}

// TypeSummary returns a one-line summary for type t.
func (r *Result) TypeSummary(t records.ObjectType) string {
	c := r.For(t).Counts()
	if c.Total() == 0 {
		return fmt.Sprintf("%s: nothing to ingest", t)
	}
	parts := []string{fmt.Sprintf("%d created", c.Success)}
	if c.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", c.Updated))
	}
	parts = append(parts,
		fmt.Sprintf("%d skipped", c.Skipped),
		fmt.Sprintf("%d errors", c.Error),
		fmt.Sprintf("%d blocked", c.Blocked))
	return fmt.Sprintf("%s: %s", t, strings.Join(parts, ", "))
}

// MarshalJSON encodes the result with one key per object type collection
// (projects, experiments, datasets, datafiles).
func (r *Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{
		"run_id":      r.RunID,
		"dry_run":     r.DryRun,
		"started_at":  r.StartedAt,
		"finished_at": r.FinishedAt,
		"totals":      r.Totals(),
	}
	for _, t := range records.IngestionOrder {
		out[t.String()+"s"] = r.For(t)
	}
	if r.Transfer != nil {
		out["transfer"] = r.Transfer
	}
	return json.Marshal(out)
}

// WriteJSON dumps the result to path on fs, creating parent directories.
func (r *Result) WriteJSON(fs afero.Fs, path string) error {
	if path == "" {
		path = constants.ResultFileName
	}
	data, err := json.MarshalIndent(r, "", "    ")
	if err != nil {
		return errors.WrapParse("json", path, err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, constants.DirPermissions); err != nil {
			return errors.WrapIO("mkdir", dir, err)
		}
	}
	if err := afero.WriteFile(fs, path, data, constants.FilePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
