package crucible

import (
	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/internal/overseer"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Outcome classifies a record against the catalogue.
type Outcome int

const (
	// OutcomeNoMatch means nothing in the catalogue resembles the record.
	OutcomeNoMatch Outcome = iota
	// OutcomeMatch means one candidate agrees on every comparison key.
	OutcomeMatch
	// OutcomePartial means candidates exist but none fully agree.
	OutcomePartial
	// OutcomeUpdate means a partial match that may be overwritten.
	OutcomeUpdate
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeNoMatch:
		return "no_match"
	case OutcomeMatch:
		return "match"
	case OutcomePartial:
		return "partial_match"
	case OutcomeUpdate:
		return "update"
	}
	return "unknown"
}

// MatchResult is the outcome of comparing a record with its candidates.
type MatchResult struct {
	Outcome   Outcome
	URI       uri.URI
	Candidate catalogue.Object
	Conflicts []errors.FieldConflict
	MatchedBy overseer.MatchedBy
}

// Match compares obj with each candidate on obj's comparison keys. Values
// are compared exactly after rendering to strings, so 1024 and 1024.0
// agree but "abc" and "ABC" do not.
//
// A full match without a resource URI counts as partial, since it cannot
// be referenced. More than one full match is an integrity fault.
func Match(obj records.Object, candidates []catalogue.Object) (MatchResult, error) {
	if len(candidates) == 0 {
		return MatchResult{Outcome: OutcomeNoMatch}, nil
	}

	want := obj.ComparisonValues()
	var full []catalogue.Object
	var closest catalogue.Object
	var closestConflicts []errors.FieldConflict

	for _, c := range candidates {
		conflicts := compare(want, c)
		if len(conflicts) == 0 {
			full = append(full, c)
			continue
		}
		if closest == nil || len(conflicts) < len(closestConflicts) {
			closest, closestConflicts = c, conflicts
		}
	}

	switch len(full) {
	case 0:
		u, _ := closest.ResourceURI()
		return MatchResult{Outcome: OutcomePartial, URI: u, Candidate: closest, Conflicts: closestConflicts}, nil
	case 1:
		u, ok := full[0].ResourceURI()
		if !ok {
			return MatchResult{
				Outcome:   OutcomePartial,
				Candidate: full[0],
				Conflicts: []errors.FieldConflict{{Field: "resource_uri", Remote: full[0]["resource_uri"]}},
			}, nil
		}
		return MatchResult{Outcome: OutcomeMatch, URI: u, Candidate: full[0]}, nil
	default:
		matches := make([]string, 0, len(full))
		for _, c := range full {
			if u, ok := c.ResourceURI(); ok {
				matches = append(matches, u.String())
			}
		}
		return MatchResult{}, errors.NewUnableToFindUniqueError(obj.ObjectType().String(), obj.Lookup().Key, matches)
	}
}

// compare returns the comparison keys, in sorted order, on which candidate
// disagrees with want.
func compare(want map[string]any, candidate catalogue.Object) []errors.FieldConflict {
	var conflicts []errors.FieldConflict
	for _, key := range sortedKeys(want) {
		local := want[key]
		remote := candidate[key]
		if records.Stringify(local) != records.Stringify(remote) {
			conflicts = append(conflicts, errors.FieldConflict{Field: key, Local: local, Remote: remote})
		}
	}
	return conflicts
}
