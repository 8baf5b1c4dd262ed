package smelter

import (
	"sort"

	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
)

// grant is the access level folded from the per-level user and group lists.
type grant struct {
	owner     bool
	download  bool
	sensitive bool
}

// access folds admin_*, read_*, download_* and sensitive_* lists, plus
// explicit users and groups entries, into ACLs. A name listed at several
// levels gets the union of their permissions. Admins get every permission.
func (r *reader) access() (records.Access, error) {
	users, err := r.grants("user", "users")
	if err != nil {
		return records.Access{}, err
	}
	groups, err := r.grants("group", "groups")
	if err != nil {
		return records.Access{}, err
	}

	var acc records.Access
	for _, name := range sortedKeys(users) {
		g := users[name]
		acc.Users = append(acc.Users, records.UserACL{
			User: name, IsOwner: g.owner, CanDownload: g.download, SeeSensitive: g.sensitive,
		})
	}
	for _, name := range sortedKeys(groups) {
		g := groups[name]
		acc.Groups = append(acc.Groups, records.GroupACL{
			Group: name, IsOwner: g.owner, CanDownload: g.download, SeeSensitive: g.sensitive,
		})
	}

	if v, ok := r.value("data_classification"); ok {
		dc, err := records.ParseDataClassification(records.Stringify(v))
		if err != nil {
			return records.Access{}, errors.NewValidationError("data_classification", v, err.Error())
		}
		acc.DataClassification = &dc
	}
	return acc, nil
}

func (r *reader) grants(subject, explicit string) (map[string]grant, error) {
	out := make(map[string]grant)
	merge := func(name string, g grant) {
		cur := out[name]
		out[name] = grant{
			owner:     cur.owner || g.owner,
			download:  cur.download || g.download,
			sensitive: cur.sensitive || g.sensitive,
		}
	}

	for _, name := range r.list("admin_" + explicit) {
		merge(name, grant{owner: true, download: true, sensitive: true})
	}
	for _, name := range r.list("read_" + explicit) {
		merge(name, grant{})
	}
	for _, name := range r.list("download_" + explicit) {
		merge(name, grant{download: true})
	}
	for _, name := range r.list("sensitive_" + explicit) {
		merge(name, grant{sensitive: true})
	}

	v, ok := r.value(explicit)
	if !ok {
		return out, nil
	}
	entries, isList := v.([]any)
	if !isList {
		entries = []any{v}
	}
	for _, entry := range entries {
		switch e := entry.(type) {
		case string:
			merge(e, grant{})
		case map[string]any:
			name := records.Stringify(e[subject])
			if name == "" {
				return nil, errors.NewValidationError(explicit, entry, "entry has no "+subject)
			}
			merge(name, grant{
				owner:     truthy(e["is_owner"]),
				download:  truthy(e["can_download"]),
				sensitive: truthy(e["see_sensitive"]),
			})
		default:
			return nil, errors.NewValidationError(explicit, entry, "expected a name or an ACL entry")
		}
	}
	return out, nil
}

func truthy(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true" || b == "True" || b == "yes"
	}
	return false
}

func sortedKeys(m map[string]grant) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
