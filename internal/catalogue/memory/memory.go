// Package memory provides an in-memory catalogue. It backs unit tests and
// the dry-run overlay.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"

	"github.com/agentstation/foundry/internal/catalogue"
	"github.com/agentstation/foundry/pkg/errors"
	"github.com/agentstation/foundry/pkg/records"
	"github.com/agentstation/foundry/pkg/uri"
)

// Call records one write made against the catalogue.
type Call struct {
	Method  string
	Type    records.ObjectType
	URI     uri.URI
	Payload catalogue.Object
}

// Catalogue is a thread-safe in-memory catalogue.Client.
type Catalogue struct {
	mu      sync.RWMutex
	objects map[records.ObjectType]map[int]catalogue.Object
	nextID  int
	calls   []Call
	gets    int

	introspection catalogue.Introspection
	noBody        map[records.ObjectType]bool
	failOn        func(method string, t records.ObjectType) error
}

// Option configures a Catalogue.
type Option func(*Catalogue)

// WithIntrospection sets the feature switches reported by Introspect.
func WithIntrospection(i catalogue.Introspection) Option {
	return func(c *Catalogue) {
		c.introspection = i
	}
}

// WithoutResponseBody makes writes to t return no body, like endpoints
// that only answer with a status and Location header.
func WithoutResponseBody(t records.ObjectType) Option {
	return func(c *Catalogue) {
		c.noBody[t] = true
	}
}

// WithFailure injects an error for matching writes or reads.
func WithFailure(fn func(method string, t records.ObjectType) error) Option {
	return func(c *Catalogue) {
		c.failOn = fn
	}
}

// WithStartID sets the first ID handed out.
func WithStartID(id int) Option {
	return func(c *Catalogue) {
		c.nextID = id
	}
}

// New creates an empty catalogue with projects enabled.
func New(opts ...Option) *Catalogue {
	c := &Catalogue{
		objects:       make(map[records.ObjectType]map[int]catalogue.Object),
		nextID:        1,
		noBody:        make(map[records.ObjectType]bool),
		introspection: catalogue.Introspection{ProjectsEnabled: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add seeds an object and returns its URI.
func (c *Catalogue) Add(t records.ObjectType, obj catalogue.Object) uri.URI {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.insert(t, obj)
}

// Get implements catalogue.Client.
func (c *Catalogue) Get(_ context.Context, t records.ObjectType, query catalogue.Query) ([]catalogue.Object, error) {
	if err := c.fail("GET", t); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.gets++
	c.mu.Unlock()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.objects[t]))
	for id := range c.objects[t] {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	var out []catalogue.Object
	for _, id := range ids {
		obj := c.objects[t][id]
		if Matches(obj, query) {
			out = append(out, clone(obj))
		}
	}
	return out, nil
}

// Create implements catalogue.Client.
func (c *Catalogue) Create(_ context.Context, t records.ObjectType, payload any) (catalogue.WriteResponse, error) {
	if err := c.fail("POST", t); err != nil {
		return catalogue.WriteResponse{}, err
	}
	obj, err := toObject(payload)
	if err != nil {
		return catalogue.WriteResponse{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	u := c.insert(t, obj)
	c.calls = append(c.calls, Call{Method: "POST", Type: t, URI: u, Payload: clone(obj)})

	resp := catalogue.WriteResponse{StatusCode: 201}
	if !c.noBody[t] {
		resp.Object = clone(c.objects[t][u.ID])
	}
	return resp, nil
}

// Update implements catalogue.Client.
func (c *Catalogue) Update(_ context.Context, target uri.URI, payload any) (catalogue.WriteResponse, error) {
	t := records.ObjectType(target.Type)
	if err := c.fail("PUT", t); err != nil {
		return catalogue.WriteResponse{}, err
	}
	obj, err := toObject(payload)
	if err != nil {
		return catalogue.WriteResponse{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.objects[t][target.ID]
	if !ok {
		return catalogue.WriteResponse{}, errors.NewAPIError("memory", 404, "no such object "+target.String())
	}
	for k, v := range obj {
		existing[k] = v
	}
	existing["resource_uri"] = target.String()
	c.calls = append(c.calls, Call{Method: "PUT", Type: t, URI: target, Payload: clone(obj)})

	return catalogue.WriteResponse{StatusCode: 200, Object: clone(existing)}, nil
}

// Introspect implements catalogue.Client.
func (c *Catalogue) Introspect(_ context.Context) (catalogue.Introspection, error) {
	if err := c.fail("GET", "introspection"); err != nil {
		return catalogue.Introspection{}, err
	}
	return c.introspection, nil
}

// Calls returns the writes made so far.
func (c *Catalogue) Calls() []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Call(nil), c.calls...)
}

// CallsFor returns writes made with method against t.
func (c *Catalogue) CallsFor(method string, t records.ObjectType) []Call {
	var out []Call
	for _, call := range c.Calls() {
		if call.Method == method && call.Type == t {
			out = append(out, call)
		}
	}
	return out
}

// Objects returns every stored object of type t.
func (c *Catalogue) Objects(t records.ObjectType) []catalogue.Object {
	objs, _ := c.Get(context.Background(), t, nil)
	return objs
}

// Reads returns the number of GET calls served.
func (c *Catalogue) Reads() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gets
}

func (c *Catalogue) insert(t records.ObjectType, obj catalogue.Object) uri.URI {
	if c.objects[t] == nil {
		c.objects[t] = make(map[int]catalogue.Object)
	}
	id := c.nextID
	c.nextID++
	u := uri.New(string(t), id)

	stored := clone(obj)
	stored["id"] = float64(id)
	stored["resource_uri"] = u.String()
	c.objects[t][id] = stored
	return u
}

func (c *Catalogue) fail(method string, t records.ObjectType) error {
	if c.failOn == nil {
		return nil
	}
	return c.failOn(method, t)
}

// Matches reports whether obj satisfies every query filter. "identifier"
// matches any element of the identifiers list, and a numeric filter on a
// URI-valued field matches that URI's ID.
func Matches(obj catalogue.Object, query catalogue.Query) bool {
	for key, want := range query {
		switch key {
		case "limit", "offset":
			continue
		case "identifier":
			if !containsValue(obj["identifiers"], want) {
				return false
			}
			continue
		}
		if !fieldMatches(obj[key], want) {
			return false
		}
	}
	return true
}

func fieldMatches(value any, want string) bool {
	switch v := value.(type) {
	case []any:
		return containsValue(v, want)
	case string:
		if v == want {
			return true
		}
		if u, err := uri.Parse(v); err == nil {
			return strconv.Itoa(u.ID) == want
		}
		return false
	default:
		return records.Stringify(v) == want
	}
}

func containsValue(list any, want string) bool {
	items, ok := list.([]any)
	if !ok {
		return false
	}
	for _, item := range items {
		if fieldMatches(item, want) {
			return true
		}
	}
	return false
}

// toObject normalizes a payload through JSON so stored values look like
// decoded API responses.
func toObject(payload any) (catalogue.Object, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.WrapParse("json", "payload", err)
	}
	obj := catalogue.Object{}
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, errors.WrapParse("json", "payload", err)
	}
	return obj, nil
}

func clone(obj catalogue.Object) catalogue.Object {
	out := make(catalogue.Object, len(obj))
	for k, v := range obj {
		out[k] = v
	}
	return out
}
