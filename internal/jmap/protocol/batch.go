package protocol

import (
	"fmt"
	"sort"
	"strings"
)

// Args holds method arguments. Keys prefixed with "#" carry a
// ResultReference instead of a literal value.
type Args map[string]interface{}

// ResultReference points an argument at a value produced by an earlier call
// in the same request (RFC 8620 Section 3.7).
type ResultReference struct {
	ResultOf string `json:"resultOf"`
	Name     string `json:"name"`
	Path     string `json:"path"`
}

// Batch accumulates method calls for one API request. Call ids are unique
// within the batch and back-references are checked when a call is added, so
// a batch that builds without error only references earlier calls.
type Batch struct {
	calls []MethodCall
	names map[string]string
	using map[string]bool
	next  int
}

// NewBatch returns an empty batch. The listed capabilities are always
// declared in addition to the ones derived from the method names.
func NewBatch(using ...string) *Batch {
	b := &Batch{
		names: make(map[string]string),
		using: map[string]bool{CoreCapability: true},
	}
	for _, u := range using {
		b.using[u] = true
	}
	return b
}

// Add appends a call with a generated call id and returns that id.
func (b *Batch) Add(name string, args interface{}) (string, error) {
	for {
		callId := fmt.Sprintf("c%d", b.next)
		b.next++
		if _, taken := b.names[callId]; !taken {
			return callId, b.AddWithId(callId, name, args)
		}
	}
}

// AddWithId appends a call using the caller's call id.
func (b *Batch) AddWithId(callId, name string, args interface{}) error {
	if callId == "" {
		return fmt.Errorf("%s: empty call id", name)
	}
	if _, dup := b.names[callId]; dup {
		return fmt.Errorf("%s: duplicate call id %q", name, callId)
	}
	if a, ok := args.(Args); ok {
		if err := b.checkRefs(name, a); err != nil {
			return err
		}
	}
	b.names[callId] = name
	if c := CapabilityFor(name); c != "" {
		b.using[c] = true
	}
	b.calls = append(b.calls, MethodCall{Name: name, Arguments: args, CallId: callId})
	return nil
}

// Ref builds a reference to the result of an earlier call.
func (b *Batch) Ref(callId, path string) (ResultReference, error) {
	name, ok := b.names[callId]
	if !ok {
		return ResultReference{}, fmt.Errorf("reference to unknown call %q", callId)
	}
	return ResultReference{ResultOf: callId, Name: name, Path: path}, nil
}

func (b *Batch) checkRefs(method string, args Args) error {
	for key, v := range args {
		ref, isRef := asRef(v)
		hashed := strings.HasPrefix(key, "#")
		switch {
		case hashed && !isRef:
			return fmt.Errorf("%s: argument %q must be a result reference", method, key)
		case !hashed && isRef:
			return fmt.Errorf("%s: result reference under %q needs a '#' prefix", method, key)
		case !isRef:
			continue
		}
		name, ok := b.names[ref.ResultOf]
		if !ok {
			return fmt.Errorf("%s: %q references call %q which is not earlier in the batch", method, key, ref.ResultOf)
		}
		if name != ref.Name {
			return fmt.Errorf("%s: %q references %s but call %q is %s", method, key, ref.Name, ref.ResultOf, name)
		}
		if !strings.HasPrefix(ref.Path, "/") {
			return fmt.Errorf("%s: %q has invalid path %q", method, key, ref.Path)
		}
	}
	return nil
}

func asRef(v interface{}) (ResultReference, bool) {
	switch r := v.(type) {
	case ResultReference:
		return r, true
	case *ResultReference:
		if r != nil {
			return *r, true
		}
	}
	return ResultReference{}, false
}

// Len returns the number of calls in the batch.
func (b *Batch) Len() int {
	return len(b.calls)
}

// Calls returns the calls in insertion order.
func (b *Batch) Calls() []MethodCall {
	return append([]MethodCall(nil), b.calls...)
}

// Request builds the wire request. Capabilities are sorted with core first.
func (b *Batch) Request() *Request {
	using := make([]string, 0, len(b.using))
	for u := range b.using {
		if u != CoreCapability {
			using = append(using, u)
		}
	}
	sort.Strings(using)
	return &Request{
		Using:       append([]string{CoreCapability}, using...),
		MethodCalls: b.Calls(),
	}
}
