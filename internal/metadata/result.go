// Package metadata defines the attribute/result model shared by all collectors.
package metadata

import "strconv"

// QueryType identifies which kind of entity a Result describes.
type QueryType string

const (
	QueryProcess QueryType = "process"
	QueryFile    QueryType = "file"
	QueryPort    QueryType = "port"
)

// Protocol is the transport filter for port queries.
type Protocol string

const (
	ProtocolTCP  Protocol = "tcp"
	ProtocolUDP  Protocol = "udp"
	ProtocolBoth Protocol = "both"
)

// ParseProtocol converts a user-supplied protocol name to a Protocol.
func ParseProtocol(s string) (Protocol, bool) {
	switch Protocol(s) {
	case ProtocolTCP, ProtocolUDP, ProtocolBoth:
		return Protocol(s), true
	}
	return "", false
}

// Attribute is one named fact with one or more string values.
// Multi-valued attributes hold things like open file descriptors or
// environment variables; value order is insertion order.
type Attribute struct {
	Name   string
	Values []string
}

// Result is the complete outcome of one collection call. A collector
// creates it empty, populates it attribute by attribute, and returns it;
// callers only read it after that.
//
// Attribute names are unique by convention only. Collectors pick
// non-colliding names per Result; duplicates are permitted and render as
// repeated keys.
type Result struct {
	Type       QueryType
	Identifier string
	Attributes []Attribute
	Success    bool
	Err        string
}

// New returns an empty Result for the given query.
func New(qt QueryType, identifier string) *Result {
	return &Result{Type: qt, Identifier: identifier}
}

// NewErrorResult returns a failed Result carrying the given message and no
// attributes. All collectors report expected failures (bad identifier,
// missing resource) through this helper.
func NewErrorResult(qt QueryType, identifier, message string) *Result {
	return &Result{
		Type:       qt,
		Identifier: identifier,
		Success:    false,
		Err:        message,
	}
}

// AddAttribute appends a single-value attribute.
func (r *Result) AddAttribute(name, value string) {
	r.Attributes = append(r.Attributes, Attribute{Name: name, Values: []string{value}})
}

// AddList appends a multi-value attribute. The value slice is used as-is;
// an attribute attached to a Result should carry at least one value.
func (r *Result) AddList(name string, values []string) {
	r.Attributes = append(r.Attributes, Attribute{Name: name, Values: values})
}

// AddInt appends a signed integer attribute, formatted base-10 without
// grouping regardless of locale.
func (r *Result) AddInt(name string, v int64) {
	r.AddAttribute(name, strconv.FormatInt(v, 10))
}

// AddUint appends an unsigned integer attribute, formatted base-10.
func (r *Result) AddUint(name string, v uint64) {
	r.AddAttribute(name, strconv.FormatUint(v, 10))
}
