// Package feed talks to the remote budget service and turns its JSON
// documents into typed records ready for reconciliation.
package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PaesslerAG/jsonpath"
)

var (
	// ErrUnexpectedShape is returned when a document has neither the
	// expected structure nor a server message.
	ErrUnexpectedShape = errors.New("unexpected response shape")
	// ErrInvalidJSON is returned when a response body is not JSON.
	ErrInvalidJSON = errors.New("response is not valid JSON")
)

// MessageError carries a human-readable message sent by the server instead
// of the expected document.
type MessageError struct {
	Message string
}

func (e *MessageError) Error() string {
	return "server message: " + e.Message
}

// Node is a decoded JSON value. Numbers are kept as json.Number so amounts
// never pass through float64.
type Node struct {
	v any
}

// Parse decodes a JSON document.
func Parse(b []byte) (Node, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Node{}, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if dec.More() {
		return Node{}, fmt.Errorf("%w: trailing data", ErrInvalidJSON)
	}
	return Node{v: v}, nil
}

// MustParse is Parse for literals in tests and fixtures.
func MustParse(s string) Node {
	n, err := Parse([]byte(s))
	if err != nil {
		panic(err)
	}
	return n
}

// Value returns the underlying decoded value.
func (n Node) Value() any { return n.v }

// IsNull reports whether the node is JSON null or absent.
func (n Node) IsNull() bool { return n.v == nil }

// Get evaluates a JSONPath expression such as "$.Categories" against the
// node. Missing keys and null values report false.
func (n Node) Get(path string) (Node, bool) {
	v, err := jsonpath.Get(path, n.v)
	if err != nil || v == nil {
		return Node{}, false
	}
	return Node{v: v}, true
}

func (n Node) isObject() bool {
	_, ok := n.v.(map[string]any)
	return ok
}

// Array returns the elements of a JSON array.
func (n Node) Array() ([]Node, bool) {
	arr, ok := n.v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]Node, len(arr))
	for i, v := range arr {
		out[i] = Node{v: v}
	}
	return out, true
}

// String returns a JSON string value.
func (n Node) String() (string, bool) {
	s, ok := n.v.(string)
	return s, ok
}

// Text returns a string value, or the literal text of a number.
func (n Node) Text() (string, bool) {
	switch v := n.v.(type) {
	case string:
		return v, true
	case json.Number:
		return v.String(), true
	default:
		return "", false
	}
}

// Int returns an integer from a JSON number or a string holding one.
func (n Node) Int() (int64, bool) {
	var s string
	switch v := n.v.(type) {
	case json.Number:
		s = v.String()
	case string:
		s = strings.TrimSpace(v)
	default:
		return 0, false
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return i, true
}

// Message returns the server message of a {"message": "..."} document.
func (n Node) Message() (string, bool) {
	if !n.isObject() {
		return "", false
	}
	m, ok := n.Get("$.message")
	if !ok {
		return "", false
	}
	return m.Text()
}

// JSON re-encodes the node, for logging raw responses.
func (n Node) JSON() string {
	b, err := json.Marshal(n.v)
	if err != nil {
		return fmt.Sprintf("%v", n.v)
	}
	return string(b)
}

// shapeError converts a document without the expected structure into either
// a MessageError or ErrUnexpectedShape.
func shapeError(n Node, want string) error {
	if msg, ok := n.Message(); ok {
		return &MessageError{Message: msg}
	}
	return fmt.Errorf("%w: expected %s", ErrUnexpectedShape, want)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
