package litecache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"go/parser"
	"reflect"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer turns Complex values into blobs and back. The name is recorded
// in every artifact so the reader can pick the matching serializer.
type Serializer interface {
	Name() string
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte) (any, error)
}

func init() {
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// Register records the concrete type of value so GobSerializer can restore
// it from a blob. Call it once per stored named type, and for containers of
// named types such as []T. Slices and maps built only from predeclared types
// and any are handled automatically.
func Register(value any) {
	gob.Register(value)
}

// RegisterName is like Register but uses name as the type identifier.
func RegisterName(name string, value any) {
	gob.RegisterName(name, value)
}

// GobSerializer is the default Serializer. Values come back with their
// original concrete types provided those types were registered.
type GobSerializer struct{}

// gobTypes precedes the envelope and lists the built-in composite types the
// value carries, so the reader can register them before decoding.
type gobTypes struct {
	Names []string
}

type gobEnvelope struct {
	V any
}

// Name implements Serializer.
func (GobSerializer) Name() string { return "gob" }

// Marshal implements Serializer.
func (GobSerializer) Marshal(v any) ([]byte, error) {
	w := &compositeWalker{
		seen:    make(map[reflect.Type]bool),
		visited: make(map[visitKey]bool),
	}
	w.walk(reflect.ValueOf(v))

	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(&gobTypes{Names: w.names}); err != nil {
		return nil, err
	}
	if err := enc.Encode(&gobEnvelope{V: v}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal implements Serializer.
func (GobSerializer) Unmarshal(data []byte) (any, error) {
	dec := gob.NewDecoder(bytes.NewReader(data))

	var types gobTypes
	if err := dec.Decode(&types); err != nil {
		return nil, err
	}
	for _, name := range types.Names {
		if err := registerTypeName(name); err != nil {
			return nil, err
		}
	}

	var env gobEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, err
	}
	return env.V, nil
}

// gobRegistered remembers the unnamed types already handed to gob.
var gobRegistered sync.Map

// registerType registers an unnamed composite type with gob. A conflicting
// registration made through RegisterName is left in place.
func registerType(t reflect.Type) {
	if _, loaded := gobRegistered.LoadOrStore(t, true); loaded {
		return
	}
	defer func() { _ = recover() }()
	gob.Register(reflect.Zero(t).Interface())
}

// registerTypeName registers the composite type spelled by name.
func registerTypeName(name string) error {
	expr, err := parser.ParseExpr(name)
	if err != nil {
		return fmt.Errorf("type %q: %w", name, err)
	}
	t, err := typeFromExpr(expr)
	if err != nil {
		return fmt.Errorf("type %q: %w", name, err)
	}
	registerType(t)
	return nil
}

type visitKey struct {
	ptr uintptr
	len int
}

// compositeWalker finds the unnamed slice, array and map types reachable
// from a value. Each is registered with gob; those that have a literal
// spelling are collected in names.
type compositeWalker struct {
	names   []string
	seen    map[reflect.Type]bool
	visited map[visitKey]bool
}

func (w *compositeWalker) add(t reflect.Type) {
	if t.Name() != "" || w.seen[t] {
		return
	}
	w.seen[t] = true
	registerType(t)
	if name, ok := literalType(t); ok {
		w.names = append(w.names, name)
	}
}

// visit reports whether the reference was already walked.
func (w *compositeWalker) visit(ptr uintptr, n int) bool {
	k := visitKey{ptr: ptr, len: n}
	if w.visited[k] {
		return true
	}
	w.visited[k] = true
	return false
}

func (w *compositeWalker) walk(v reflect.Value) {
	if !v.IsValid() {
		return
	}

	switch v.Kind() {
	case reflect.Interface:
		if !v.IsNil() {
			w.walk(v.Elem())
		}
	case reflect.Pointer:
		if v.IsNil() || w.visit(v.Pointer(), -1) {
			return
		}
		w.walk(v.Elem())
	case reflect.Struct:
		t := v.Type()
		for i := range t.NumField() {
			if t.Field(i).IsExported() {
				w.walk(v.Field(i))
			}
		}
	case reflect.Slice, reflect.Array:
		w.add(v.Type())
		if v.Kind() == reflect.Slice && (v.IsNil() || w.visit(v.Pointer(), v.Len())) {
			return
		}
		if !mayHoldComposites(v.Type().Elem()) {
			return
		}
		for i := range v.Len() {
			w.walk(v.Index(i))
		}
	case reflect.Map:
		w.add(v.Type())
		if v.IsNil() || w.visit(v.Pointer(), -2) {
			return
		}
		t := v.Type()
		if !mayHoldComposites(t.Key()) && !mayHoldComposites(t.Elem()) {
			return
		}
		iter := v.MapRange()
		for iter.Next() {
			w.walk(iter.Key())
			w.walk(iter.Value())
		}
	}
}

// mayHoldComposites reports whether values of t can contain slices, arrays
// or maps.
func mayHoldComposites(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Struct, reflect.Slice, reflect.Array, reflect.Map:
		return true
	}
	return false
}

// MsgpackSerializer stores blobs as msgpack. Structs decode as
// map[string]any, integers as int64 and floats as float64.
type MsgpackSerializer struct{}

// Name implements Serializer.
func (MsgpackSerializer) Name() string { return "msgpack" }

// Marshal implements Serializer.
func (MsgpackSerializer) Marshal(v any) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Unmarshal implements Serializer.
func (MsgpackSerializer) Unmarshal(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
