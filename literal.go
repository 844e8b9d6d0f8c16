package litecache

import (
	"cmp"
	"fmt"
	"go/ast"
	"go/token"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"
)

var (
	anyType       = reflect.TypeFor[any]()
	byteSliceType = reflect.TypeFor[[]byte]()
)

// predeclaredTypes maps the type names a literal may reference.
var predeclaredTypes = map[string]reflect.Type{
	"bool":    reflect.TypeFor[bool](),
	"string":  reflect.TypeFor[string](),
	"int":     reflect.TypeFor[int](),
	"int8":    reflect.TypeFor[int8](),
	"int16":   reflect.TypeFor[int16](),
	"int32":   reflect.TypeFor[int32](),
	"int64":   reflect.TypeFor[int64](),
	"uint":    reflect.TypeFor[uint](),
	"uint8":   reflect.TypeFor[uint8](),
	"uint16":  reflect.TypeFor[uint16](),
	"uint32":  reflect.TypeFor[uint32](),
	"uint64":  reflect.TypeFor[uint64](),
	"float32": reflect.TypeFor[float32](),
	"float64": reflect.TypeFor[float64](),
	"byte":    reflect.TypeFor[byte](),
	"rune":    reflect.TypeFor[rune](),
	"any":     anyType,
}

// isScalarType reports whether t is a predeclared boolean, numeric or string type.
func isScalarType(t reflect.Type) bool {
	if t.PkgPath() != "" || t.Name() == "" {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return t.Name() == t.Kind().String()
	}
	return false
}

func isByteSlice(t reflect.Type) bool {
	return t == byteSliceType
}

// literalType returns the Go type expression for t, or false when t has no
// literal form (named types, structs, pointers, arrays, channels, funcs).
func literalType(t reflect.Type) (string, bool) {
	switch {
	case t == anyType:
		return "any", true
	case isScalarType(t):
		return t.Name(), true
	case t.Name() != "":
		return "", false
	}

	switch t.Kind() {
	case reflect.Slice:
		elem, ok := literalType(t.Elem())
		return "[]" + elem, ok
	case reflect.Map:
		key, ok := literalType(t.Key())
		if !ok {
			return "", false
		}
		elem, ok := literalType(t.Elem())
		return "map[" + key + "]" + elem, ok
	}
	return "", false
}

// appendLiteral writes v as a typed Go expression that evalLiteral turns back
// into an identical value.
func appendLiteral(b *strings.Builder, v reflect.Value) error {
	if !v.IsValid() {
		b.WriteString("nil")
		return nil
	}
	if v.Kind() == reflect.Interface {
		if v.IsNil() {
			b.WriteString("nil")
			return nil
		}
		return appendLiteral(b, v.Elem())
	}

	t := v.Type()
	if isByteSlice(t) {
		if v.IsNil() {
			b.WriteString("[]byte(nil)")
			return nil
		}
		b.WriteString("[]byte(")
		b.WriteString(strconv.Quote(string(v.Bytes())))
		b.WriteByte(')')
		return nil
	}

	typ, ok := literalType(t)
	if !ok {
		return fmt.Errorf("type %s has no literal form", t)
	}

	switch t.Kind() {
	case reflect.Bool:
		b.WriteString(strconv.FormatBool(v.Bool()))
	case reflect.String:
		b.WriteString(strconv.Quote(v.String()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		fmt.Fprintf(b, "%s(%d)", typ, v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		fmt.Fprintf(b, "%s(%d)", typ, v.Uint())
	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float %v has no literal form", f)
		}
		fmt.Fprintf(b, "%s(%s)", typ, strconv.FormatFloat(f, 'g', -1, t.Bits()))
	case reflect.Slice:
		if v.IsNil() {
			b.WriteString(typ + "(nil)")
			return nil
		}
		b.WriteString(typ + "{")
		for i := range v.Len() {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := appendLiteral(b, v.Index(i)); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case reflect.Map:
		if v.IsNil() {
			b.WriteString(typ + "(nil)")
			return nil
		}
		return appendMapLiteral(b, typ, v)
	default:
		return fmt.Errorf("type %s has no literal form", t)
	}
	return nil
}

// appendMapLiteral writes entries sorted by their encoded key so that equal
// maps always produce identical artifacts.
func appendMapLiteral(b *strings.Builder, typ string, v reflect.Value) error {
	type entry struct{ key, value string }
	entries := make([]entry, 0, v.Len())

	iter := v.MapRange()
	for iter.Next() {
		var kb, vb strings.Builder
		if err := appendLiteral(&kb, iter.Key()); err != nil {
			return err
		}
		if err := appendLiteral(&vb, iter.Value()); err != nil {
			return err
		}
		entries = append(entries, entry{kb.String(), vb.String()})
	}
	slices.SortFunc(entries, func(a, b entry) int { return cmp.Compare(a.key, b.key) })

	b.WriteString(typ + "{")
	for i, e := range entries {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(e.key)
		b.WriteString(": ")
		b.WriteString(e.value)
	}
	b.WriteByte('}')
	return nil
}

// evalLiteral evaluates a literal expression produced by appendLiteral into a
// value assignable to want.
func evalLiteral(expr ast.Expr, want reflect.Type) (reflect.Value, error) {
	v, err := evalExpr(expr, want)
	if err != nil {
		return reflect.Value{}, err
	}
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), want)
	}
	return v, nil
}

func evalExpr(expr ast.Expr, want reflect.Type) (reflect.Value, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return evalExpr(e.X, want)

	case *ast.Ident:
		switch e.Name {
		case "nil":
			switch want.Kind() {
			case reflect.Interface, reflect.Slice, reflect.Map:
				return reflect.Zero(want), nil
			}
			return reflect.Value{}, fmt.Errorf("nil is not a valid %s", want)
		case "true", "false":
			return reflect.ValueOf(e.Name == "true"), nil
		}
		return reflect.Value{}, fmt.Errorf("unknown identifier %q", e.Name)

	case *ast.BasicLit:
		switch e.Kind {
		case token.STRING:
			s, err := strconv.Unquote(e.Value)
			if err != nil {
				return reflect.Value{}, fmt.Errorf("bad string literal %s: %w", e.Value, err)
			}
			return reflect.ValueOf(s), nil
		case token.INT:
			return evalNumber(e, predeclaredTypes["int"])
		case token.FLOAT:
			return evalNumber(e, predeclaredTypes["float64"])
		}
		return reflect.Value{}, fmt.Errorf("unsupported literal %s", e.Value)

	case *ast.CallExpr:
		return evalConversion(e)

	case *ast.CompositeLit:
		return evalComposite(e)
	}
	return reflect.Value{}, fmt.Errorf("unsupported expression %T", expr)
}

// evalConversion handles T(x) where T is a scalar, []byte, slice or map type.
func evalConversion(call *ast.CallExpr) (reflect.Value, error) {
	if len(call.Args) != 1 || call.Ellipsis.IsValid() {
		return reflect.Value{}, fmt.Errorf("conversion takes exactly one argument")
	}
	t, err := typeFromExpr(call.Fun)
	if err != nil {
		return reflect.Value{}, err
	}
	arg := call.Args[0]

	if id, ok := arg.(*ast.Ident); ok && id.Name == "nil" {
		if t.Kind() == reflect.Slice || t.Kind() == reflect.Map {
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot convert nil to %s", t)
	}

	switch t.Kind() {
	case reflect.Slice:
		if !isByteSlice(t) {
			return reflect.Value{}, fmt.Errorf("cannot convert to %s", t)
		}
		s, err := evalExpr(arg, predeclaredTypes["string"])
		if err != nil {
			return reflect.Value{}, err
		}
		if s.Kind() != reflect.String {
			return reflect.Value{}, fmt.Errorf("[]byte conversion needs a string")
		}
		return reflect.ValueOf([]byte(s.String())), nil
	case reflect.Bool, reflect.String:
		v, err := evalExpr(arg, t)
		if err != nil {
			return reflect.Value{}, err
		}
		if v.Type() != t {
			return reflect.Value{}, fmt.Errorf("cannot convert %s to %s", v.Type(), t)
		}
		return v, nil
	}
	return evalNumber(arg, t)
}

// evalNumber parses an optionally negated numeric literal as type t.
func evalNumber(expr ast.Expr, t reflect.Type) (reflect.Value, error) {
	neg := false
	if u, ok := expr.(*ast.UnaryExpr); ok {
		switch u.Op {
		case token.SUB:
			neg = true
		case token.ADD:
		default:
			return reflect.Value{}, fmt.Errorf("unsupported operator %s", u.Op)
		}
		expr = u.X
	}
	lit, ok := expr.(*ast.BasicLit)
	if !ok || (lit.Kind != token.INT && lit.Kind != token.FLOAT) {
		return reflect.Value{}, fmt.Errorf("expected numeric literal for %s", t)
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s := lit.Value
		if neg {
			s = "-" + s
		}
		n, err := strconv.ParseInt(s, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if neg {
			return reflect.Value{}, fmt.Errorf("negative value for %s", t)
		}
		n, err := strconv.ParseUint(lit.Value, 0, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(lit.Value, t.Bits())
		if err != nil {
			return reflect.Value{}, err
		}
		if neg {
			f = -f
		}
		v.SetFloat(f)
	default:
		return reflect.Value{}, fmt.Errorf("%s is not numeric", t)
	}
	return v, nil
}

func evalComposite(lit *ast.CompositeLit) (reflect.Value, error) {
	if lit.Type == nil {
		return reflect.Value{}, fmt.Errorf("composite literal without type")
	}
	t, err := typeFromExpr(lit.Type)
	if err != nil {
		return reflect.Value{}, err
	}

	switch t.Kind() {
	case reflect.Slice:
		out := reflect.MakeSlice(t, 0, len(lit.Elts))
		for _, elt := range lit.Elts {
			v, err := evalLiteral(elt, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out = reflect.Append(out, v)
		}
		return out, nil
	case reflect.Map:
		out := reflect.MakeMapWithSize(t, len(lit.Elts))
		for _, elt := range lit.Elts {
			kv, ok := elt.(*ast.KeyValueExpr)
			if !ok {
				return reflect.Value{}, fmt.Errorf("map literal element is not key: value")
			}
			k, err := evalLiteral(kv.Key, t.Key())
			if err != nil {
				return reflect.Value{}, err
			}
			v, err := evalLiteral(kv.Value, t.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			out.SetMapIndex(k, v)
		}
		return out, nil
	}
	return reflect.Value{}, fmt.Errorf("composite literal of %s", t)
}

// typeFromExpr resolves a type expression built by literalType.
func typeFromExpr(expr ast.Expr) (reflect.Type, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return typeFromExpr(e.X)
	case *ast.Ident:
		if t, ok := predeclaredTypes[e.Name]; ok {
			return t, nil
		}
		return nil, fmt.Errorf("unknown type %q", e.Name)
	case *ast.InterfaceType:
		if e.Methods != nil && len(e.Methods.List) > 0 {
			return nil, fmt.Errorf("non-empty interface type")
		}
		return anyType, nil
	case *ast.ArrayType:
		if e.Len != nil {
			return nil, fmt.Errorf("array types are not supported")
		}
		elem, err := typeFromExpr(e.Elt)
		if err != nil {
			return nil, err
		}
		return reflect.SliceOf(elem), nil
	case *ast.MapType:
		key, err := typeFromExpr(e.Key)
		if err != nil {
			return nil, err
		}
		if !key.Comparable() {
			return nil, fmt.Errorf("map key %s is not comparable", key)
		}
		elem, err := typeFromExpr(e.Value)
		if err != nil {
			return nil, err
		}
		return reflect.MapOf(key, elem), nil
	}
	return nil, fmt.Errorf("unsupported type expression %T", expr)
}
