package litecache

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io"
	"io/fs"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/afero"
)

const (
	// haltMarker ends the code section of a Complex artifact; the blob follows.
	haltMarker = "\n//litecache:halt\n"

	// poolDirective records the pool an artifact belongs to.
	poolDirective = "//litecache:pool "

	// loadFunc is the function every artifact defines.
	loadFunc = "Load"

	// blobFunc marks a Complex payload reference.
	blobFunc = "blob"

	headerTimeLayout = time.RFC3339
)

// artifactHeader is the metadata written at the top of every artifact.
type artifactHeader struct {
	kind      Complexity
	key       string
	pool      string
	createdAt time.Time
	ttl       TTL
}

// expired reports whether an artifact with this header is stale at now.
func (h *artifactHeader) expired(now time.Time) bool {
	switch {
	case h.ttl == Never:
		return false
	case h.ttl == Immediate:
		return true
	}
	end, ok := deadline(h.createdAt.Unix(), h.ttl)
	return ok && now.Unix() > end
}

// deadline returns the last second an artifact created at createdAt stays
// fresh. ok is false when the sum does not fit in an int64.
func deadline(createdAt int64, ttl TTL) (end int64, ok bool) {
	return addInt64(createdAt, int64(ttl))
}

// addInt64 returns x+y and whether the sum did not overflow.
func addInt64(x, y int64) (int64, bool) {
	if (y > 0 && x > math.MaxInt64-y) || (y < 0 && x < math.MinInt64-y) {
		return 0, false
	}
	return x + y, true
}

// artifact is a parsed, fresh artifact.
type artifact struct {
	payload ast.Expr // literal expression, nil for blobs
	blob    *blobRef
}

// blobRef locates and authenticates a serialized payload.
type blobRef struct {
	serializer string
	data       []byte
	sum        uint64
}

// escapeComment makes s safe inside a single line comment.
func escapeComment(s string) string {
	s = strings.ReplaceAll(s, "*/", `*\/`)
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r':
			return ' '
		case unicode.IsControl(r):
			return '?'
		}
		return r
	}, s)
}

// guardExpr returns the expiry condition embedded in the artifact.
func guardExpr(createdAt int64, ttl TTL) string {
	switch ttl {
	case Never:
		return "false"
	case Immediate:
		return "true"
	}
	return fmt.Sprintf("now > %d+%d", createdAt, int64(ttl))
}

// encodeArtifact writes the artifact for value into buf. Simple values are
// embedded as literals; Complex values are serialized with ser and appended
// after haltMarker.
func encodeArtifact(buf *bytes.Buffer, h artifactHeader, value any, ser Serializer) error {
	var payload strings.Builder
	var blob []byte

	if h.kind == Simple {
		if err := appendLiteral(&payload, reflect.ValueOf(value)); err != nil {
			return err
		}
	} else {
		data, err := ser.Marshal(value)
		if err != nil {
			return fmt.Errorf("serialize with %s: %w", ser.Name(), err)
		}
		blob = data
		fmt.Fprintf(&payload, "%s(%s, %d, %#x)", blobFunc, strconv.Quote(ser.Name()), len(blob), checksum(blob))
	}

	fmt.Fprintf(buf, "// %s '%s' %s %s\n", h.kind, escapeComment(h.key),
		h.createdAt.UTC().Format(headerTimeLayout), h.ttl)
	fmt.Fprintf(buf, "%s%s\n", poolDirective, h.pool)
	buf.WriteString("package artifact\n\n")
	fmt.Fprintf(buf, "func %s(now int64) []any {\n", loadFunc)
	fmt.Fprintf(buf, "\tif %s {\n\t\treturn nil\n\t}\n", guardExpr(h.createdAt.Unix(), h.ttl))
	fmt.Fprintf(buf, "\treturn []any{%s}\n}\n", payload.String())

	if h.kind == Complex {
		buf.WriteString(strings.TrimPrefix(haltMarker, "\n"))
		buf.Write(blob)
	}
	return nil
}

// parseHeader parses the first two lines of an artifact.
func parseHeader(first, second string) (*artifactHeader, error) {
	line, ok := strings.CutPrefix(strings.TrimRight(first, "\r\n"), "// ")
	if !ok {
		return nil, fmt.Errorf("missing header comment")
	}

	fields := strings.Fields(line)
	if len(fields) < 4 {
		return nil, fmt.Errorf("short header %q", line)
	}

	h := &artifactHeader{}
	switch fields[0] {
	case Simple.String():
		h.kind = Simple
	case Complex.String():
		h.kind = Complex
	default:
		return nil, fmt.Errorf("unknown kind %q", fields[0])
	}

	created, err := time.Parse(headerTimeLayout, fields[len(fields)-2])
	if err != nil {
		return nil, fmt.Errorf("bad header timestamp: %w", err)
	}
	h.createdAt = created

	h.ttl, err = parseHeaderTTL(fields[len(fields)-1])
	if err != nil {
		return nil, err
	}

	start := strings.Index(line, " '")
	end := strings.LastIndex(line, "' ")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("header key is not quoted")
	}
	h.key = line[start+2 : end]

	if pool, ok := strings.CutPrefix(strings.TrimRight(second, "\r\n"), poolDirective); ok {
		h.pool = pool
	}
	return h, nil
}

// parseHeaderTTL reads the HH:MM:SS or "never" header field.
func parseHeaderTTL(s string) (TTL, error) {
	if s == Never.String() {
		return Never, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, fmt.Errorf("bad header ttl %q", s)
	}
	var total int64
	for i, mul := range []int64{3600, 60, 1} {
		n, err := strconv.ParseInt(parts[i], 10, 64)
		if err != nil || n < 0 || n > (math.MaxInt64-total)/mul {
			return 0, fmt.Errorf("bad header ttl %q", s)
		}
		total += n * mul
	}
	return TTL(total), nil
}

// readHeader reads only the header lines of the artifact at path.
func (c *Cache) readHeader(path string) (*artifactHeader, error) {
	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	first, err := r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	second, err := r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}

	h, err := parseHeader(first, second)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	return h, nil
}

// readArtifact loads and evaluates the artifact at path. It returns
// ErrCacheMiss when the file is absent, empty, expired or yields no value,
// and an error wrapping ErrCacheRead when the file is malformed.
func (c *Cache) readArtifact(path string) (*artifact, error) {
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}

	a, err := evalArtifact(data, c.now().Unix())
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	return a, nil
}

// evalArtifact evaluates artifact source at time now (unix seconds).
func evalArtifact(data []byte, now int64) (*artifact, error) {
	if len(data) == 0 {
		return nil, ErrCacheMiss
	}

	code, blob, hasBlob := bytes.Cut(data, []byte(haltMarker))
	file, err := parser.ParseFile(token.NewFileSet(), "", code, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	var load *ast.FuncDecl
	for _, decl := range file.Decls {
		if fn, ok := decl.(*ast.FuncDecl); ok && fn.Name.Name == loadFunc && fn.Recv == nil {
			load = fn
			break
		}
	}
	if load == nil || load.Body == nil || len(load.Body.List) != 2 {
		return nil, fmt.Errorf("missing or malformed %s function", loadFunc)
	}

	guard, ok := load.Body.List[0].(*ast.IfStmt)
	if !ok || guard.Init != nil || guard.Else != nil || !returnsNil(guard.Body) {
		return nil, fmt.Errorf("malformed expiry guard")
	}
	expired, err := evalGuard(guard.Cond, now)
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, ErrCacheMiss
	}

	ret, ok := load.Body.List[1].(*ast.ReturnStmt)
	if !ok || len(ret.Results) != 1 {
		return nil, fmt.Errorf("malformed return")
	}
	if isNilIdent(ret.Results[0]) {
		return nil, ErrCacheMiss
	}
	wrapper, ok := ret.Results[0].(*ast.CompositeLit)
	if !ok || wrapper.Type == nil {
		return nil, fmt.Errorf("return value is not a container")
	}
	if t, err := typeFromExpr(wrapper.Type); err != nil || t != reflect.SliceOf(anyType) {
		return nil, fmt.Errorf("return value is not []any")
	}
	switch len(wrapper.Elts) {
	case 0:
		return nil, ErrCacheMiss
	case 1:
	default:
		return nil, fmt.Errorf("container holds %d values", len(wrapper.Elts))
	}

	payload := wrapper.Elts[0]
	call, ok := payload.(*ast.CallExpr)
	if !ok || !isIdent(call.Fun, blobFunc) {
		return &artifact{payload: payload}, nil
	}

	if !hasBlob {
		return nil, fmt.Errorf("blob payload without %q marker", strings.TrimSpace(haltMarker))
	}
	ref, err := parseBlobRef(call, blob)
	if err != nil {
		return nil, err
	}
	return &artifact{blob: ref}, nil
}

// evalGuard evaluates true, false or now > created+ttl.
func evalGuard(cond ast.Expr, now int64) (bool, error) {
	switch e := cond.(type) {
	case *ast.ParenExpr:
		return evalGuard(e.X, now)
	case *ast.Ident:
		switch e.Name {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
	case *ast.BinaryExpr:
		if e.Op != token.GTR || !isIdent(e.X, "now") {
			break
		}
		deadline, err := evalSum(e.Y)
		if err != nil {
			return false, err
		}
		return now > deadline, nil
	}
	return false, fmt.Errorf("malformed expiry condition")
}

// evalSum evaluates an integer literal or a sum of integer literals.
func evalSum(expr ast.Expr) (int64, error) {
	switch e := expr.(type) {
	case *ast.ParenExpr:
		return evalSum(e.X)
	case *ast.BasicLit:
		if e.Kind != token.INT {
			break
		}
		return strconv.ParseInt(e.Value, 0, 64)
	case *ast.BinaryExpr:
		if e.Op != token.ADD {
			break
		}
		x, err := evalSum(e.X)
		if err != nil {
			return 0, err
		}
		y, err := evalSum(e.Y)
		if err != nil {
			return 0, err
		}
		sum, ok := addInt64(x, y)
		if !ok {
			return 0, fmt.Errorf("expiry deadline overflows")
		}
		return sum, nil
	}
	return 0, fmt.Errorf("malformed expiry deadline")
}

// parseBlobRef validates blob("name", length, checksum) against the bytes
// following the halt marker.
func parseBlobRef(call *ast.CallExpr, blob []byte) (*blobRef, error) {
	if len(call.Args) != 3 {
		return nil, fmt.Errorf("blob reference needs 3 arguments")
	}

	nameLit, ok := call.Args[0].(*ast.BasicLit)
	if !ok || nameLit.Kind != token.STRING {
		return nil, fmt.Errorf("blob serializer is not a string")
	}
	name, err := strconv.Unquote(nameLit.Value)
	if err != nil {
		return nil, fmt.Errorf("blob serializer: %w", err)
	}

	lengthLit, ok := call.Args[1].(*ast.BasicLit)
	if !ok || lengthLit.Kind != token.INT {
		return nil, fmt.Errorf("blob length is not an integer")
	}
	length, err := strconv.ParseInt(lengthLit.Value, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("blob length: %w", err)
	}

	sumLit, ok := call.Args[2].(*ast.BasicLit)
	if !ok || sumLit.Kind != token.INT {
		return nil, fmt.Errorf("blob checksum is not an integer")
	}
	sum, err := strconv.ParseUint(sumLit.Value, 0, 64)
	if err != nil {
		return nil, fmt.Errorf("blob checksum: %w", err)
	}

	if int64(len(blob)) != length {
		return nil, fmt.Errorf("blob is %d bytes, header says %d", len(blob), length)
	}
	if checksum(blob) != sum {
		return nil, fmt.Errorf("blob checksum mismatch")
	}
	return &blobRef{serializer: name, data: blob, sum: sum}, nil
}

// decodePayload turns a fresh artifact into its value. Blobs are looked up in
// the memo before being deserialized.
func (c *Cache) decodePayload(path string, a *artifact) (any, error) {
	if a.blob == nil {
		v, err := evalLiteral(a.payload, anyType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
		}
		return v.Interface(), nil
	}

	if v, ok := c.memo.get(path, a.blob.sum); ok {
		return v, nil
	}

	ser, ok := c.serializers[a.blob.serializer]
	if !ok {
		return nil, fmt.Errorf("%w: %s: unknown serializer %q", ErrCacheRead, path, a.blob.serializer)
	}
	v, err := ser.Unmarshal(a.blob.data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	c.memo.put(path, a.blob.sum, v)
	return v, nil
}

func returnsNil(body *ast.BlockStmt) bool {
	if body == nil || len(body.List) != 1 {
		return false
	}
	ret, ok := body.List[0].(*ast.ReturnStmt)
	return ok && len(ret.Results) == 1 && isNilIdent(ret.Results[0])
}

func isNilIdent(expr ast.Expr) bool {
	return isIdent(expr, "nil")
}

func isIdent(expr ast.Expr, name string) bool {
	id, ok := expr.(*ast.Ident)
	return ok && id.Name == name
}
