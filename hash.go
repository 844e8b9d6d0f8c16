package litecache

import (
	"bytes"
	"crypto/md5"
	"hash"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// bufferPool holds buffers used to assemble artifacts before they are written.
var bufferPool = sync.Pool{
	New: func() any {
		return new(bytes.Buffer)
	},
}

// maxPooledBuffer keeps unusually large artifacts from pinning memory.
const maxPooledBuffer = 1 << 20 // 1MB

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// checksum returns the xxHash64 of a serialized blob.
func checksum(data []byte) uint64 {
	return xxhash.Sum64(data)
}

// defaultHashFunc returns the default key digest (128-bit MD5).
func defaultHashFunc() hash.Hash {
	return md5.New()
}
