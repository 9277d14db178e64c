// Package decompress provides an http.RoundTripper that decodes compressed response bodies.
//
// net/http only decodes gzip transparently when it chose the Accept-Encoding header itself,
// clients that send their own Accept-Encoding have to decode the body on their own.
package decompress

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

type Transport struct {
	Base http.RoundTripper
}

// New wraps base, a nil base means http.DefaultTransport.
func New(base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{Base: base}
}

// Supported reports whether every encoding in a Content-Encoding header value can be decoded.
func Supported(contentEncoding string) bool {
	for _, enc := range parseEncodings(contentEncoding) {
		switch enc {
		case "gzip", "x-gzip", "deflate", "br", "zstd":
		default:
			return false
		}
	}
	return true
}

func parseEncodings(contentEncoding string) []string {
	var out []string
	for _, enc := range strings.Split(contentEncoding, ",") {
		enc = strings.ToLower(strings.TrimSpace(enc))
		if enc == "" || enc == "identity" {
			continue
		}
		out = append(out, enc)
	}
	return out
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	res, err := t.Base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if req.Method == http.MethodHead || res.Body == nil || res.Body == http.NoBody {
		return res, nil
	}

	contentEncoding := res.Header.Get("Content-Encoding")
	encodings := parseEncodings(contentEncoding)
	if len(encodings) == 0 || !Supported(contentEncoding) {
		return res, nil
	}

	res.Body = &lazyBody{raw: res.Body, encodings: encodings}
	res.Header.Del("Content-Encoding")
	res.Header.Del("Content-Length")
	res.ContentLength = -1
	res.Uncompressed = true
	return res, nil
}

// lazyBody defers creating the decoders until the first read, some servers send a
// Content-Encoding header on empty bodies (redirects, 204s).
type lazyBody struct {
	raw       io.ReadCloser
	encodings []string

	decoded io.Reader
	closers []io.Closer
	err     error
}

func (b *lazyBody) init() {
	var r io.Reader = b.raw
	// encodings are listed in the order they were applied
	for i := len(b.encodings) - 1; i >= 0; i-- {
		decoder, closer, err := newDecoder(b.encodings[i], r)
		if err != nil {
			b.err = fmt.Errorf("decompress %s: %w", b.encodings[i], err)
			return
		}
		if closer != nil {
			b.closers = append(b.closers, closer)
		}
		r = decoder
	}
	b.decoded = r
}

func (b *lazyBody) Read(p []byte) (int, error) {
	if b.decoded == nil && b.err == nil {
		b.init()
	}
	if b.err != nil {
		return 0, b.err
	}
	return b.decoded.Read(p)
}

func (b *lazyBody) Close() error {
	for _, c := range b.closers {
		c.Close()
	}
	return b.raw.Close()
}

type closerFunc func()

func (f closerFunc) Close() error {
	f()
	return nil
}

func newDecoder(encoding string, r io.Reader) (io.Reader, io.Closer, error) {
	switch encoding {
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(r)
		if err != nil {
			if err == io.EOF {
				return eofReader{}, nil, nil
			}
			return nil, nil, err
		}
		return zr, zr, nil
	case "deflate":
		return newDeflateReader(r)
	case "br":
		return brotli.NewReader(r), nil, nil
	case "zstd":
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, closerFunc(zr.Close), nil
	}
	return nil, nil, fmt.Errorf("unsupported content encoding %q", encoding)
}

// newDeflateReader handles both zlib wrapped deflate (what the RFC says) and raw deflate
// (what a number of servers actually send).
func newDeflateReader(r io.Reader) (io.Reader, io.Closer, error) {
	buffered := bufio.NewReader(r)
	header, err := buffered.Peek(2)
	if err == io.EOF || (err == nil && len(header) == 0) {
		return eofReader{}, nil, nil
	}
	if err != nil && len(header) < 2 {
		return nil, nil, err
	}

	if header[0]&0x0f == 8 && (uint16(header[0])<<8|uint16(header[1]))%31 == 0 {
		zr, err := zlib.NewReader(buffered)
		if err != nil {
			return nil, nil, err
		}
		return zr, zr, nil
	}

	fr := flate.NewReader(buffered)
	return fr, fr, nil
}

type eofReader struct{}

func (eofReader) Read([]byte) (int, error) {
	return 0, io.EOF
}
