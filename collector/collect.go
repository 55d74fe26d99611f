package collector

import (
	"errors"
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"

	"github.com/ozontech/bodyflow/flow/policy"
	"github.com/ozontech/bodyflow/flow/types"
	"github.com/ozontech/bodyflow/future"
)

var errUnsupportedCharset = errors.New("unsupported charset")

var (
	// ASCII decodes bytes above 0x7f as U+FFFD.
	ASCII = mustLookupCharset("US-ASCII")
	UTF8  = unicode.UTF8
)

// CollectAsync subscribes a new Collector to p and returns its result without
// waiting.
func CollectAsync(p types.Publisher[[]byte], opts ...Option) *future.Future[[]byte] {
	c := New(opts...)
	p.Subscribe(c)
	return c.Result()
}

// Collect blocks until p terminates. The publisher's error is returned as is.
func Collect(p types.Publisher[[]byte], opts ...Option) ([]byte, error) {
	return CollectAsync(p, opts...).Join()
}

func CollectStringAsync(p types.Publisher[[]byte], enc encoding.Encoding, opts ...Option) *future.Future[string] {
	return future.Map(CollectAsync(p, opts...), policy.SyncExecutor, func(b []byte) (string, error) {
		return Decode(b, enc)
	})
}

func CollectString(p types.Publisher[[]byte], enc encoding.Encoding, opts ...Option) (string, error) {
	return CollectStringAsync(p, enc, opts...).Join()
}

func CollectASCII(p types.Publisher[[]byte], opts ...Option) (string, error) {
	return CollectString(p, ASCII, opts...)
}

func CollectUTF8(p types.Publisher[[]byte], opts ...Option) (string, error) {
	return CollectString(p, UTF8, opts...)
}

// Decode replaces malformed sequences with U+FFFD, it fails only when enc
// itself is unusable.
func Decode(b []byte, enc encoding.Encoding) (string, error) {
	if enc == nil {
		enc = UTF8
	}
	out, err := enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	return string(out), nil
}

// LookupCharset resolves an IANA charset name such as "utf-8" or "ISO-8859-1".
func LookupCharset(name string) (encoding.Encoding, error) {
	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("charset %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("charset %q: %w", name, errUnsupportedCharset)
	}
	return enc, nil
}

func mustLookupCharset(name string) encoding.Encoding {
	enc, err := LookupCharset(name)
	if err != nil {
		panic("assertion error: " + err.Error())
	}
	return enc
}
