package cache

import (
	"strconv"
	"strings"
)

// Key identifies one memoized computation: the fingerprint of the dataset it
// ran on, the operation name and its canonicalized parameters. Callers put
// parameters in canonical form (sorted value sets, ordered column tuples)
// before building the key.
type Key struct {
	Dataset string
	Op      string
	Params  []string
}

// NewKey builds a Key.
func NewKey(dataset, op string, params ...string) Key {
	return Key{Dataset: dataset, Op: op, Params: params}
}

// String encodes the key unambiguously. Every component is length-prefixed
// so that ("a,b") and ("a", "b") never collide.
func (k Key) String() string {
	var b strings.Builder
	write := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	write(k.Dataset)
	write(k.Op)
	b.WriteString(strconv.Itoa(len(k.Params)))
	b.WriteByte('#')
	for _, p := range k.Params {
		write(p)
	}
	return b.String()
}
