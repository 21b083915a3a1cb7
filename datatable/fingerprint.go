package datatable

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a content hash of the dataset: column names, column
// types and every cell. Cells are hashed in their exact text form, so
// decimals are not rounded through float64. Two datasets with the same
// fingerprint hold the same table. The hash is computed once.
func (d *Dataset) Fingerprint() string {
	d.fpOnce.Do(func() {
		h := xxhash.New()

		var lenBuf [8]byte
		writeField := func(s string) {
			binary.BigEndian.PutUint64(lenBuf[:], uint64(len(s)))
			_, _ = h.Write(lenBuf[:])
			_, _ = h.WriteString(s)
		}

		writeField(fmt.Sprintf("%d:%d", len(d.columns), d.rows))
		for i, col := range d.columns {
			field := d.schema.Field(i)
			writeField(field.Name)
			writeField(field.Type.String())
			for row := 0; row < d.rows; row++ {
				if col.IsNull(row) {
					_, _ = h.Write([]byte{0})
					continue
				}
				_, _ = h.Write([]byte{1})
				writeField(col.ValueStr(row))
			}
		}

		d.fp = fmt.Sprintf("%016x", h.Sum64())
	})
	return d.fp
}
