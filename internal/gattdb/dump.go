package gattdb

import (
	"fmt"
	"io"
	"text/tabwriter"
)

// Dump writes the attribute table to w, one record per line.
func (db *Database) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "handle\tkind\ttype\tprops\tperm")
	for _, r := range db.records {
		props := ""
		if r.Kind == KindCharacteristic {
			props = fmt.Sprintf("%s -> 0x%04X", r.Properties, r.ValueHandle)
		}
		perm := r.Permissions.String()
		if r.MaxLen != 0 {
			perm = fmt.Sprintf("%s max=%d", perm, r.MaxLen)
		}
		fmt.Fprintf(tw, "0x%04X\t%s\t%s\t%s\t%s\n", r.Handle, r.Kind, UUIDName(r.UUID), props, perm)
	}
	return tw.Flush()
}

// Dump writes the index entries to w with their current values.
func (idx *Index) Dump(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "handle\tmax\tcur\tmutable\tvalue")
	for _, e := range idx.entries {
		fmt.Fprintf(tw, "0x%04X\t%d\t%d\t%t\t% X\n", e.Handle, e.MaxLen(), e.CurLen(), e.Buffer.Mutable(), e.Buffer.Bytes())
	}
	return tw.Flush()
}
