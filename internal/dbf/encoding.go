package dbf

import (
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
)

// LookupEncoding resolves a charset name. Latin-1 labels map to true
// ISO-8859-1; htmlindex would map them to windows-1252, which differs in
// 0x80-0x9F.
func LookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "latin1", "latin-1", "latin_1", "iso-8859-1", "iso8859-1", "iso8859_1", "l1":
		return charmap.ISO8859_1, nil
	case "cp850", "ibm850":
		return charmap.CodePage850, nil
	case "cp437", "ibm437":
		return charmap.CodePage437, nil
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, eris.Wrapf(err, "dbf: unsupported encoding %q", name)
	}
	return enc, nil
}
