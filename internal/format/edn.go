package format

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"
	"strings"
)

// WriteEDN writes v as EDN: objects become maps with keyword keys, arrays
// vectors. v goes through encoding/json first so json tags decide the keys.
func WriteEDN(w io.Writer, v any, pretty bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var x any
	if err := dec.Decode(&x); err != nil {
		return err
	}

	p := ednPrinter{pretty: pretty}
	p.value(x, 0)
	p.buf.WriteByte('\n')
	_, err = w.Write(p.buf.Bytes())
	return err
}

type ednPrinter struct {
	buf    bytes.Buffer
	pretty bool
}

func (p *ednPrinter) value(v any, depth int) {
	switch t := v.(type) {
	case nil:
		p.buf.WriteString("nil")
	case bool:
		p.buf.WriteString(strconv.FormatBool(t))
	case json.Number:
		p.buf.WriteString(t.String())
	case string:
		p.buf.WriteString(strconv.Quote(t))
	case []any:
		p.buf.WriteByte('[')
		for i, x := range t {
			p.sep(i, depth+1)
			p.value(x, depth+1)
		}
		p.close(len(t), depth)
		p.buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.buf.WriteByte('{')
		for i, k := range keys {
			p.sep(i, depth+1)
			p.buf.WriteString(keyword(k))
			p.buf.WriteByte(' ')
			p.value(t[k], depth+1)
		}
		p.close(len(keys), depth)
		p.buf.WriteByte('}')
	}
}

// sep goes before the i-th element of a collection.
func (p *ednPrinter) sep(i, depth int) {
	if p.pretty {
		p.buf.WriteByte('\n')
		p.buf.WriteString(strings.Repeat("  ", depth))
		return
	}
	if i > 0 {
		p.buf.WriteByte(' ')
	}
}

func (p *ednPrinter) close(n, depth int) {
	if p.pretty && n > 0 {
		p.buf.WriteByte('\n')
		p.buf.WriteString(strings.Repeat("  ", depth))
	}
}

// keyword turns a JSON key into an EDN keyword. Characters EDN does not allow
// in symbols become dashes.
func keyword(k string) string {
	var b strings.Builder
	b.WriteByte(':')
	for _, r := range strings.TrimSpace(k) {
		switch {
		case r == ' ' || r == ',' || r == '"' || r == ';' || r == '(' || r == ')' || r == '[' || r == ']' || r == '{' || r == '}':
			b.WriteByte('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 1 {
		b.WriteByte('_')
	}
	return b.String()
}
