// Package output renders collection results for presentation. Formatters
// only read the Result; they never mutate it.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hostprobe/hostprobe/internal/metadata"
)

// Formatter renders one Result as a self-describing record.
type Formatter interface {
	Format(res *metadata.Result) ([]byte, error)
}

// JSONFormatter renders {success, type, identifier, error?, attributes}.
// Single-value attributes serialize as strings, multi-value as arrays, and
// empty as null. The object is built by hand rather than through a map:
// attribute order must survive, and duplicate names render as repeated keys.
type JSONFormatter struct {
	Pretty bool
}

func (f *JSONFormatter) Format(res *metadata.Result) ([]byte, error) {
	var buf bytes.Buffer

	nl, sp, in := "", "", ""
	if f.Pretty {
		nl, sp, in = "\n", " ", "  "
	}

	buf.WriteString("{" + nl)

	buf.WriteString(in + `"success":` + sp)
	if res.Success {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
	buf.WriteString("," + nl)

	if err := writeField(&buf, in, sp, "type", string(res.Type)); err != nil {
		return nil, err
	}
	buf.WriteString("," + nl)
	if err := writeField(&buf, in, sp, "identifier", res.Identifier); err != nil {
		return nil, err
	}
	buf.WriteString("," + nl)

	if !res.Success && res.Err != "" {
		if err := writeField(&buf, in, sp, "error", res.Err); err != nil {
			return nil, err
		}
		buf.WriteString("," + nl)
	}

	buf.WriteString(in + `"attributes":` + sp + "{" + nl)
	for i, attr := range res.Attributes {
		if i > 0 {
			buf.WriteString("," + nl)
		}
		buf.WriteString(in + in)
		if err := writeString(&buf, attr.Name); err != nil {
			return nil, err
		}
		buf.WriteString(":" + sp)
		if err := writeValues(&buf, sp, attr.Values); err != nil {
			return nil, err
		}
	}
	buf.WriteString(nl + in + "}" + nl)
	buf.WriteString("}")

	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, indent, sp, name, value string) error {
	buf.WriteString(indent)
	if err := writeString(buf, name); err != nil {
		return err
	}
	buf.WriteString(":" + sp)
	return writeString(buf, value)
}

func writeValues(buf *bytes.Buffer, sp string, values []string) error {
	switch len(values) {
	case 0:
		buf.WriteString("null")
		return nil
	case 1:
		return writeString(buf, values[0])
	}

	buf.WriteString("[")
	for i, v := range values {
		if i > 0 {
			buf.WriteString("," + sp)
		}
		if err := writeString(buf, v); err != nil {
			return err
		}
	}
	buf.WriteString("]")
	return nil
}

func writeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %q: %w", s, err)
	}
	buf.Write(b)
	return nil
}
