package apiparam

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"sort"
	"strconv"

	"github.com/roach88/appframe/internal/ir"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Source provides raw parameter values.
type Source interface {
	Get(name string) (string, bool)
}

// MapSource is a Source backed by a map.
type MapSource map[string]string

// Get implements Source.
func (m MapSource) Get(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// JSONBodySource is the Source of a request with a JSON object body. It
// keeps each body member in its encoded form as well, so json params read
// `{"data": "x"}` as the JSON string "x".
type JSONBodySource struct {
	MapSource
	raw map[string]json.RawMessage
}

// RawJSON returns the encoded body member name.
func (s JSONBodySource) RawJSON(name string) (string, bool) {
	raw, ok := s.raw[name]
	if !ok {
		return "", false
	}
	return string(raw), true
}

// FromRequest reads parameters from the query string, a form body or a
// JSON object body. Body values win over query values. JSON null members
// count as absent. Non-string JSON members are kept in their JSON form, so `{"id": 5}` yields "5" and
// `{"filter": {"a": 1}}` yields `{"a":1}`.
func FromRequest(r *http.Request) (Source, error) {
	values := MapSource{}
	for name, vs := range r.URL.Query() {
		if len(vs) > 0 {
			values[name] = vs[0]
		}
	}
	if r.Body == nil || r.Method == http.MethodGet {
		return values, nil
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/json":
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(data) == 0 {
			return values, nil
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, fmt.Errorf("request body must be a JSON object: %w", err)
		}
		src := JSONBodySource{MapSource: values, raw: make(map[string]json.RawMessage, len(obj))}
		for name, raw := range obj {
			if string(raw) == "null" {
				continue
			}
			s, err := rawString(raw)
			if err != nil {
				return nil, fmt.Errorf("param %s: %w", name, err)
			}
			values[name] = s
			src.raw[name] = raw
		}
		return src, nil

	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for name, vs := range r.PostForm {
			if len(vs) > 0 {
				values[name] = vs[0]
			}
		}

	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		for name, vs := range r.PostForm {
			if len(vs) > 0 {
				values[name] = vs[0]
			}
		}
	}
	return values, nil
}

// rawString converts a JSON member to the raw string a param validates.
func rawString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	v, err := ir.UnmarshalIRValue(raw)
	if err != nil {
		return "", err
	}
	switch val := v.(type) {
	case ir.IRInt:
		return strconv.FormatInt(int64(val), 10), nil
	case ir.IRBool:
		return strconv.FormatBool(bool(val)), nil
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Names returns the provided names, sorted.
func (m MapSource) Names() []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
