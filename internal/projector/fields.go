package projector

import (
	"net/url"
	"strings"
)

// Fields is loosely-typed caller input: a decoded JSON object or form values.
type Fields map[string]any

func FromMap(m map[string]any) Fields {
	if m == nil {
		return Fields{}
	}
	return Fields(m)
}

// FromValues converts form or query values. Bracketed keys are nested:
// "qst[12]=1" becomes {"qst": {"12": "1"}} and "request_endos[]=5" appends
// to a list.
func FromValues(values url.Values) Fields {
	f := Fields{}
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if base, sub, ok := bracketKey(key); ok {
			if sub == "" {
				list, _ := f[base].([]any)
				for _, v := range vals {
					list = append(list, v)
				}
				f[base] = list
				continue
			}
			nested, _ := f[base].(map[string]any)
			if nested == nil {
				nested = map[string]any{}
			}
			nested[sub] = vals[len(vals)-1]
			f[base] = nested
			continue
		}
		if len(vals) == 1 {
			f[key] = vals[0]
			continue
		}
		list := make([]any, 0, len(vals))
		for _, v := range vals {
			list = append(list, v)
		}
		f[key] = list
	}
	return f
}

func bracketKey(key string) (base, sub string, ok bool) {
	open := strings.IndexByte(key, '[')
	if open <= 0 || !strings.HasSuffix(key, "]") {
		return "", "", false
	}
	return key[:open], key[open+1 : len(key)-1], true
}

func (f Fields) String(key string) (string, bool) {
	return toString(f[key])
}

func (f Fields) Float(key string) (float64, bool) {
	return toFloat(f[key])
}

func (f Fields) Int(key string) (int64, bool) {
	return toInt(f[key])
}

func (f Fields) Truthy(key string) bool {
	return truthy(f[key])
}

func (f Fields) Map(key string) (map[string]any, bool) {
	m, ok := f[key].(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	return m, true
}
