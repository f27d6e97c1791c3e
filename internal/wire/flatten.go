// Package wire defines how form data travels to the backend.
//
// Every POST body is a flat list of string fields derived from a richer value
// by a fixed rule:
//
//	scalar     k            -> k
//	sequence   k of scalars -> k_0, k_1, ...
//	sequence   k of objects -> k_0_sub, k_1_sub, ...  (one field per object key)
//
// Objects inside sequences must be flat. Anything nested deeper is rejected
// with ErrTooDeep. Keys are not escaped: a literal underscore in a key can
// collide with a generated key, and the last field with a given key wins when
// the payload is viewed as a map.
package wire

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
)

var ErrTooDeep = errors.New("payload nests deeper than two levels")

type Field struct {
	Key   string
	Value string
}

// Payload is an ordered list of flattened fields.
type Payload []Field

// Flatten applies the wire rule to data. Top-level keys and object keys are
// emitted in sorted order; sequence elements keep their position.
func Flatten(data map[string]any) (Payload, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out Payload
	for _, k := range keys {
		fields, err := flattenValue(k, data[k])
		if err != nil {
			return nil, err
		}
		out = append(out, fields...)
	}
	return out, nil
}

// IndexedKey builds the key of position or index i under prefix k.
func IndexedKey(k string, i int) string {
	return k + "_" + strconv.Itoa(i)
}

func flattenValue(key string, v any) (Payload, error) {
	if s, ok := scalarString(v); ok {
		return Payload{{Key: key, Value: s}}, nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		var out Payload
		for i := 0; i < rv.Len(); i++ {
			item := rv.Index(i).Interface()
			itemKey := IndexedKey(key, i)
			if s, ok := scalarString(item); ok {
				out = append(out, Field{Key: itemKey, Value: s})
				continue
			}
			obj, err := flatObject(itemKey, item)
			if err != nil {
				return nil, err
			}
			out = append(out, obj...)
		}
		return out, nil
	case reflect.Map:
		return nil, fmt.Errorf("%s: object values are only allowed inside sequences: %w", key, ErrTooDeep)
	}
	return nil, fmt.Errorf("%s: unsupported value of type %T", key, v)
}

func flatObject(prefix string, v any) (Payload, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%s: sequence item of type %T: %w", prefix, v, ErrTooDeep)
	}
	subKeys := make([]string, 0, rv.Len())
	for _, mk := range rv.MapKeys() {
		subKeys = append(subKeys, mk.String())
	}
	sort.Strings(subKeys)
	out := make(Payload, 0, len(subKeys))
	for _, sk := range subKeys {
		sv := rv.MapIndex(reflect.ValueOf(sk).Convert(rv.Type().Key())).Interface()
		s, ok := scalarString(sv)
		if !ok {
			return nil, fmt.Errorf("%s_%s: %w", prefix, sk, ErrTooDeep)
		}
		out = append(out, Field{Key: prefix + "_" + sk, Value: s})
	}
	return out, nil
}

// scalarString renders v the way a browser form would send it.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case fmt.Stringer:
		return x.String(), true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), true
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), true
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), true
	}
	return "", false
}

// Append adds a field at the end of the payload.
func (p Payload) Append(key, value string) Payload {
	return append(p, Field{Key: key, Value: value})
}

// Keys lists field keys in payload order.
func (p Payload) Keys() []string {
	out := make([]string, 0, len(p))
	for _, f := range p {
		out = append(out, f.Key)
	}
	return out
}

// Map collapses the payload; later duplicates win.
func (p Payload) Map() map[string]string {
	out := make(map[string]string, len(p))
	for _, f := range p {
		out[f.Key] = f.Value
	}
	return out
}

func (p Payload) Values() url.Values {
	out := url.Values{}
	for _, f := range p {
		out.Add(f.Key, f.Value)
	}
	return out
}

// Get returns the last value stored under key.
func (p Payload) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i].Key == key {
			return p[i].Value, true
		}
	}
	return "", false
}
