package object

import (
	"encoding/json"
	"fmt"
	"sort"

	"eos/internal/dec64"
)

// ToJSONValue converts a script Object into a plain Go value suitable
// for encoding/json, used whenever actor state or a message payload
// crosses a process boundary: the control RPC, the 9P overlay's
// `state`/`mailbox` files, and the key/value store.
func ToJSONValue(obj Object) (interface{}, error) {
	switch o := obj.(type) {
	case nil:
		return nil, nil
	case *Nil:
		return nil, nil
	case *Boolean:
		return o.Value, nil
	case *Number:
		if o.Value.IsFloat() {
			return o.Value.ToFloat64(), nil
		}
		return o.Value.ToInt64(), nil
	case *String:
		return o.Value, nil
	case *List:
		out := make([]interface{}, len(o.Elements))
		for i, e := range o.Elements {
			v, err := ToJSONValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil
	case *Map:
		out := make(map[string]interface{}, len(o.order))
		for _, pair := range o.StableOrder() {
			key, ok := pair.Key.(*String)
			if !ok {
				return nil, fmt.Errorf("non-string map key cannot be serialized: %s", pair.Key.Inspect())
			}
			v, err := ToJSONValue(pair.Value)
			if err != nil {
				return nil, err
			}
			out[key.Value] = v
		}
		return out, nil
	case *Error:
		return nil, fmt.Errorf("cannot serialize error object: %s", o.Message)
	default:
		return nil, fmt.Errorf("cannot serialize object of type %s", obj.Type())
	}
}

// FromJSONValue converts a decoded JSON value (as produced by
// json.Unmarshal into interface{}) into a script Object.
func FromJSONValue(v interface{}) Object {
	switch val := v.(type) {
	case nil:
		return &Nil{}
	case bool:
		return &Boolean{Value: val}
	case float64:
		return &Number{Value: dec64.FromFloat64(val)}
	case string:
		return &String{Value: val}
	case []interface{}:
		elems := make([]Object, len(val))
		for i, e := range val {
			elems[i] = FromJSONValue(e)
		}
		return &List{Elements: elems}
	case map[string]interface{}:
		m := NewMap()
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			m.Put(&String{Value: k}, FromJSONValue(val[k]))
		}
		return m
	default:
		return &Nil{}
	}
}

// MarshalJSON encodes obj as a JSON document.
func MarshalJSON(obj Object) ([]byte, error) {
	v, err := ToJSONValue(obj)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// UnmarshalJSON decodes a JSON document into an Object.
func UnmarshalJSON(data []byte) (Object, error) {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return FromJSONValue(v), nil
}
