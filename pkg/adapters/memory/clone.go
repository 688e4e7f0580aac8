package memory

import "reflect"

// clonePlain deep-copies JSON-like plain data so that stored values never alias
// caller-owned maps or slices.
func clonePlain(v any) any {
	switch t := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return v
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = clonePlain(e)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = clonePlain(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeSlice(rv.Type(), rv.Len(), rv.Len())
		for i := range rv.Len() {
			out.Index(i).Set(cloneValue(rv.Index(i)))
		}
		return out.Interface()
	case reflect.Map:
		if rv.IsNil() {
			return v
		}
		out := reflect.MakeMapWithSize(rv.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), cloneValue(iter.Value()))
		}
		return out.Interface()
	default:
		return v
	}
}

// cloneValue clones e and converts the copy back to e's static type.
func cloneValue(e reflect.Value) reflect.Value {
	if !e.IsValid() || (e.Kind() == reflect.Interface && e.IsNil()) {
		return e
	}
	c := clonePlain(e.Interface())
	if c == nil {
		return reflect.Zero(e.Type())
	}
	return reflect.ValueOf(c).Convert(e.Type())
}

func cloneObject(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	return clonePlain(m).(map[string]any)
}
