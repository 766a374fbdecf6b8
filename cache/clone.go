package cache

import "reflect"

// Clone returns a deep copy of v. Slices, arrays, maps, pointers,
// interfaces and exported struct fields are copied recursively; pointer
// cycles are preserved. Unexported struct fields, channels and functions
// are copied shallowly, which keeps value types like time.Time intact.
func Clone[T any](v T) T {
	src := reflect.ValueOf(&v).Elem()
	c := cloner{seen: make(map[ptrKey]reflect.Value)}
	out := c.clone(src)

	var dst T
	reflect.ValueOf(&dst).Elem().Set(out)
	return dst
}

type ptrKey struct {
	addr uintptr
	typ  reflect.Type
}

type cloner struct {
	seen map[ptrKey]reflect.Value
}

func (c *cloner) clone(src reflect.Value) reflect.Value {
	switch src.Kind() {
	case reflect.Pointer:
		if src.IsNil() {
			return src
		}
		key := ptrKey{addr: src.Pointer(), typ: src.Type()}
		if dst, ok := c.seen[key]; ok {
			return dst
		}
		dst := reflect.New(src.Type().Elem())
		c.seen[key] = dst
		dst.Elem().Set(c.clone(src.Elem()))
		return dst

	case reflect.Slice:
		if src.IsNil() {
			return src
		}
		dst := reflect.MakeSlice(src.Type(), src.Len(), src.Len())
		if flat(src.Type().Elem().Kind()) {
			reflect.Copy(dst, src)
			return dst
		}
		for i := range src.Len() {
			dst.Index(i).Set(c.clone(src.Index(i)))
		}
		return dst

	case reflect.Array:
		dst := reflect.New(src.Type()).Elem()
		for i := range src.Len() {
			dst.Index(i).Set(c.clone(src.Index(i)))
		}
		return dst

	case reflect.Map:
		if src.IsNil() {
			return src
		}
		dst := reflect.MakeMapWithSize(src.Type(), src.Len())
		iter := src.MapRange()
		for iter.Next() {
			dst.SetMapIndex(iter.Key(), c.clone(iter.Value()))
		}
		return dst

	case reflect.Struct:
		dst := reflect.New(src.Type()).Elem()
		dst.Set(src)
		for i := range src.NumField() {
			if !src.Type().Field(i).IsExported() {
				continue
			}
			dst.Field(i).Set(c.clone(src.Field(i)))
		}
		return dst

	case reflect.Interface:
		if src.IsNil() {
			return src
		}
		dst := reflect.New(src.Type()).Elem()
		dst.Set(c.clone(src.Elem()))
		return dst

	default:
		return src
	}
}

func flat(k reflect.Kind) bool {
	switch k {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
