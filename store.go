package dbus

import (
	"errors"
	"fmt"
	"reflect"
)

var errSignature = errors.New("dbus: mismatched signature")

// Store copies a decoded message body into retvalues, the way
// (*Call).Store does for the teacher. Each element of body is assigned
// to the pointer at the same index in retvalues via reflection,
// recursing into slices/maps/variants as needed.
func Store(body []interface{}, retvalues ...interface{}) error {
	if len(body) != len(retvalues) {
		return errSignature
	}
	for i, v := range body {
		if err := storeOne(v, retvalues[i]); err != nil {
			return err
		}
	}
	return nil
}

func storeOne(v interface{}, dest interface{}) error {
	if dest == nil {
		return fmt.Errorf("dbus: nil destination")
	}
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("dbus: destination must be a non-nil pointer")
	}
	return storeInto(reflect.ValueOf(v), rv.Elem())
}

func storeInto(src reflect.Value, dst reflect.Value) error {
	if !src.IsValid() {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	if variant, ok := src.Interface().(Variant); ok {
		if dst.Type() == tyVariant {
			dst.Set(src)
			return nil
		}
		return storeInto(reflect.ValueOf(variant.Value()), dst)
	}
	if dst.Kind() == reflect.Interface {
		dst.Set(src)
		return nil
	}
	if src.Type().AssignableTo(dst.Type()) {
		dst.Set(src)
		return nil
	}
	if src.Type().ConvertibleTo(dst.Type()) &&
		(isNumericKind(src.Kind()) && isNumericKind(dst.Kind())) {
		dst.Set(src.Convert(dst.Type()))
		return nil
	}
	switch dst.Kind() {
	case reflect.Slice:
		if src.Kind() != reflect.Slice {
			return errSignature
		}
		out := reflect.MakeSlice(dst.Type(), src.Len(), src.Len())
		for i := 0; i < src.Len(); i++ {
			if err := storeInto(elemOf(src.Index(i)), out.Index(i)); err != nil {
				return err
			}
		}
		dst.Set(out)
		return nil
	case reflect.Map:
		if src.Kind() != reflect.Map {
			return errSignature
		}
		out := reflect.MakeMapWithSize(dst.Type(), src.Len())
		for _, k := range src.MapKeys() {
			kv := reflect.New(dst.Type().Key()).Elem()
			if err := storeInto(elemOf(k), kv); err != nil {
				return err
			}
			vv := reflect.New(dst.Type().Elem()).Elem()
			if err := storeInto(elemOf(src.MapIndex(k)), vv); err != nil {
				return err
			}
			out.SetMapIndex(kv, vv)
		}
		dst.Set(out)
		return nil
	case reflect.Struct:
		if src.Kind() != reflect.Slice {
			return errSignature
		}
		if src.Len() != dst.NumField() {
			return errSignature
		}
		for i := 0; i < dst.NumField(); i++ {
			if err := storeInto(elemOf(src.Index(i)), dst.Field(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return errSignature
}

func elemOf(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Interface {
		v = v.Elem()
	}
	return v
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
