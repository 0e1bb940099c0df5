package loader

import (
	"plugin"
	"reflect"

	"github.com/photon-run/photon/internal/photonerr"
)

// entrypointSymbol is the exported function name every photon source must
// define: "func New() any { return &MyRoot{} }". Using the concrete type
// "func() any" lets the loader type-assert the plugin symbol without
// knowing the user's root struct type at our own compile time.
const entrypointSymbol = "New"

// LoadedPhoton is a compiled, instantiated photon: the root struct value
// plus the plugin it was loaded from. The analyzer's catalog travels
// separately in Result.Spec.
type LoadedPhoton struct {
	instance reflect.Value // addressable pointer to the user's root struct
	plug     *plugin.Plugin
}

// instantiate opens the compiled plugin artifact, calls its New
// entrypoint, and applies configRecord onto the resulting struct's
// exported fields by name.
func instantiate(soPath string, configRecord map[string]any) (*LoadedPhoton, error) {
	plug, err := plugin.Open(soPath)
	if err != nil {
		return nil, photonerr.Wrap(photonerr.LoadError, err, "open compiled plugin")
	}
	sym, err := plug.Lookup(entrypointSymbol)
	if err != nil {
		return nil, photonerr.Wrapf(photonerr.LoadError, err, "photon source must export \"func %s() any\"", entrypointSymbol)
	}
	newFn, ok := sym.(func() any)
	if !ok {
		return nil, photonerr.Newf(photonerr.LoadError, "%s has the wrong signature, expected \"func() any\"", entrypointSymbol)
	}

	boxed := newFn()
	value := reflect.ValueOf(boxed)
	if value.Kind() != reflect.Ptr || value.IsNil() {
		return nil, photonerr.Newf(photonerr.LoadError, "%s must return a non-nil pointer to the root struct", entrypointSymbol)
	}

	if err := applyConfig(value, configRecord); err != nil {
		return nil, err
	}

	return &LoadedPhoton{instance: value, plug: plug}, nil
}

// applyConfig sets exported fields of the root struct (addressed by Go
// field name) from configRecord. Unknown keys in configRecord are ignored;
// fields absent from configRecord keep their zero value, which the config
// layer has already backfilled with defaults before calling the loader.
func applyConfig(instance reflect.Value, configRecord map[string]any) error {
	elem := instance.Elem()
	if elem.Kind() != reflect.Struct {
		return photonerr.Newf(photonerr.LoadError, "root value is not a struct")
	}
	t := elem.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		raw, ok := configRecord[field.Name]
		if !ok {
			continue
		}
		fv := elem.Field(i)
		if !fv.CanSet() {
			continue
		}
		if err := setFieldValue(fv, raw); err != nil {
			return photonerr.Newf(photonerr.InvalidArguments, "config field %q: %v", field.Name, err)
		}
	}
	return nil
}

// setFieldValue assigns raw (decoded from YAML/env as one of string, bool,
// float64, []any, or map[string]any) into fv, converting between Go's
// numeric kinds as needed.
func setFieldValue(fv reflect.Value, raw any) error {
	rv := reflect.ValueOf(raw)
	if fv.Kind() == reflect.Ptr {
		if raw == nil {
			return nil
		}
		ptr := reflect.New(fv.Type().Elem())
		if err := setFieldValue(ptr.Elem(), raw); err != nil {
			return err
		}
		fv.Set(ptr)
		return nil
	}
	if rv.Type().ConvertibleTo(fv.Type()) {
		fv.Set(rv.Convert(fv.Type()))
		return nil
	}
	return photonerr.Newf(photonerr.InvalidArguments, "cannot assign %T into %s", raw, fv.Type())
}

// MethodByName resolves an exported method on the instantiated root struct
// by name, for the invocation engine to call via reflection.
func (p *LoadedPhoton) MethodByName(name string) (reflect.Value, bool) {
	m := p.instance.MethodByName(name)
	return m, m.IsValid()
}

// Close releases resources held by the underlying plugin. Go's plugin
// package provides no unload mechanism; Close exists so callers have a
// single place to release anything this package adds in the future
// (file handles, temp dirs) without changing the LoadedPhoton API.
func (p *LoadedPhoton) Close() error {
	return nil
}
