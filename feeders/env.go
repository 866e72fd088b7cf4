package feeders

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/golobby/cast"
)

// EnvFeeder reads environment variables named PREFIX_TAG, where TAG is the
// field's env tag. A struct field with an env tag adds its tag to the
// prefix of its own fields, so Config.API.BaseURL is read from
// TODOSPA_API_BASE_URL.
type EnvFeeder struct {
	Prefix string
	lookup func(string) (string, bool)
}

// NewEnvFeeder creates a new EnvFeeder reading variables under prefix.
func NewEnvFeeder(prefix string) EnvFeeder {
	return EnvFeeder{Prefix: prefix, lookup: os.LookupEnv}
}

func (f EnvFeeder) Feed(target any) error {
	if f.Prefix == "" {
		return ErrEmptyPrefix
	}
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrInvalidStructure, target)
	}
	lookup := f.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	_, err := fillStruct(rv.Elem(), strings.ToUpper(f.Prefix), lookup)
	return err
}

// fillStruct reports whether any field was set.
func fillStruct(rv reflect.Value, prefix string, lookup func(string) (string, bool)) (bool, error) {
	var found bool
	for i := 0; i < rv.NumField(); i++ {
		field := rv.Field(i)
		ft := rv.Type().Field(i)
		if !ft.IsExported() {
			continue
		}
		tag, ok := ft.Tag.Lookup("env")
		if !ok {
			continue
		}
		name := prefix + "_" + strings.ToUpper(tag)

		set, err := fillField(field, name, lookup)
		if err != nil {
			return found, fmt.Errorf("error in field '%s': %w", ft.Name, err)
		}
		found = found || set
	}
	return found, nil
}

func fillField(field reflect.Value, name string, lookup func(string) (string, bool)) (bool, error) {
	switch {
	case field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}):
		return fillStruct(field, name, lookup)
	case field.Kind() == reflect.Pointer && field.Type().Elem().Kind() == reflect.Struct:
		if !field.IsNil() {
			return fillStruct(field.Elem(), name, lookup)
		}
		fresh := reflect.New(field.Type().Elem())
		set, err := fillStruct(fresh.Elem(), name, lookup)
		if set && err == nil {
			field.Set(fresh)
		}
		return set, err
	}

	value, ok := lookup(name)
	if !ok || value == "" {
		return false, nil
	}
	if err := setFieldValue(field, value); err != nil {
		return false, fmt.Errorf("%s: %w", name, err)
	}
	return true, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// setFieldValue converts and sets a field value
func setFieldValue(field reflect.Value, strValue string) error {
	if !field.CanSet() {
		return ErrFieldCannotBeSet
	}
	if field.Type() == durationType {
		d, err := time.ParseDuration(strValue)
		if err != nil {
			return fmt.Errorf("%w to %v: %w", ErrEnvValueConversion, field.Type(), err)
		}
		field.SetInt(int64(d))
		return nil
	}

	converted, err := cast.FromType(strValue, field.Type())
	if err != nil {
		return fmt.Errorf("%w to %v: %w", ErrEnvValueConversion, field.Type(), err)
	}
	field.Set(reflect.ValueOf(converted).Convert(field.Type()))
	return nil
}
