package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ipaynter-umb/MCD43GF-production/pkg/errors"
)

// settingsField finds the Settings field whose yaml key is key.
func (c *Config) settingsField(key string) (reflect.Value, bool) {
	v := reflect.ValueOf(&c.Settings).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		if yamlKey(t.Field(i)) == key {
			return v.Field(i), true
		}
	}
	return reflect.Value{}, false
}

func yamlKey(f reflect.StructField) string {
	tag := f.Tag.Get("yaml")
	if tag == "" || tag == "-" {
		return ""
	}
	return strings.Split(tag, ",")[0]
}

// SetValue sets a settings value by its yaml key, e.g. "transfer_workers"
// or "http_timeout". The result is validated; on failure the old value stays.
func (c *Config) SetValue(key, value string) error {
	field, ok := c.settingsField(key)
	if !ok {
		return errors.Wrapf(errors.ErrConfigValidation, "unknown configuration key: %s", key)
	}
	old := reflect.New(field.Type()).Elem()
	old.Set(field)

	if err := setField(field, value); err != nil {
		return errors.Wrapf(errors.ErrConfigValidation, "invalid value for %s: %v", key, err)
	}
	if err := validateSettings(c.Settings); err != nil {
		field.Set(old)
		return err
	}
	return nil
}

func setField(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeOf(time.Duration(0)) {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int:
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(n))
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported type %s", field.Type())
	}
	return nil
}

// GetValue returns a settings value by its yaml key.
func (c *Config) GetValue(key string) (string, error) {
	field, ok := c.settingsField(key)
	if !ok {
		return "", errors.Wrapf(errors.ErrConfigValidation, "unknown configuration key: %s", key)
	}
	return formatField(field), nil
}

func formatField(field reflect.Value) string {
	if d, ok := field.Interface().(time.Duration); ok {
		return d.String()
	}
	switch field.Kind() {
	case reflect.Bool:
		return strconv.FormatBool(field.Bool())
	case reflect.Int:
		return strconv.FormatInt(field.Int(), 10)
	case reflect.Float64:
		return strconv.FormatFloat(field.Float(), 'f', -1, 64)
	case reflect.String:
		return field.String()
	default:
		return fmt.Sprintf("%v", field.Interface())
	}
}

// ToMap flattens the settings into yaml key / string value pairs, for display.
func (c *Config) ToMap() map[string]string {
	result := make(map[string]string)
	v := reflect.ValueOf(c.Settings)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := yamlKey(t.Field(i))
		if key == "" {
			continue
		}
		result[key] = formatField(v.Field(i))
	}
	return result
}
