package utils

import (
	"reflect"
	"sort"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// AttributeMap is a loosely typed map of configuration values, usually the result of
// decoding JSON without a target struct.
type AttributeMap map[string]interface{}

// TransformAttributeMapToStruct decodes attributes into the struct pointed to by to, matching
// keys against json tags. Keys that do not map onto any field are reported as an error so that
// typos in configuration do not silently fall back to defaults.
func TransformAttributeMapToStruct(to interface{}, attributes AttributeMap) (interface{}, error) {
	if to == nil || reflect.ValueOf(to).Kind() != reflect.Ptr {
		return nil, errors.Errorf("expected pointer to struct but got %T", to)
	}
	var md mapstructure.Metadata
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           to,
		Metadata:         &md,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(map[string]interface{}(attributes)); err != nil {
		return nil, errors.Wrap(err, "error decoding attributes")
	}
	if len(md.Unused) != 0 {
		sort.Strings(md.Unused)
		return nil, errors.Errorf("unknown attributes %q", md.Unused)
	}
	return to, nil
}
