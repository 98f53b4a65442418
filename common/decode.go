package common

import (
	"encoding"
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

var textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// textHook feeds strings, and numbers rendered as strings, to targets
// implementing encoding.TextUnmarshaler.
func textHook(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
	if !reflect.PointerTo(t).Implements(textUnmarshalerType) {
		return data, nil
	}

	var str string
	switch v := data.(type) {
	case string:
		str = v
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		str = fmt.Sprint(v)
	case float32, float64:
		str = fmt.Sprint(v)
	default:
		return data, nil
	}

	v := reflect.New(t).Interface().(encoding.TextUnmarshaler)
	if err := v.UnmarshalText([]byte(str)); err != nil {
		return nil, err
	}

	return v, nil
}

// StrictDecodeMap decodes a generic config map into output, rejecting keys
// the output does not declare.
func StrictDecodeMap(input, output any) error {
	config := &mapstructure.DecoderConfig{
		Metadata:    nil,
		Result:      output,
		ErrorUnused: true,
		DecodeHook:  textHook,
	}

	decoder, err := mapstructure.NewDecoder(config)
	if err != nil {
		return err
	}

	return decoder.Decode(input)
}

// StringList decodes from either a single string or a list of strings.
type StringList []string

func (l *StringList) UnmarshalText(b []byte) error {
	*l = StringList{string(b)}
	return nil
}
