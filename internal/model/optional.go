package model

import "encoding/json"

// Optional is one field of a partial update.
//
// A *string alone cannot tell a missing key from an explicit null, and the
// two mean different things in a PUT body: missing keeps the stored value,
// null clears it. Set records that the key was present; Value is nil when
// the key carried null.
//
// encoding/json only calls UnmarshalJSON for keys that appear in the input,
// so the zero Optional is "absent".
type Optional[T any] struct {
	Set   bool
	Value *T
}

// Some returns a present Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: &v}
}

// Null returns a present Optional that clears the field.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true}
}

func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	o.Set = true
	if string(b) == "null" {
		o.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
