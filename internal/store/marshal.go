package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/appframe/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
func marshalObject(obj ir.IRObject) (string, error) {
	if obj == nil {
		obj = ir.IRObject{}
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal object: %w", err)
	}
	return string(data), nil
}

// unmarshalObject parses JSON TEXT into an IRObject.
// Integers are decoded without float64 precision loss.
func unmarshalObject(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal object: %w", err)
	}
	return obj, nil
}
