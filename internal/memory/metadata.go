package memory

import (
	"encoding/json"
	"fmt"
)

// Metadata is the open key-value map callers attach to a chunk. Values are
// restricted to JSON-compatible kinds (string, number, bool, nested
// map/list) and validated at the boundary rather than left fully open.
type Metadata map[string]any

// Validate checks every value kind recursively and enforces the serialized
// size bound. Returns ErrMetadataTooLarge when the JSON encoding exceeds
// maxBytes, or a descriptive error for an unsupported value kind.
func (m Metadata) Validate(maxBytes int) error {
	if len(m) == 0 {
		return nil
	}

	for key, value := range m {
		if err := validateValue(key, value); err != nil {
			return err
		}
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("memory: metadata not serializable: %w", err)
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrMetadataTooLarge, len(raw), maxBytes)
	}
	return nil
}

func validateValue(key string, value any) error {
	switch v := value.(type) {
	case nil, string, bool,
		float64, float32,
		int, int32, int64:
		return nil
	case []any:
		for _, item := range v {
			if err := validateValue(key, item); err != nil {
				return err
			}
		}
		return nil
	case map[string]any:
		for k, item := range v {
			if err := validateValue(key+"."+k, item); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("memory: metadata key %q: unsupported value type %T", key, value)
	}
}

// Clone returns a shallow copy so stored chunks do not alias caller maps.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	cp := make(Metadata, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
