package vectorstore

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
)

// excludedMetadataFields are parser artifacts that are never useful for
// filtering or display and may hold non-serializable structures.
var excludedMetadataFields = map[string]struct{}{
	"coordinates":   {},
	"parent_id":     {},
	"element_id":    {},
	"orig_elements": {},
}

// jsonMetadataFields are complex-but-important fields preserved by
// serializing the whole value to a JSON string.
var jsonMetadataFields = map[string]struct{}{
	"metadata_json": {},
}

// SanitizeMetadata restricts metadata to the value types the vector index
// schema accepts: string, number, boolean, and list of strings.
//
// Per field, independent of other fields:
//   - fields on the exclusion list are dropped, whatever their value;
//   - nil values are dropped;
//   - scalars pass through unchanged;
//   - lists whose every element is a string pass through as []string;
//   - other lists and maps are JSON-serialized if the field is on the
//     complex-field allowlist, dropped otherwise;
//   - any other value falls back to a string conversion when the type
//     supports one (fmt.Stringer, error), and is dropped otherwise.
//
// Dropping is logged at debug level and never raises. Sanitization is
// idempotent: applying it twice equals applying it once.
func SanitizeMetadata(meta map[string]interface{}, logger *zap.Logger) map[string]interface{} {
	if logger == nil {
		logger = zap.NewNop()
	}

	sanitized := make(map[string]interface{}, len(meta))
	for key, value := range meta {
		if _, excluded := excludedMetadataFields[key]; excluded {
			continue
		}
		if value == nil {
			continue
		}

		switch v := value.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64:
			sanitized[key] = v
		case []string:
			sanitized[key] = v
		case []interface{}:
			if strs, ok := stringSlice(v); ok {
				sanitized[key] = strs
				continue
			}
			serializeOrDrop(sanitized, key, v, logger)
		case map[string]interface{}:
			serializeOrDrop(sanitized, key, v, logger)
		default:
			if s, ok := stringify(v); ok {
				sanitized[key] = s
				continue
			}
			logger.Debug("dropping metadata field with unsupported type",
				zap.String("field", key),
				zap.String("type", fmt.Sprintf("%T", v)),
			)
		}
	}
	return sanitized
}

// serializeOrDrop JSON-serializes allowlisted complex values and drops the
// rest.
func serializeOrDrop(sanitized map[string]interface{}, key string, value interface{}, logger *zap.Logger) {
	if _, important := jsonMetadataFields[key]; !important {
		logger.Debug("dropping complex metadata field outside the allowlist",
			zap.String("field", key),
			zap.String("type", fmt.Sprintf("%T", value)),
		)
		return
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		logger.Debug("dropping metadata field that failed JSON serialization",
			zap.String("field", key),
			zap.Error(err),
		)
		return
	}
	sanitized[key] = string(encoded)
}

// stringSlice converts a []interface{} of strings to []string.
func stringSlice(values []interface{}) ([]string, bool) {
	strs := make([]string, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil, false
		}
		strs[i] = s
	}
	return strs, true
}

// stringify attempts a string conversion for values with a natural text
// form. Arbitrary structs do not qualify; %v on those would leak internal
// representations into the index.
func stringify(value interface{}) (string, bool) {
	switch v := value.(type) {
	case fmt.Stringer:
		return v.String(), true
	case error:
		return v.Error(), true
	default:
		return "", false
	}
}
