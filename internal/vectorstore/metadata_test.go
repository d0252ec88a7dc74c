package vectorstore

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeMetadataScalars(t *testing.T) {
	meta := map[string]interface{}{
		"filename":  "report.pdf",
		"page":      3,
		"score":     0.75,
		"is_final":  true,
		"languages": []string{"en", "de"},
	}

	got := SanitizeMetadata(meta, nil)

	assert.Equal(t, "report.pdf", got["filename"])
	assert.Equal(t, 3, got["page"])
	assert.Equal(t, 0.75, got["score"])
	assert.Equal(t, true, got["is_final"])
	assert.Equal(t, []string{"en", "de"}, got["languages"])
}

func TestSanitizeMetadataExclusionList(t *testing.T) {
	// Excluded fields are removed even when their value would be valid.
	meta := map[string]interface{}{
		"coordinates":   "12,20",
		"parent_id":     "el-9",
		"element_id":    "el-10",
		"orig_elements": []string{"a", "b"},
		"filename":      "keep.txt",
	}

	got := SanitizeMetadata(meta, nil)

	assert.Len(t, got, 1)
	assert.Equal(t, "keep.txt", got["filename"])
}

func TestSanitizeMetadataComplexValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value interface{}
		want  interface{} // nil means dropped
	}{
		{
			name:  "nil dropped",
			key:   "empty",
			value: nil,
			want:  nil,
		},
		{
			name:  "mixed list dropped",
			key:   "mixed",
			value: []interface{}{"a", 1},
			want:  nil,
		},
		{
			name:  "interface list of strings kept",
			key:   "tags",
			value: []interface{}{"a", "b"},
			want:  []string{"a", "b"},
		},
		{
			name:  "allowlisted dict serialized",
			key:   "metadata_json",
			value: map[string]interface{}{"k": "v"},
			want:  `{"k":"v"}`,
		},
		{
			name:  "other dict dropped",
			key:   "layout",
			value: map[string]interface{}{"x": 1},
			want:  nil,
		},
		{
			name:  "allowlisted mixed list serialized",
			key:   "metadata_json",
			value: []interface{}{"a", 1},
			want:  `["a",1]`,
		},
		{
			name:  "stringer converted",
			key:   "source_url",
			value: &url.URL{Scheme: "https", Host: "example.com"},
			want:  "https://example.com",
		},
		{
			name:  "arbitrary struct dropped",
			key:   "opaque",
			value: struct{ A int }{A: 1},
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SanitizeMetadata(map[string]interface{}{tt.key: tt.value}, nil)
			if tt.want == nil {
				assert.NotContains(t, got, tt.key)
			} else {
				assert.Equal(t, tt.want, got[tt.key])
			}
		})
	}
}

func TestSanitizeMetadataIdempotent(t *testing.T) {
	meta := map[string]interface{}{
		"filename":      "a.txt",
		"page":          7,
		"coordinates":   map[string]interface{}{"x": 1},
		"metadata_json": map[string]interface{}{"nested": []interface{}{1, 2}},
		"tags":          []interface{}{"x", "y"},
		"broken":        make(chan int),
	}

	once := SanitizeMetadata(meta, nil)
	twice := SanitizeMetadata(once, nil)

	require.Equal(t, once, twice)
}

func TestSanitizeMetadataLogsEveryDrop(t *testing.T) {
	// Each drop path emits a debug entry naming the field; dropping is
	// observable in logs rather than silent.
	core, observed := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	SanitizeMetadata(map[string]interface{}{
		"layout": map[string]interface{}{"x": 1},
		"mixed":  []interface{}{"a", 1},
		"opaque": struct{ A int }{A: 1},
		"kept":   "value",
	}, logger)

	dropped := map[string]bool{}
	for _, entry := range observed.All() {
		require.Equal(t, zapcore.DebugLevel, entry.Level)
		for _, field := range entry.Context {
			if field.Key == "field" {
				dropped[field.String] = true
			}
		}
	}
	assert.True(t, dropped["layout"], "non-allowlisted map drop must be logged")
	assert.True(t, dropped["mixed"], "non-allowlisted mixed list drop must be logged")
	assert.True(t, dropped["opaque"], "unsupported type drop must be logged")
	assert.False(t, dropped["kept"])
}

func TestSanitizeMetadataOutputTypesClosed(t *testing.T) {
	meta := map[string]interface{}{
		"a": "s", "b": 1, "c": 1.5, "d": false, "e": []string{"x"},
		"f": map[string]interface{}{"deep": true},
		"g": []interface{}{1, 2, 3},
	}

	for key, value := range SanitizeMetadata(meta, nil) {
		switch value.(type) {
		case string, bool,
			int, int8, int16, int32, int64,
			uint, uint8, uint16, uint32, uint64,
			float32, float64,
			[]string:
		default:
			t.Fatalf("field %q has disallowed type %T", key, value)
		}
	}
}
