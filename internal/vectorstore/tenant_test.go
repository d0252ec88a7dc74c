package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTenantValidate(t *testing.T) {
	assert.NoError(t, Tenant{UserID: "u1"}.Validate())
	assert.ErrorIs(t, Tenant{}.Validate(), ErrInvalidTenant)
}

func TestTenantFilter(t *testing.T) {
	tenant := Tenant{UserID: "u1"}

	assert.Equal(t, map[string]interface{}{"user_id": "u1"}, tenant.Filter())
	assert.Equal(t,
		map[string]interface{}{"user_id": "u1", "file_id": "f1"},
		tenant.FileFilter("f1"),
	)
}

func TestTenantTagOverwritesCallerValue(t *testing.T) {
	meta := map[string]interface{}{"user_id": "spoofed", "filename": "a.txt"}

	Tenant{UserID: "u1"}.Tag(meta)

	assert.Equal(t, "u1", meta["user_id"])
	assert.Equal(t, "a.txt", meta["filename"])
}

func TestBatchChunks(t *testing.T) {
	chunks := make([]Chunk, 250)

	batches := batchChunks(chunks, 100)

	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 100)
	assert.Len(t, batches[1], 100)
	assert.Len(t, batches[2], 50)

	assert.Nil(t, batchChunks(nil, 100))
	assert.Len(t, batchChunks(chunks[:100], 100), 1)
}
