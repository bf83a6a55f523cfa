package stores

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/theapemachine/bridge-go/pkg/errors"
)

func newTestBridgeStore(t *testing.T) *BridgeStore {
	t.Helper()
	return NewBridgeStore(filepath.Join(t.TempDir(), "bridge.json"))
}

func TestBridgeStore_DefaultState(t *testing.T) {
	store := newTestBridgeStore(t)

	data := store.State()
	assert.Empty(t, data.Requests)
	assert.True(t, data.AutoApprove)
}

func TestBridgeStore_CorruptFileFallsBackToDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	assert.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	store := NewBridgeStore(path)
	data := store.State()
	assert.Empty(t, data.Requests)
	assert.True(t, data.AutoApprove)
}

func TestBridgeStore_EnqueueRejectsDuplicateID(t *testing.T) {
	store := newTestBridgeStore(t)

	_, err := store.Enqueue("req-1", "install package")
	assert.NoError(t, err)

	_, err = store.Enqueue("req-1", "something else")
	assert.ErrorIs(t, err, errors.ErrValidation)

	data := store.State()
	assert.Len(t, data.Requests, 1)
	assert.Equal(t, "install package", data.Requests[0].Message)
}

func TestBridgeStore_StatusIsLastCallThatReferencedID(t *testing.T) {
	store := newTestBridgeStore(t)

	_, err := store.Enqueue("req-1", "first")
	assert.NoError(t, err)
	_, err = store.Enqueue("req-2", "second")
	assert.NoError(t, err)

	_, err = store.Approve("req-1")
	assert.NoError(t, err)
	_, err = store.Reject("req-1")
	assert.NoError(t, err)
	data, err := store.Approve("req-2")
	assert.NoError(t, err)

	byID := map[string]Status{}
	for _, req := range data.Requests {
		byID[req.ID] = req.Status
	}

	assert.Equal(t, StatusRejected, byID["req-1"])
	assert.Equal(t, StatusApproved, byID["req-2"])
}

func TestBridgeStore_UnknownIDIsNoOp(t *testing.T) {
	store := newTestBridgeStore(t)

	_, err := store.Enqueue("req-1", "first")
	assert.NoError(t, err)

	data, err := store.Approve("ghost")
	assert.NoError(t, err)
	assert.Equal(t, StatusPending, data.Requests[0].Status)
}

func TestBridgeStore_SetAutoApprovePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.json")
	store := NewBridgeStore(path)

	data, err := store.SetAutoApprove(false)
	assert.NoError(t, err)
	assert.False(t, data.AutoApprove)

	// A fresh store over the same file observes the persisted value.
	reopened := NewBridgeStore(path)
	assert.False(t, reopened.State().AutoApprove)
}

func TestBridgeStore_SaveFailureStillReturnsMutation(t *testing.T) {
	// Pointing the store at a directory makes every save fail.
	dir := t.TempDir()
	store := NewBridgeStore(dir)

	data, err := store.SetAutoApprove(false)
	assert.ErrorIs(t, err, errors.ErrPersistence)
	assert.False(t, data.AutoApprove)
}
