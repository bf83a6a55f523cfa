package stores

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/theapemachine/bridge-go/pkg/errors"
)

// Status is the lifecycle state of a bridge request.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

/*
BridgeRequest is one approval-gated request produced by an external agent.
*/
type BridgeRequest struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Status  Status `json:"status"`
}

/*
BridgeData is the whole approval queue plus the process-wide auto-approve
switch, serialized wholesale to a single JSON document.
*/
type BridgeData struct {
	Requests    []BridgeRequest `json:"requests"`
	AutoApprove bool            `json:"auto_approve"`
}

/*
BridgeStore owns the approval-queue file.  All mutators follow the same
protocol: load the whole document, mutate in memory, save the whole
document.  The mutex makes the read-modify-write window explicit; there is
deliberately no finer-grained locking or cross-store transactionality.

A save failure is reported to the caller, but the mutated value is still
returned: the logical mutation happened, it just will not be observable by
a future load.
*/
type BridgeStore struct {
	mu   sync.Mutex
	path string
}

type BridgeStoreOption func(*BridgeStore)

func NewBridgeStore(path string, options ...BridgeStoreOption) *BridgeStore {
	store := &BridgeStore{path: path}

	for _, option := range options {
		option(store)
	}

	return store
}

// load returns the persisted queue, or the default when the file is absent
// or unreadable.  Corruption is not an error: the store starts empty.
func (store *BridgeStore) load() BridgeData {
	fallback := BridgeData{Requests: []BridgeRequest{}, AutoApprove: true}

	raw, err := os.ReadFile(store.path)

	if err != nil {
		return fallback
	}

	var data BridgeData

	if err := json.Unmarshal(raw, &data); err != nil {
		log.Warn("bridge file is corrupt, starting empty", "path", store.path, "error", err)
		return fallback
	}

	if data.Requests == nil {
		data.Requests = []BridgeRequest{}
	}

	return data
}

func (store *BridgeStore) save(data BridgeData) error {
	raw, err := json.MarshalIndent(data, "", "  ")

	if err != nil {
		return errors.ErrPersistence.WithMessagef("failed to encode bridge data: %v", err)
	}

	if err := os.WriteFile(store.path, raw, 0644); err != nil {
		return errors.ErrPersistence.WithMessagef("failed to write %s: %v", store.path, err)
	}

	return nil
}

/*
State returns the current queue without mutating it.
*/
func (store *BridgeStore) State() BridgeData {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.load()
}

/*
Enqueue appends a new pending request.  Request ids are unique; reusing one
is a validation error and leaves the queue unchanged.
*/
func (store *BridgeStore) Enqueue(id, message string) (BridgeData, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	data := store.load()

	for _, req := range data.Requests {
		if req.ID == id {
			return data, errors.ErrValidation.WithMessagef("request with id %q already exists", id)
		}
	}

	data.Requests = append(data.Requests, BridgeRequest{
		ID:      id,
		Message: message,
		Status:  StatusPending,
	})

	return data, store.save(data)
}

/*
SetAutoApprove flips the process-wide auto-approve switch.
*/
func (store *BridgeStore) SetAutoApprove(enabled bool) (BridgeData, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	data := store.load()
	data.AutoApprove = enabled

	return data, store.save(data)
}

/*
Approve marks the request with the given id approved.  Unknown ids are a
no-op, not an error.
*/
func (store *BridgeStore) Approve(id string) (BridgeData, error) {
	return store.setStatus(id, StatusApproved)
}

/*
Reject marks the request with the given id rejected.  Unknown ids are a
no-op, not an error.
*/
func (store *BridgeStore) Reject(id string) (BridgeData, error) {
	return store.setStatus(id, StatusRejected)
}

// setStatus applies a status by id lookup; the last call referencing an id
// wins.
func (store *BridgeStore) setStatus(id string, status Status) (BridgeData, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	data := store.load()

	for i := range data.Requests {
		if data.Requests[i].ID == id {
			data.Requests[i].Status = status
			break
		}
	}

	return data, store.save(data)
}
