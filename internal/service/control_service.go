package service

import (
	"context"
	"errors"
	"sort"
)

type RelayEntry struct {
	OwnerID       int64 `json:"ownerId"`
	DestinationID int64 `json:"destinationId"`
}

type UnlinkResult struct {
	OwnerID       int64 `json:"ownerId"`
	DestinationID int64 `json:"destinationId,omitempty"`
	Removed       bool  `json:"removed"`
}

// ControlService backs the local operator endpoints.
type ControlService struct {
	directory *Directory
	relay     *RelayService
}

func NewControlService(directory *Directory, relay *RelayService) *ControlService {
	return &ControlService{directory: directory, relay: relay}
}

func (s *ControlService) Relays() []RelayEntry {
	snapshot := s.directory.Snapshot()
	out := make([]RelayEntry, 0, len(snapshot))
	for ownerID, destID := range snapshot {
		out = append(out, RelayEntry{OwnerID: ownerID, DestinationID: destID})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OwnerID < out[j].OwnerID })
	return out
}

func (s *ControlService) RelayCount() int {
	return s.directory.Len()
}

func (s *ControlService) Unlink(ctx context.Context, ownerID int64) (UnlinkResult, error) {
	if ownerID == 0 {
		return UnlinkResult{}, errors.New("owner id is required")
	}
	destID, removed, err := s.relay.Unlink(ctx, ownerID, UnbindOperator)
	if err != nil {
		return UnlinkResult{}, err
	}
	return UnlinkResult{OwnerID: ownerID, DestinationID: destID, Removed: removed}, nil
}
