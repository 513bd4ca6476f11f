package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/hanamilabs/pretender-bot/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu       sync.Mutex
	data     domain.Mapping
	saves    int
	failSave error
}

func newMemStore(initial domain.Mapping) *memStore {
	if initial == nil {
		initial = domain.Mapping{}
	}
	return &memStore{data: initial.Clone()}
}

func (s *memStore) Load(context.Context) (domain.Mapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone(), nil
}

func (s *memStore) Save(_ context.Context, mapping domain.Mapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failSave != nil {
		return &domain.StorageError{Op: "save", Err: s.failSave}
	}
	s.data = mapping.Clone()
	s.saves++
	return nil
}

func (s *memStore) snapshot() (domain.Mapping, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone(), s.saves
}

type sentMessage struct {
	chatID int64
	text   string
}

type sentReply struct {
	chatID    int64
	messageID int
	text      string
}

type sentPayload struct {
	chatID  int64
	payload domain.Payload
}

type testGateway struct {
	mu         sync.Mutex
	messages   []sentMessage
	replies    []sentReply
	payloads   []sentPayload
	payloadErr error
}

func (g *testGateway) Self() domain.BotIdentity {
	return domain.BotIdentity{ID: 999, FirstName: "Pretender", Username: "pretender_bot"}
}

func (g *testGateway) SendMessage(_ context.Context, chatID int64, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.messages = append(g.messages, sentMessage{chatID: chatID, text: text})
	return nil
}

func (g *testGateway) SendPayload(_ context.Context, chatID int64, payload domain.Payload) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloads = append(g.payloads, sentPayload{chatID: chatID, payload: payload})
	return g.payloadErr
}

func (g *testGateway) Reply(_ context.Context, chatID int64, messageID int, text string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.replies = append(g.replies, sentReply{chatID: chatID, messageID: messageID, text: text})
	return nil
}

func (g *testGateway) Ping(context.Context) error {
	return nil
}

func (g *testGateway) setPayloadErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.payloadErr = err
}

var (
	errKicked = &domain.DeliveryError{Reason: domain.ReasonForbidden, Code: 403, Err: errors.New("Forbidden: bot was kicked from the group chat")}
	errFlood  = &domain.DeliveryError{Reason: domain.ReasonOther, Code: 429, Err: errors.New("Too Many Requests: retry after 5")}
	errSlow   = &domain.DeliveryError{Reason: domain.ReasonTimeout, Err: context.DeadlineExceeded}
)
