package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hanamilabs/pretender-bot/internal/config"
	"github.com/hanamilabs/pretender-bot/internal/domain"
	"github.com/hanamilabs/pretender-bot/internal/service"
	"github.com/hanamilabs/pretender-bot/internal/telemetry"
)

type stubStore struct {
	data domain.Mapping
}

func (s *stubStore) Load(context.Context) (domain.Mapping, error) { return s.data.Clone(), nil }

func (s *stubStore) Save(_ context.Context, mapping domain.Mapping) error {
	s.data = mapping.Clone()
	return nil
}

type stubGateway struct {
	pingErr error
}

func (stubGateway) Self() domain.BotIdentity                                 { return domain.BotIdentity{ID: 1} }
func (stubGateway) SendMessage(context.Context, int64, string) error         { return nil }
func (stubGateway) SendPayload(context.Context, int64, domain.Payload) error { return nil }
func (stubGateway) Reply(context.Context, int64, int, string) error          { return nil }
func (g stubGateway) Ping(context.Context) error                             { return g.pingErr }

func newTestServer(t *testing.T, gateway stubGateway, relays domain.Mapping) (*HealthServer, *stubStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := &stubStore{data: relays}
	directory, err := service.NewDirectory(context.Background(), store)
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	relay := service.NewRelayService(logger, gateway, directory, config.DefaultProjectURL)
	cfg := config.Config{StoreBackend: "json", BotTransport: "polling", HealthPort: 0}
	return NewHealthServer(cfg, logger, gateway, service.NewControlService(directory, relay), "/data/pretender-bot.json"), store
}

func TestHealthReportsTelegramAndRelays(t *testing.T) {
	server, _ := newTestServer(t, stubGateway{pingErr: errors.New("Unauthorized")}, domain.Mapping{1: -1, 2: -2})

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var res healthResponse
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Telegram.OK || res.Telegram.Error != "Unauthorized" {
		t.Fatalf("unexpected telegram check %+v", res.Telegram)
	}
	if res.Relays.Count != 2 || res.Store.Location != "/data/pretender-bot.json" || res.Store.Backend != "json" {
		t.Fatalf("unexpected health %+v", res)
	}
}

func TestRelaysListAndUnlink(t *testing.T) {
	server, store := newTestServer(t, stubGateway{}, domain.Mapping{20: -2, 10: -1})
	handler := server.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/relays", nil))
	var list struct {
		Relays []service.RelayEntry `json:"relays"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Relays) != 2 || list.Relays[0].OwnerID != 10 {
		t.Fatalf("unexpected relays %+v", list.Relays)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/relays/unlink", strings.NewReader(`{"ownerId":"20"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if _, ok := store.data[20]; ok {
		t.Fatalf("owner still persisted: %v", store.data)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/relays/unlink", strings.NewReader(`{"ownerId":20}`)))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown owner, got %d", rec.Code)
	}
}

func TestUnlinkRejectsBadInput(t *testing.T) {
	server, _ := newTestServer(t, stubGateway{}, nil)
	handler := server.Handler()

	cases := []struct {
		method string
		body   string
		want   int
	}{
		{method: http.MethodGet, body: "", want: http.StatusMethodNotAllowed},
		{method: http.MethodPost, body: "nope", want: http.StatusBadRequest},
		{method: http.MethodPost, body: `{"ownerId":0}`, want: http.StatusBadRequest},
		{method: http.MethodPost, body: `{}`, want: http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(tc.method, "/relays/unlink", strings.NewReader(tc.body)))
		if rec.Code != tc.want {
			t.Fatalf("%s %q: got %d, want %d", tc.method, tc.body, rec.Code, tc.want)
		}
	}
}

func TestMetricsEndpointExposesRelayCounters(t *testing.T) {
	telemetry.Init()
	telemetry.RecordRelay("text")
	server, _ := newTestServer(t, stubGateway{}, nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "pretender_relays_total") {
		t.Fatal("relay counter missing from /metrics")
	}
}

func TestParseInt64Any(t *testing.T) {
	if v, ok := parseInt64Any(" -1001234567890 "); !ok || v != -1001234567890 {
		t.Fatalf("string id: %d %v", v, ok)
	}
	if v, ok := parseInt64Any(float64(42)); !ok || v != 42 {
		t.Fatalf("number id: %d %v", v, ok)
	}
	if _, ok := parseInt64Any(true); ok {
		t.Fatal("bool must not parse")
	}
}
