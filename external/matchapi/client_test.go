package matchapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/riskibarqy/matchpulse/internal/platform/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{BaseURL: server.URL + "/", Timeout: 2 * time.Second, Logger: logging.NewNop()})
}

func TestClient_LiveDecodesResource(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/resources/live" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"apiVersion":"2.0","data":{"items":[{"id":"100","league":{"id":39,"name":"Premier League"},"homeTeam":{"id":40,"name":"Liverpool"},"awayTeam":{"id":50,"name":"Manchester City"},"homeScore":1,"awayScore":0,"status":"live","statusCode":"1H","minuteElapsed":23,"kickoffTime":"2026-02-11T19:45:00Z","venue":"Anfield","events":[]}],"stale":true,"error":"feed status=503","fetchedAt":"2026-02-11T20:00:00Z"}}`))
	})

	res, err := client.Live(context.Background())
	if err != nil {
		t.Fatalf("live: %v", err)
	}
	if len(res.Items) != 1 || res.Items[0].HomeTeam.Name != "Liverpool" || res.Items[0].MinuteElapsed != 23 {
		t.Fatalf("unexpected items %+v", res.Items)
	}
	if !res.Stale || res.Error != "feed status=503" {
		t.Fatalf("expected stale resource with error, got %+v", res)
	}
	if res.FetchedAt == nil || !res.FetchedAt.Equal(time.Date(2026, 2, 11, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected fetchedAt %v", res.FetchedAt)
	}
}

func TestClient_UpcomingSendsDays(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/resources/upcoming" || r.URL.Query().Get("days") != "5" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`{"apiVersion":"2.0","data":{"items":[],"stale":false}}`))
	})

	res, err := client.Upcoming(context.Background(), 5)
	if err != nil {
		t.Fatalf("upcoming: %v", err)
	}
	if len(res.Items) != 0 || res.Stale {
		t.Fatalf("unexpected resource %+v", res)
	}
}

func TestClient_LeagueMatchesAndLeagues(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/resources/league/39/matches":
			_, _ = w.Write([]byte(`{"apiVersion":"2.0","data":{"items":[{"id":"7","league":{"id":39}}],"stale":false}}`))
		case "/v1/resources/leagues":
			_, _ = w.Write([]byte(`{"apiVersion":"2.0","data":{"items":[{"id":39,"name":"Premier League","country":"England","season":2025}],"stale":false}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	matches, err := client.LeagueMatches(context.Background(), 39)
	if err != nil {
		t.Fatalf("league matches: %v", err)
	}
	if len(matches.Items) != 1 || matches.Items[0].League.ID != 39 {
		t.Fatalf("unexpected league matches %+v", matches)
	}

	leagues, err := client.Leagues(context.Background())
	if err != nil {
		t.Fatalf("leagues: %v", err)
	}
	if len(leagues.Items) != 1 || leagues.Items[0].Country != "England" {
		t.Fatalf("unexpected leagues %+v", leagues)
	}
}

func TestClient_ErrorEnvelopeBecomesAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"apiVersion":"2.0","error":{"code":404,"message":"match 999 not found","status":"NOT_FOUND","errors":[{"domain":"matchpulse","reason":"notFound","message":"match 999 not found"}]}}`))
	})

	_, err := client.Match(context.Background(), "999")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if !apiErr.NotFound() || apiErr.Reason != "notFound" || apiErr.Status != "NOT_FOUND" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestClient_MalformedBody(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	})

	if _, err := client.Live(context.Background()); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestClient_CanceledContext(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("request should not be sent")
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Live(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
