package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExchangeLongLivedToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("grant_type") != "fb_exchange_token" {
			t.Errorf("grant_type = %q", q.Get("grant_type"))
		}
		if q.Get("client_id") != "app-1" || q.Get("client_secret") != "shh" {
			t.Errorf("credentials = %q / %q", q.Get("client_id"), q.Get("client_secret"))
		}
		if q.Get("fb_exchange_token") != "short-1" {
			t.Errorf("fb_exchange_token = %q", q.Get("fb_exchange_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"long-1","token_type":"bearer","expires_in":5183944}`))
	}))
	defer srv.Close()

	e := NewExchanger("app-1", "shh")
	e.SetEndpoint(srv.URL)

	got, err := e.Exchange(context.Background(), "short-1")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if got != "long-1" {
		t.Fatalf("token = %q, want long-1", got)
	}
}

func TestExchangeErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"bad token"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	e := NewExchanger("app-1", "shh")
	e.SetEndpoint(srv.URL)

	if _, err := e.Exchange(context.Background(), "short-1"); err == nil {
		t.Fatal("expected an error for a 400 exchange response")
	}
}

func TestExchangeEmptyToken(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	e := NewExchanger("app-1", "shh")
	e.SetEndpoint(srv.URL)

	if _, err := e.Exchange(context.Background(), "short-1"); err == nil {
		t.Fatal("expected an error for an empty exchange response")
	}
}

func TestFetchMapsGraphProfile(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok-1" {
			t.Errorf("access_token = %q", r.URL.Query().Get("access_token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"fb-1","name":"Jane Doe","first_name":"Jane","last_name":"Doe","email":"jane@example.com"}`))
	}))
	defer srv.Close()

	f := NewFetcher()
	f.SetEndpoint(srv.URL)

	p, err := f.Fetch(context.Background(), "tok-1")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if p.ProviderName != "facebook" || p.ProviderID != "fb-1" {
		t.Fatalf("profile = %+v", p)
	}
	if p.DisplayName != "Jane Doe" || p.FirstName != "Jane" || p.LastName != "Doe" {
		t.Fatalf("names = %+v", p)
	}
	if p.PrimaryEmail() != "jane@example.com" {
		t.Fatalf("email = %q", p.PrimaryEmail())
	}
}
