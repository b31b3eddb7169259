package akahu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestListAccounts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/accounts" {
			t.Errorf("path = %q, want /accounts", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer user-token" {
			t.Errorf("Authorization = %q", got)
		}
		if got := r.Header.Get("X-Akahu-ID"); got != "app-token" {
			t.Errorf("X-Akahu-ID = %q", got)
		}
		w.Write([]byte(`{"items":[{"_id":"acc_1","name":"Everyday","balance":{"current":1234.56,"currency":"NZD"}}]}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "user-token", "app-token")
	accounts, err := client.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts() error = %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(accounts))
	}
	if accounts[0].ID != "acc_1" {
		t.Errorf("account ID = %q, want acc_1", accounts[0].ID)
	}
	if got := accounts[0].ToDomain().Balance; got != 123456 {
		t.Errorf("domain balance = %d, want 123456", got)
	}
}

func TestListTransactions_WindowAndCursor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("start") == "" || q.Get("end") == "" {
			t.Errorf("expected start and end query params, got %v", q)
		}
		if q.Get("cursor") != "c1" {
			t.Errorf("cursor = %q, want c1", q.Get("cursor"))
		}
		w.Write([]byte(`{"items":[{"_id":"tx_1","_account":"acc_1","date":"2024-05-01T10:30:00Z","amount":-45.67,"description":"COUNTDOWN"}],"cursor":{"next":null}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "a")
	page, err := client.ListTransactions(context.Background(), "acc_1", ListOptions{
		Start:  time.Date(2024, 4, 24, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Cursor: "c1",
	})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if page.Items == nil || len(*page.Items) != 1 {
		t.Fatalf("expected 1 item, got %+v", page.Items)
	}
	if page.Cursor == nil || page.Cursor.Next != nil {
		t.Errorf("expected terminal cursor, got %+v", page.Cursor)
	}
	tx := (*page.Items)[0]
	if tx.ID != "tx_1" || tx.Description != "COUNTDOWN" {
		t.Errorf("unexpected transaction: %+v", tx)
	}
	if tx.Amount.String() != "-45.67" {
		t.Errorf("amount = %s, want -45.67", tx.Amount)
	}
}

func TestListTransactions_MissingItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"cursor":{"next":null}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "a")
	page, err := client.ListTransactions(context.Background(), "acc_1", ListOptions{})
	if err != nil {
		t.Fatalf("ListTransactions() error = %v", err)
	}
	if page.Items != nil {
		t.Errorf("expected nil Items for a response without the field, got %+v", page.Items)
	}
}

func TestDoRequest_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"success":false}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "u", "a")
	if _, err := client.ListAccounts(context.Background()); err == nil {
		t.Fatal("expected error for 401 response")
	}
}
