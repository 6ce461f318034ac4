package asaas

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFindOrCreateCustomerReusesExisting(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/customers" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.URL.Query().Get("cpfCnpj"); got != "12345678900" {
			t.Fatalf("cpfCnpj = %q", got)
		}
		if got := r.Header.Get("access_token"); got != "key123" {
			t.Fatalf("access_token header = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"id": "cus_existing"}},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123", srv.Client())
	id, err := c.FindOrCreateCustomer(context.Background(), Customer{Name: "Ana", Document: "12345678900"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "cus_existing" {
		t.Fatalf("id = %q, want cus_existing", id)
	}
}

func TestFindOrCreateCustomerCreatesWhenMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
		case http.MethodPost:
			if r.Header.Get("asaas-idempotency-key") == "" {
				t.Fatal("mutating request missing idempotency key")
			}
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			if body["cpfCnpj"] != "12345678900" || body["name"] != "Ana" {
				t.Fatalf("create body = %v", body)
			}
			json.NewEncoder(w).Encode(map[string]string{"id": "cus_new"})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123", srv.Client())
	id, err := c.FindOrCreateCustomer(context.Background(), Customer{Name: "Ana", Document: "12345678900"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "cus_new" {
		t.Fatalf("id = %q, want cus_new", id)
	}
}

func TestCreateChargeConvertsAmountToDecimal(t *testing.T) {
	due := time.Date(2026, 9, 12, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments" || r.Method != http.MethodPost {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["value"] != 1800.0 {
			t.Fatalf("value = %v, want 1800 reais for 180000 cents", body["value"])
		}
		if body["dueDate"] != "2026-09-12" {
			t.Fatalf("dueDate = %v", body["dueDate"])
		}
		if body["externalReference"] != "RSV-7" {
			t.Fatalf("externalReference = %v", body["externalReference"])
		}
		if body["billingType"] != "UNDEFINED" {
			t.Fatalf("billingType = %v", body["billingType"])
		}
		json.NewEncoder(w).Encode(map[string]string{
			"id": "pay_1", "status": "PENDING", "invoiceUrl": "https://inv/pay_1",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123", srv.Client())
	charge, err := c.CreateCharge(context.Background(), ChargeRequest{
		CustomerRef: "cus_1",
		AmountCents: 180000,
		DueDate:     due,
		Description: "Reservation RSV-7",
		ExternalRef: "RSV-7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if charge.ID != "pay_1" || charge.PaymentLink != "https://inv/pay_1" {
		t.Fatalf("charge = %+v", charge)
	}
}

func TestChargeStatusAndCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/payments/pay_1" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]string{"status": "CONFIRMED"})
		case http.MethodDelete:
			json.NewEncoder(w).Encode(map[string]any{"deleted": true, "id": "pay_1"})
		default:
			t.Fatalf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key123", srv.Client())
	status, err := c.ChargeStatus(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status != "CONFIRMED" {
		t.Fatalf("status = %q, want CONFIRMED", status)
	}
	deleted, err := c.CancelCharge(context.Background(), "pay_1")
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !deleted {
		t.Fatal("cancel not acknowledged")
	}
}

func TestAPIFailuresWrapErrGateway(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"errors":[{"code":"invalid_api_key"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "bad-key", srv.Client())
	if _, err := c.ChargeStatus(context.Background(), "pay_1"); !errors.Is(err, ErrGateway) {
		t.Fatalf("err = %v, want ErrGateway", err)
	}
	if _, err := c.CreateCharge(context.Background(), ChargeRequest{}); !errors.Is(err, ErrGateway) {
		t.Fatalf("err = %v, want ErrGateway", err)
	}
}
