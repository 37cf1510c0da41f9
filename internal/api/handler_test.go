package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tradewind/internal/orders"
	"tradewind/internal/orders/saga"
)

type captureChannel struct {
	events []saga.Event
}

func (c *captureChannel) Publish(_ context.Context, ev saga.Event) error {
	c.events = append(c.events, ev)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *orders.MemoryStore, *captureChannel) {
	t.Helper()
	store := orders.NewMemoryStore()
	channel := &captureChannel{}
	service := orders.NewService(store, channel, nil)
	handler := NewHandler(service, nil, func(string, ...any) {})
	return NewRouter(handler), store, channel
}

func createOrder(t *testing.T, router http.Handler) OrderResponse {
	t.Helper()
	body := `{"customer_id":"customer-1","items":[{"product_id":"P1","quantity":2,"unit_price":5}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create order: status %d, body %s", rr.Code, rr.Body.String())
	}
	var resp OrderResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal order: %v", err)
	}
	return resp
}

func TestCreateOrder(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	resp := createOrder(t, router)

	if resp.State != "OPEN" {
		t.Fatalf("expected OPEN, got %s", resp.State)
	}
	if resp.Amount != 10 {
		t.Fatalf("expected amount 10, got %v", resp.Amount)
	}
	if resp.ID == "" {
		t.Fatalf("expected generated id")
	}
}

func TestCreateOrder_Invalid(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing customer", `{"items":[{"product_id":"P1","quantity":1,"unit_price":1}]}`},
		{"no items", `{"customer_id":"customer-1","items":[]}`},
		{"bad item", `{"customer_id":"customer-1","items":[{"product_id":"P1","quantity":0,"unit_price":1}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/orders", strings.NewReader(tc.body))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestGetOrder(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	created := createOrder(t, router)

	req := httptest.NewRequest(http.MethodGet, "/orders/"+created.ID, nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders/nope", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestSubmitOrder_DeclaresSaga(t *testing.T) {
	t.Parallel()

	router, store, channel := newTestRouter(t)
	created := createOrder(t, router)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+created.ID+"/submit", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp SubmitResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal submit response: %v", err)
	}
	if resp.SagaID == "" || resp.OrderID != created.ID {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if len(channel.events) != 1 || channel.events[0].Step != saga.StepDeclared {
		t.Fatalf("expected one DECLARED event, got %+v", channel.events)
	}

	// Submit alone does not transition the order.
	order, _, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if order.State != orders.StateOpen {
		t.Fatalf("expected order still OPEN, got %s", order.State)
	}
}

func TestSubmitOrder_Conflict(t *testing.T) {
	t.Parallel()

	router, _, _ := newTestRouter(t)
	created := createOrder(t, router)

	req := httptest.NewRequest(http.MethodPost, "/orders/"+created.ID+"/cancel", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", rr.Code)
	}

	req = httptest.NewRequest(http.MethodPost, "/orders/"+created.ID+"/submit", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestOperatorTransitions(t *testing.T) {
	t.Parallel()

	router, store, _ := newTestRouter(t)
	created := createOrder(t, router)

	// Delivery endpoints require a SUBMITTED order.
	req := httptest.NewRequest(http.MethodPost, "/orders/"+created.ID+"/start-delivery", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for OPEN order, got %d", rr.Code)
	}

	order, _, _ := store.Get(context.Background(), created.ID)
	order.Submit()
	if err := store.Save(context.Background(), order); err != nil {
		t.Fatalf("save: %v", err)
	}

	for _, path := range []string{"start-delivery", "complete-delivery", "close"} {
		req := httptest.NewRequest(http.MethodPost, "/orders/"+created.ID+"/"+path, nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d: %s", path, rr.Code, rr.Body.String())
		}
	}

	order, _, _ = store.Get(context.Background(), created.ID)
	if order.State != orders.StateClosed {
		t.Fatalf("expected CLOSED, got %s", order.State)
	}

	req = httptest.NewRequest(http.MethodPost, "/orders/nope/cancel", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}
