//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"testing"
	"time"
)

var (
	baseURL   = getenv("E2E_BASE_URL", "http://localhost:8080")
	adminUser = getenv("E2E_ADMIN_USERNAME", "admin")
	adminPass = getenv("E2E_ADMIN_PASSWORD", "adminpass")
)

func TestSystem_E2E(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	adminTok := login(t, adminUser, adminPass)

	suffix := fmt.Sprintf("%d_%d", time.Now().Unix(), rand.Intn(100000))
	username := "user_" + suffix
	pass := "password123!"

	doJSON(t, http.MethodPost, baseURL+"/api/auth/register", map[string]any{
		"username": username,
		"email":    username + "@example.com",
		"password": pass,
	}, nil, 201)
	userTok := login(t, username, pass)

	var product map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/api/products", adminTok, map[string]any{
		"name":     "E2E Candle " + suffix,
		"price":    12.5,
		"stock":    10,
		"category": "decor",
	}, &product, 201)

	pid, _ := product["id"].(string)
	if pid == "" {
		t.Fatalf("product id missing in response: %#v", product)
	}

	var wish map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/api/wishlist", userTok, map[string]any{"product_id": pid}, &wish, 201)
	wid, _ := wish["id"].(string)

	var cart map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/api/wishlist/"+wid+"/move-to-cart", userTok, nil, &cart, 201)
	cid, _ := cart["id"].(string)

	var created map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/api/orders", userTok, map[string]any{
		"cart_id":          cid,
		"shipping_address": "1 Test Road",
	}, &created, 201)

	orderID, _ := created["id"].(string)
	if orderID == "" {
		t.Fatalf("order id missing: %#v", created)
	}
	if total, _ := created["total_cents"].(float64); total != 1250 {
		t.Fatalf("total_cents=%v want 1250", created["total_cents"])
	}

	var got map[string]any
	doJSONAuth(t, http.MethodGet, baseURL+"/api/orders/"+orderID, userTok, nil, &got, 200)

	doJSONAuth(t, http.MethodPost, baseURL+"/api/products/"+pid+"/reviews", userTok, map[string]any{
		"rating": 5,
		"body":   "Smells great",
	}, nil, 201)

	if os.Getenv("E2E_CLEANUP") == "1" {
		doJSONAuth(t, http.MethodDelete, baseURL+"/api/products/"+pid, adminTok, nil, nil, 204)
	}
}

func login(t *testing.T, username, password string) string {
	t.Helper()

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	doJSON(t, http.MethodPost, baseURL+"/api/auth/login", map[string]any{
		"username": username,
		"password": password,
	}, &resp, 200)
	if resp.AccessToken == "" {
		t.Fatalf("empty access_token for %s", username)
	}
	return resp.AccessToken
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()
	doJSONAuth(t, method, url, "", body, out, want)
}

func doJSONAuth(t *testing.T, method, url, token string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
