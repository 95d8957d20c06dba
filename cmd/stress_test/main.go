package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rl1809/shop-cart/internal/adapter/handler"
	"github.com/rl1809/shop-cart/internal/core/domain"
)

const (
	defaultBaseURL = "http://localhost:8080"
	password       = "stresspassw"
	itemID         = 1
	itemPrice      = "2.99"
	totalRequests  = 50
	submitEvery    = 10
)

var client = &http.Client{Timeout: 30 * time.Second}

func main() {
	baseURL := os.Getenv("STRESS_BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	username := "stress-" + uuid.NewString()[:8]
	token := signup(baseURL, username)

	var addOK, addFail, submitOK, submitFail atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	// Concurrent adds interleaved with submits against the same cart
	for i := 0; i < totalRequests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, _ := call(http.MethodPost, baseURL+"/api/cart/addToCart", token,
				handler.ModifyCartRequest{Username: username, ItemID: itemID, Quantity: 1})
			if status == http.StatusOK {
				addOK.Add(1)
			} else {
				addFail.Add(1)
			}
		}()

		if i%submitEvery == 0 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				status, _ := call(http.MethodPost, baseURL+"/api/order/submit/"+username, token, nil)
				if status == http.StatusOK {
					submitOK.Add(1)
				} else {
					submitFail.Add(1)
				}
			}()
		}
	}

	wg.Wait()
	elapsed := time.Since(start)

	var orders []domain.UserOrder
	mustDecode(call(http.MethodGet, baseURL+"/api/order/history/"+username, token, nil))(&orders)
	var cart domain.Cart
	mustDecode(call(http.MethodGet, baseURL+"/api/cart/"+username, token, nil))(&cart)

	items := len(cart.Items)
	total := cart.Total
	for _, o := range orders {
		items += len(o.Items)
		total = total.Add(o.Total)
	}
	expected := domain.MustMoney(itemPrice).Mul(int(addOK.Load()))

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("User:             %s\n", username)
	fmt.Printf("Adds ok/failed:   %d/%d\n", addOK.Load(), addFail.Load())
	fmt.Printf("Submits ok/fail:  %d/%d\n", submitOK.Load(), submitFail.Load())
	fmt.Printf("Orders:           %d\n", len(orders))
	fmt.Printf("Items accounted:  %d\n", items)
	fmt.Printf("Money accounted:  %s (expected %s)\n", total, expected)
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Println("==========================================")

	if items == int(addOK.Load()) && total.Equal(expected) {
		fmt.Println("PASS: every added item is in exactly one order or the cart")
	} else {
		fmt.Println("FAIL: items lost or duplicated between cart and orders")
		os.Exit(1)
	}
}

func signup(baseURL, username string) string {
	status, _ := call(http.MethodPost, baseURL+"/api/user/create", "",
		handler.CreateUserRequest{Username: username, Password: password, ConfirmPassword: password})
	if status != http.StatusOK {
		log.Fatalf("signup failed: status %d", status)
	}

	body, _ := json.Marshal(handler.LoginRequest{Username: username, Password: password})
	resp, err := client.Post(baseURL+"/login", "application/json", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("login failed: %v", err)
	}
	resp.Body.Close()

	token := resp.Header.Get("Authorization")
	if resp.StatusCode != http.StatusOK || token == "" {
		log.Fatalf("login failed: status %d", resp.StatusCode)
	}
	return token
}

func call(method, url, token string, payload any) (int, []byte) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Fatalf("marshal request: %v", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, body)
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Printf("%s %s: %v", method, url, err)
		return 0, nil
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

func mustDecode(status int, data []byte) func(v any) {
	return func(v any) {
		if status != http.StatusOK {
			log.Fatalf("unexpected status %d", status)
		}
		if err := json.Unmarshal(data, v); err != nil {
			log.Fatalf("decode response: %v", err)
		}
	}
}
