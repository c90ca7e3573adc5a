//go:build ignore
// +build ignore

// Package main is a manual concurrency stress test against a running server.
//
// Usage:
//
//	JWT_SECRET=... MODE=borrow  BOOK_ID=1 CUSTOMER_IDS=1,2,3 go run ./scripts/concurrency_test.go
//	JWT_SECRET=... MODE=reserve ROOM_ID=1 CUSTOMER_IDS=1,2,3 go run ./scripts/concurrency_test.go
//
// borrow fires one self-service borrow per customer at the same book at the
// same instant; at most as many succeed as the book has available copies and
// every other request must come back 409.
//
// reserve fires overlapping reservations for the same room window; exactly
// one must succeed.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"librarycore/internal/handlers"
)

const defaultServerAddr = "http://localhost:8080"

type result struct {
	CustomerID int64
	StatusCode int
	Body       string
	Err        error
}

func main() {
	serverAddr := os.Getenv("SERVER_URL")
	if serverAddr == "" {
		serverAddr = defaultServerAddr
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		log.Fatal("JWT_SECRET must match the server's")
	}

	var customerIDs []int64
	for _, s := range strings.Split(os.Getenv("CUSTOMER_IDS"), ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			log.Fatalf("bad customer id %q", s)
		}
		customerIDs = append(customerIDs, id)
	}
	if len(customerIDs) == 0 {
		log.Fatal("CUSTOMER_IDS must list at least one customer id")
	}

	var (
		path string
		body func() []byte
	)
	switch mode := os.Getenv("MODE"); mode {
	case "", "borrow":
		bookID := os.Getenv("BOOK_ID")
		if bookID == "" {
			log.Fatal("BOOK_ID is required for MODE=borrow")
		}
		path = "/books/" + bookID + "/borrow"
		body = func() []byte { return nil }
	case "reserve":
		roomID := os.Getenv("ROOM_ID")
		if roomID == "" {
			log.Fatal("ROOM_ID is required for MODE=reserve")
		}
		path = "/rooms/" + roomID + "/reservations"
		start := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Hour)
		body = func() []byte {
			b, _ := json.Marshal(map[string]any{
				"start_dt":   start,
				"end_dt":     start.Add(2 * time.Hour),
				"group_size": 2,
				"topic_desc": "stress test",
			})
			return b
		}
	default:
		log.Fatalf("unknown MODE %q", mode)
	}

	fmt.Printf("=== Library Concurrency Test ===\n")
	fmt.Printf("Server    : %s\n", serverAddr)
	fmt.Printf("Endpoint  : POST %s\n", path)
	fmt.Printf("Customers : %d\n\n", len(customerIDs))

	results := make([]result, len(customerIDs))
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i, cid := range customerIDs {
		token, err := handlers.SignToken(secret, handlers.Claims{
			Roles:      []string{"customer"},
			CustomerID: &customerIDs[i],
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   fmt.Sprintf("stress-%d", cid),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(10 * time.Minute)),
			},
		})
		if err != nil {
			log.Fatalf("sign token: %v", err)
		}

		wg.Add(1)
		go func(idx int, customerID int64, token string) {
			defer wg.Done()
			<-start
			results[idx] = post(serverAddr+path, token, body(), customerID)
		}(i, cid, token)
	}

	fmt.Println("Firing all requests simultaneously...")
	close(start)
	wg.Wait()
	fmt.Println("All requests completed.")

	var created, conflicts, failures int
	for _, r := range results {
		switch {
		case r.Err != nil:
			failures++
			fmt.Printf("  [ERR ] customer=%-6d err=%v\n", r.CustomerID, r.Err)
		case r.StatusCode == http.StatusCreated:
			created++
			fmt.Printf("  [OK  ] customer=%-6d status=%d\n", r.CustomerID, r.StatusCode)
		case r.StatusCode == http.StatusConflict:
			conflicts++
			fmt.Printf("  [409 ] customer=%-6d %s\n", r.CustomerID, r.Body)
		default:
			failures++
			fmt.Printf("  [FAIL] customer=%-6d status=%d %s\n", r.CustomerID, r.StatusCode, r.Body)
		}
	}

	fmt.Printf("\n--- Summary ---\n")
	fmt.Printf("Created   : %d\n", created)
	fmt.Printf("Conflicts : %d\n", conflicts)
	fmt.Printf("Failures  : %d\n", failures)
	fmt.Printf("Total     : %d\n", len(customerIDs))

	if failures > 0 {
		fmt.Printf("\n[WARNING] %d request(s) failed, check server logs.\n", failures)
		os.Exit(1)
	}
}

func post(url, token string, body []byte, customerID int64) result {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return result{CustomerID: customerID, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return result{CustomerID: customerID, Err: err}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	return result{CustomerID: customerID, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
}
