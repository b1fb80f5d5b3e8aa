package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Fires training triggers for one tenant against a running API server, then
// polls the namespace count so the idempotent convergence of duplicate jobs
// can be observed by eye.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "API server base URL")
	apiKey := flag.String("api-key", "supersecretkey", "Service API key")
	tenant := flag.String("tenant", "demo-shop.example.com", "Tenant key")
	token := flag.String("token", "dev-token", "Tenant access token")
	triggers := flag.Int("n", 3, "Number of training triggers to fire")
	rps := flag.Float64("rps", 1, "Trigger rate limit per second")
	poll := flag.Duration("poll", 5*time.Second, "Namespace count poll interval")
	pollFor := flag.Duration("poll-for", 2*time.Minute, "How long to poll the count")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), *pollFor+time.Minute)
	defer cancel()

	limiter := rate.NewLimiter(rate.Limit(*rps), 1)

	log.Printf("Firing %d training triggers for %s", *triggers, *tenant)
	for i := 0; i < *triggers; i++ {
		if err := limiter.Wait(ctx); err != nil {
			log.Fatalf("rate limiter wait: %v", err)
		}

		payload := fmt.Sprintf(`{"access_token": %q}`, *token)
		url := fmt.Sprintf("%s/v1/tenants/%s/training", *baseURL, *tenant)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBufferString(payload))
		if err != nil {
			log.Fatalf("build request: %v", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-API-Key", *apiKey)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("trigger %d failed: %v", i+1, err)
			continue
		}

		var body struct {
			JobID string `json:"job_id"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		log.Printf("trigger %d: status=%d job_id=%s", i+1, resp.StatusCode, body.JobID)
	}

	log.Printf("Polling namespace count every %s for %s", *poll, *pollFor)
	deadline := time.Now().Add(*pollFor)
	ticker := time.NewTicker(*poll)
	defer ticker.Stop()

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			url := fmt.Sprintf("%s/v1/tenants/%s/embeddings/count", *baseURL, *tenant)
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				log.Fatalf("build request: %v", err)
			}
			req.Header.Set("X-API-Key", *apiKey)

			resp, err := client.Do(req)
			if err != nil {
				log.Printf("count poll failed: %v", err)
				continue
			}

			var body struct {
				Count int64 `json:"count"`
			}
			_ = json.NewDecoder(resp.Body).Decode(&body)
			resp.Body.Close()
			log.Printf("namespace count: %d", body.Count)
		}
	}
}
