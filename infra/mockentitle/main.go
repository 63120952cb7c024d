// Mock entitlement oracle for local warden runs.
// Answers every eligibility check, denying only the sessions listed via -deny.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"strings"
	"time"
)

type checkRequest struct {
	Session string `json:"session_id"`
}

type checkResponse struct {
	Eligible bool   `json:"eligible"`
	Reason   string `json:"reason,omitempty"`
}

func main() {
	addr := flag.String("addr", ":9200", "listen address")
	deny := flag.String("deny", "", "comma-separated session ids to report as ineligible")
	latency := flag.Duration("latency", 0, "artificial delay before answering, for timeout testing")
	flag.Parse()

	denied := map[string]bool{}
	for _, s := range strings.Split(*deny, ",") {
		if s = strings.TrimSpace(s); s != "" {
			denied[s] = true
		}
	}

	http.HandleFunc("/v1/entitlements/check", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req checkRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		if *latency > 0 {
			time.Sleep(*latency)
		}

		resp := checkResponse{Eligible: !denied[req.Session]}
		if !resp.Eligible {
			resp.Reason = "denied by mock"
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("write response: %v", err)
			return
		}
		log.Printf("session=%s eligible=%v", req.Session, resp.Eligible)
	})

	log.Printf("Mock entitlement oracle listening on %s", *addr)
	log.Printf("Usage: POST /v1/entitlements/check {\"session_id\": \"...\"}")
	log.Fatal(http.ListenAndServe(*addr, nil))
}
