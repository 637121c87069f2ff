package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Simulates a crew's workday against the mock backend: each worker
// registers, attests, clocks in and clocks out. Useful for smoke-testing
// the mock under concurrent devices.
func main() {
	// Ensure this URL matches the mock backend address.
	url := "http://localhost:8090/"
	contentType := "application/json"

	numWorkers := 200
	concurrency := 20 // Limit concurrency to avoid local port exhaustion

	fmt.Printf("Starting day simulation: %d workers to %s with concurrency %d\n", numWorkers, url, concurrency)

	var wg sync.WaitGroup
	sem := make(chan struct{}, concurrency)

	var successCount int64
	var failCount int64

	startTime := time.Now()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		sem <- struct{}{}

		deviceID := fmt.Sprintf("sim-device-%d", i)

		go func(devID string) {
			defer wg.Done()
			defer func() { <-sem }()

			steps := []string{
				fmt.Sprintf(`{"action":"init","appKey":"ZAK_ATT_2026_demo","deviceId":"%s","name":"Sim Worker %s"}`, devID, devID),
				fmt.Sprintf(`{"action":"register_osha","appKey":"ZAK_ATT_2026_demo","deviceId":"%s","oshaExpiryISO":"2027-01-01","oshaPhotoBase64":"aGk=","oshaPhotoMime":"image/jpeg"}`, devID),
				fmt.Sprintf(`{"action":"attest","appKey":"ZAK_ATT_2026_demo","deviceId":"%s","signature":"Sim Worker","statements":{"watchedSafetyVideo":true,"notUnderInfluence":true,"ppeInspected":true,"noPreExistingInjuries":true,"understoodConsequences":true}}`, devID),
				fmt.Sprintf(`{"action":"event","appKey":"ZAK_ATT_2026_demo","deviceId":"%s","type":"IN","siteId":"site_main","coords":{"lat":40.7128,"lon":-74.0060}}`, devID),
				fmt.Sprintf(`{"action":"event","appKey":"ZAK_ATT_2026_demo","deviceId":"%s","type":"OUT","siteId":"site_main","coords":{"lat":40.7128,"lon":-74.0060},"workNote":"poured the footings"}`, devID),
			}

			for _, payload := range steps {
				resp, err := http.Post(url, contentType, bytes.NewBufferString(payload))
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					continue
				}
				if resp.StatusCode >= 200 && resp.StatusCode < 300 {
					atomic.AddInt64(&successCount, 1)
				} else {
					atomic.AddInt64(&failCount, 1)
				}
				resp.Body.Close()
			}
		}(deviceID)
	}

	wg.Wait()
	duration := time.Since(startTime)
	totalRequests := numWorkers * 5

	fmt.Println("\n--- Day Simulation Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
}
