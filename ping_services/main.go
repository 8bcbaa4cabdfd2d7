// Ping the IBKR Client Portal gateway and the calendar API to measure
// network latency from this host.
//
// Measures cold-start (DNS + TLS + HTTP) and warm keep-alive round-trip
// times. Unauthenticated requests are expected to come back 401 from the
// gateway; the transport timing is what matters here. The public IPs are
// printed because IBKR consumer keys can be IP-restricted.
//
// Usage:
//
//	go run ./ping_services            # default: 20 requests per endpoint
//	go run ./ping_services -n 50      # 50 requests per endpoint
//	go run ./ping_services --ws       # also ping the local bot's /ws stream
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parthchandak02/ibkr-cloud-run/internal/config"
)

const (
	gatewayStatusPath = "/iserver/auth/status"
	httpTimeout       = 10 * time.Second
	ipifyV4           = "https://api4.ipify.org"
	ipifyV6           = "https://api6.ipify.org"
)

func main() {
	n := flag.Int("n", 20, "Number of requests per endpoint")
	ws := flag.Bool("ws", false, "Also measure WebSocket ping/pong latency against the local bot")
	bot := flag.String("bot", "localhost:8000", "Local bot address for the --ws check")
	flag.Parse()

	cfg := config.Load()

	ipv4 := fetchURL(ipifyV4)
	if ipv4 == "" {
		ipv4 = "unavailable"
	}
	ipv6 := fetchURL(ipifyV6)
	if ipv6 == "" {
		ipv6 = "unavailable (no IPv6 connectivity)"
	}
	fmt.Printf("\nPinging services  |  IPv4: %s  |  IPv6: %s\n", ipv4, ipv6)

	pingEndpoint("IBKR GATEWAY", cfg.IBKRBaseURL+gatewayStatusPath, *n)

	if cfg.CalendarBaseURL != "" {
		pingEndpoint("CALENDAR API", strings.TrimRight(cfg.CalendarBaseURL, "/")+"/events", *n)
	} else {
		fmt.Println("\nCALENDAR_BASE_URL not set, skipping calendar check")
	}

	if *ws {
		pingFanout("ws://"+*bot+"/ws", *n)
	}
	fmt.Println()
}

func pingEndpoint(label, url string, n int) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  %s - %s\n", label, url)
	fmt.Printf("%s\n", strings.Repeat("=", 55))

	fmt.Println("\n  Cold-start request (DNS + TLS + HTTP):")
	if ms, code, err := measureHTTP(url, nil); err != nil {
		fmt.Printf("    FAILED: %v\n", err)
	} else {
		fmt.Printf("    %.1f ms  (HTTP %d)\n", ms, code)
	}

	fmt.Printf("\n  Warm HTTP latency (%d requests, keep-alive):\n", n)
	client := &http.Client{Timeout: httpTimeout}
	if _, _, err := measureHTTP(url, client); err != nil {
		fmt.Printf("  [!] Warm-up request failed: %v\n", err)
		return
	}

	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		ms, code, err := measureHTTP(url, client)
		if err != nil {
			fmt.Printf("  [%*d/%d]  FAILED: %v\n", pad, i, n, err)
			continue
		}
		latencies = append(latencies, ms)
		fmt.Printf("  [%*d/%d]  %7.1f ms  (HTTP %d)\n", pad, i, n, ms, code)
	}
	printStats(latencies, label)
}

func pingFanout(wsURL string, n int) {
	fmt.Printf("\n%s\n", strings.Repeat("=", 55))
	fmt.Printf("  BOT FANOUT - %s\n", wsURL)
	fmt.Printf("%s\n", strings.Repeat("=", 55))

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		fmt.Printf("\n  [!] WebSocket dial failed (is the bot running?): %v\n", err)
		return
	}
	defer conn.Close()

	pongCh := make(chan struct{}, 1)
	conn.SetPongHandler(func(string) error {
		select {
		case pongCh <- struct{}{}:
		default:
		}
		return nil
	})

	// Pong frames are only processed while a read is in flight.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	fmt.Printf("\n  WebSocket ping/pong latency (%d pings):\n", n)
	latencies := make([]float64, 0, n)
	pad := len(fmt.Sprintf("%d", n))
	for i := 1; i <= n; i++ {
		start := time.Now()
		if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(5*time.Second)); err != nil {
			fmt.Printf("  [!] WS ping failed: %v\n", err)
			break
		}
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		select {
		case <-pongCh:
			ms := float64(time.Since(start).Microseconds()) / 1000
			latencies = append(latencies, ms)
			fmt.Printf("  [%*d/%d]  %7.1f ms  (WS ping/pong)\n", pad, i, n, ms)
		case <-time.After(5 * time.Second):
			fmt.Printf("  [!] WS pong timeout\n")
			printStats(latencies, "BOT FANOUT")
			return
		}
	}
	printStats(latencies, "BOT FANOUT")
}

func measureHTTP(url string, client *http.Client) (ms float64, statusCode int, err error) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return 0, 0, err
	}
	c := client
	if c == nil {
		c = &http.Client{Timeout: httpTimeout}
	}
	start := time.Now()
	resp, err := c.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return 0, 0, err
	}
	defer resp.Body.Close()
	return float64(elapsed.Microseconds()) / 1000, resp.StatusCode, nil
}

func printStats(latencies []float64, label string) {
	if len(latencies) < 2 {
		fmt.Printf("\n  Not enough %s samples for statistics.\n", label)
		return
	}
	sorted := make([]float64, len(latencies))
	copy(sorted, latencies)
	sort.Float64s(sorted)

	mean := 0.0
	for _, v := range latencies {
		mean += v
	}
	mean /= float64(len(latencies))

	variance := 0.0
	for _, v := range latencies {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(latencies) - 1)
	stdev := math.Sqrt(variance)

	median := sorted[len(sorted)/2]
	p95Idx := int(float64(len(sorted)) * 0.95)
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}
	p99Idx := int(float64(len(sorted)) * 0.99)
	if p99Idx >= len(sorted) {
		p99Idx = len(sorted) - 1
	}

	fmt.Printf("\n  --- %s Stats (%d requests) ---\n", label, len(latencies))
	fmt.Printf("  Min:    %7.1f ms\n", sorted[0])
	fmt.Printf("  Max:    %7.1f ms\n", sorted[len(sorted)-1])
	fmt.Printf("  Mean:   %7.1f ms\n", mean)
	fmt.Printf("  Median: %7.1f ms\n", median)
	fmt.Printf("  Stdev:  %7.1f ms\n", stdev)
	fmt.Printf("  p95:    %7.1f ms\n", sorted[p95Idx])
	fmt.Printf("  p99:    %7.1f ms\n", sorted[p99Idx])
}

func fetchURL(u string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return ""
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	var b [64]byte
	n, _ := resp.Body.Read(b[:])
	return strings.TrimSpace(string(b[:n]))
}
