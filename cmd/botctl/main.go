// Command botctl is the operator control surface for a running
// cmd/server process: start, stop, emergency-stop, force-revalidate
// talk to the dashboard's control API; analyze runs a standalone,
// read-only diagnostic against the exchange directly; encrypt-secret
// and hash-password prepare values for the .env file.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"spotscan/internal/config"
	"spotscan/internal/coordinator"
	"spotscan/internal/exchange"
	"spotscan/internal/report"
	"spotscan/pkg/crypto"
	"spotscan/pkg/ratelimit"
)

const (
	exitOK             = 0
	exitStartupFailure = 1
	exitRuntimeFatal   = 2
	exitInterrupted    = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		usage()
		return exitStartupFailure
	}

	// encrypt-secret and hash-password are bootstrapping helpers: they
	// produce the .env values config.Load will later require, so they
	// must not themselves depend on a fully-validated Config.
	switch os.Args[1] {
	case "encrypt-secret":
		return encryptSecret()
	case "hash-password":
		return hashPassword()
	}

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "botctl: load config: %v\n", err)
		return exitStartupFailure
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch cmd := os.Args[1]; cmd {
	case "start":
		return postControl(ctx, cfg, "/api/v1/control/start", nil)
	case "stop":
		return postControl(ctx, cfg, "/api/v1/control/stop", nil)
	case "emergency-stop":
		reason := "operator requested via botctl"
		if len(os.Args) > 2 {
			reason = os.Args[2]
		}
		body, _ := json.Marshal(map[string]string{"reason": reason})
		return postControl(ctx, cfg, "/api/v1/control/emergency-stop", body)
	case "force-revalidate":
		return postControl(ctx, cfg, "/api/v1/control/force-revalidate", nil)
	case "analyze":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "botctl: analyze requires a symbol argument")
			return exitStartupFailure
		}
		return analyze(ctx, cfg, os.Args[2])
	default:
		usage()
		return exitStartupFailure
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: botctl <start|stop|emergency-stop [reason]|force-revalidate|analyze <symbol>|encrypt-secret <key> <plaintext>|hash-password <password>>")
}

// encryptSecret prints the AES-256-GCM ciphertext to put in
// BINANCE_API_SECRET, given the same 32-byte key that will be set as
// ENCRYPTION_KEY.
func encryptSecret() int {
	if len(os.Args) < 4 {
		fmt.Fprintln(os.Stderr, "botctl: encrypt-secret requires <key> <plaintext>")
		return exitStartupFailure
	}
	ciphertext, err := crypto.EncryptWithKeyString(os.Args[3], os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "botctl: encrypt-secret: %v\n", err)
		return exitRuntimeFatal
	}
	fmt.Println(ciphertext)
	return exitOK
}

// hashPassword prints the bcrypt hash to put in
// DASHBOARD_OPERATOR_PASSWORD_HASH.
func hashPassword() int {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "botctl: hash-password requires <password>")
		return exitStartupFailure
	}
	hash, err := crypto.HashPassword(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "botctl: hash-password: %v\n", err)
		return exitRuntimeFatal
	}
	fmt.Println(hash)
	return exitOK
}

func postControl(ctx context.Context, cfg *config.Config, path string, body []byte) int {
	url := "http://" + dashboardHost(cfg) + path

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "botctl: build request: %v\n", err)
		return exitRuntimeFatal
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "botctl: request failed: %v\n", err)
		return exitRuntimeFatal
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		fmt.Fprintf(os.Stderr, "botctl: server returned %d: %s\n", resp.StatusCode, respBody)
		return exitRuntimeFatal
	}

	fmt.Println(string(respBody))
	return exitOK
}

func dashboardHost(cfg *config.Config) string {
	addr := cfg.Server.Addr
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}

func analyze(ctx context.Context, cfg *config.Config, symbol string) int {
	limiter := ratelimit.New(ratelimit.DefaultLimits())
	coord := coordinator.New(limiter)
	coord.Register("botctl", coordinator.ClassAnalysis)

	client := exchange.NewBinanceClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret, coord, "botctl")

	rep, err := report.Analyze(ctx, client, symbol, 100)
	if err != nil {
		if ctx.Err() != nil {
			return exitInterrupted
		}
		fmt.Fprintf(os.Stderr, "botctl: analyze %s: %v\n", symbol, err)
		return exitRuntimeFatal
	}

	printReport(rep)
	return exitOK
}

func printReport(rep *report.Report) {
	fmt.Printf("symbol:        %s\n", rep.Symbol)
	fmt.Printf("candles used:  %d\n", rep.Candles)
	fmt.Println()
	fmt.Println("volume:")
	fmt.Printf("  current:     %.4f\n", rep.Volume.CurrentVolume)
	fmt.Printf("  average:     %.4f\n", rep.Volume.AverageVolume)
	fmt.Printf("  min/max:     %.4f / %.4f\n", rep.Volume.MinVolume, rep.Volume.MaxVolume)
	fmt.Printf("  spike ratio: %.2fx\n", rep.Volume.SpikeRatio)
	fmt.Println()
	fmt.Println("cross-check (go-talib, diagnostic only):")
	fmt.Printf("  RSI(14):          %.2f\n", rep.Cross.RSI)
	fmt.Printf("  Bollinger(20,2):  upper=%.4f mid=%.4f lower=%.4f\n", rep.Cross.BollingerUpper, rep.Cross.BollingerMid, rep.Cross.BollingerLower)
	fmt.Printf("  MACD(12,26,9):    macd=%.4f signal=%.4f hist=%.4f\n", rep.Cross.MACD, rep.Cross.MACDSignal, rep.Cross.MACDHist)
}
