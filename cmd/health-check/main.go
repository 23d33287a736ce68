// Package main provides a standalone health probe for Docker
// HEALTHCHECK directives and monitoring scripts. It queries a running
// server's health endpoint and maps the aggregated status onto an
// exit code.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"
)

const (
	exitSuccess = 0
	exitFailure = 1
	exitError   = 2
)

type options struct {
	url        string
	timeout    time.Duration
	verbose    bool
	format     string
	expect     string
	retryCount int
	retryDelay time.Duration
}

// healthReport mirrors the health endpoint payload. Durations arrive
// in milliseconds, so they stay plain numbers here.
type healthReport struct {
	Status    string        `json:"status"`
	Version   string        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
	Checks    []checkReport `json:"checks"`
}

type checkReport struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

func main() {
	os.Exit(run(parseFlags()))
}

func parseFlags() options {
	var opts options

	flag.StringVar(&opts.url, "url", "", "Health endpoint URL (default: autodetect)")
	flag.DurationVar(&opts.timeout, "timeout", 10*time.Second, "Request timeout")
	flag.BoolVar(&opts.verbose, "verbose", false, "Print per-component checks")
	flag.StringVar(&opts.format, "format", "text", "Output format: text, json")
	flag.StringVar(&opts.expect, "expect", "healthy", "Status that exits 0: healthy, degraded")
	flag.IntVar(&opts.retryCount, "retry", 0, "Retries on request failure")
	flag.DurationVar(&opts.retryDelay, "retry-delay", time.Second, "Delay between retries")

	flag.Parse()

	if opts.url == "" {
		opts.url = detectURL()
	}
	return opts
}

// detectURL tries the environment, then the default web and API ports.
func detectURL() string {
	if url := os.Getenv("MEALSMITH_HEALTH_URL"); url != "" {
		return url
	}

	candidates := []string{
		"http://localhost:8080/health",
		"http://localhost:3000/health",
	}

	client := &http.Client{Timeout: time.Second}
	for _, url := range candidates {
		resp, err := client.Get(url)
		if err != nil {
			continue
		}
		resp.Body.Close()
		return url
	}
	return candidates[0]
}

func run(opts options) int {
	client := &http.Client{Timeout: opts.timeout}

	var lastErr error
	for attempt := 0; attempt <= opts.retryCount; attempt++ {
		if attempt > 0 {
			if opts.verbose {
				fmt.Printf("Retrying in %v (attempt %d/%d)\n", opts.retryDelay, attempt, opts.retryCount)
			}
			time.Sleep(opts.retryDelay)
		}

		resp, err := client.Get(opts.url)
		if err != nil {
			lastErr = err
			continue
		}

		var report healthReport
		err = json.NewDecoder(resp.Body).Decode(&report)
		resp.Body.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to decode health response: %v\n", err)
			return exitError
		}

		output(report, opts)
		return exitCode(report.Status, opts.expect)
	}

	fmt.Fprintf(os.Stderr, "Health check failed after %d attempts: %v\n", opts.retryCount+1, lastErr)
	return exitError
}

func output(report healthReport, opts options) {
	if opts.format == "json" {
		data, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("Status: %s\n", report.Status)
	fmt.Printf("Version: %s\n", report.Version)

	if opts.verbose {
		for _, check := range report.Checks {
			fmt.Printf("  %s: %s", check.Name, check.Status)
			if check.Message != "" {
				fmt.Printf(" (%s)", check.Message)
			}
			fmt.Println()
		}
	}
}

func exitCode(status, expect string) int {
	switch status {
	case expect:
		return exitSuccess
	case "degraded":
		// Degraded passes only when explicitly expected.
		return exitFailure
	case "healthy":
		return exitSuccess
	default:
		return exitFailure
	}
}
