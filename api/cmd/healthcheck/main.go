package main

import (
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := os.Getenv("SERVER_BIND_ADDRESS")
	if addr == "" {
		addr = "0.0.0.0:8080"
	}

	// A wildcard bind is probed over loopback.
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		os.Exit(1)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}

	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get("http://" + net.JoinHostPort(host, port) + "/health")
	if err != nil {
		os.Exit(1) // Docker marks as UNHEALTHY
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
	os.Exit(0) // Docker marks as HEALTHY
}
