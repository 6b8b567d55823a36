// Container healthcheck probe.
package main

import (
	"fmt"
	"net/http"
	"os"
)

func main() {
	port := os.Getenv("CONTRACTMOCK_PORT")
	if port == "" {
		port = "8080"
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%s/__admin/health", port))
	if err != nil || resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
