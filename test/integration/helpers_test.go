// Package integration exercises a running tagexpr server over REST, gRPC
// and the web UI. Start one with `tagexpr serve` and point the tests at it
// with TAGEXPR_URL and TAGEXPR_GRPC_ENDPOINT. Tests skip when no server
// answers.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

// testServer holds the base URL of a running tagexpr instance.
var testServer string

var client = &http.Client{Timeout: 10 * time.Second}

func init() {
	testServer = os.Getenv("TAGEXPR_URL")
	if testServer == "" {
		testServer = "http://localhost:8787"
	}
	// Ensure the URL has a scheme.
	if !strings.HasPrefix(testServer, "http://") && !strings.HasPrefix(testServer, "https://") {
		testServer = "http://" + testServer
	}
}

// requireServer skips the test when nothing answers at testServer.
func requireServer(t *testing.T) {
	t.Helper()
	resp, err := client.Get(apiURL("selectors"))
	if err != nil {
		t.Skipf("tagexpr server not reachable at %s: %v", testServer, err)
	}
	resp.Body.Close()
}

// apiURL builds a full URL for the given API path.
func apiURL(path string) string {
	return strings.TrimRight(testServer, "/") + "/v1/" + path
}

// uniqueName returns a selector name that will not collide across runs.
func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// doJSON sends body as JSON and decodes the JSON response.
func doJSON(t *testing.T, method, url string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(resp.Body)
	var out map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			t.Fatalf("decode response %q: %v", raw, err)
		}
	}
	return resp.StatusCode, out
}

// createSelector stores a selector and deletes it when the test ends.
func createSelector(t *testing.T, name, expression string) map[string]any {
	t.Helper()
	code, body := doJSON(t, "POST", apiURL("selectors")+"?selectorId="+name, map[string]any{
		"expression": expression,
	})
	if code != http.StatusOK {
		t.Fatalf("create selector %s failed with status %d: %v", name, code, body)
	}
	t.Cleanup(func() {
		doJSON(t, "DELETE", apiURL("selectors/"+name), nil)
	})
	return body
}
