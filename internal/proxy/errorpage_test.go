package proxy

import (
	"bufio"
	"net"
	"strings"
	"testing"
)

func TestWriteClientErrorFormatsHeaderAndBody(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- writeClientError(server, "GET", "501", "Not Implemented", "proxy does not support this method")
	}()

	reader := bufio.NewReader(client)
	statusLine, err := reader.ReadString('\n')
	if err != nil {
		t.Fatalf("reading status line: %v", err)
	}
	if strings.TrimRight(statusLine, "\r\n") != "HTTP/1.0 501 Not Implemented" {
		t.Fatalf("unexpected status line: %q", statusLine)
	}

	var contentLength string
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			t.Fatalf("reading headers: %v", err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if strings.HasPrefix(trimmed, "Content-length:") {
			contentLength = trimmed
		}
	}
	if contentLength == "" {
		t.Fatal("expected a Content-length header")
	}

	body := make([]byte, 4096)
	n, _ := reader.Read(body)
	if !strings.Contains(string(body[:n]), "GET") {
		t.Fatalf("expected body to mention the offending method, got %q", body[:n])
	}

	if err := <-errCh; err != nil {
		t.Fatalf("writeClientError returned error: %v", err)
	}
}
