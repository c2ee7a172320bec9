package httpsrc

import (
	"strings"
	"testing"
)

func feedAll(t *testing.T, p *Parser, chunks ...string) {
	t.Helper()
	for _, c := range chunks {
		if err := p.Feed([]byte(c)); err != nil {
			t.Fatalf("Feed(%q): %v", c, err)
		}
	}
}

func TestParserContentLengthBody(t *testing.T) {
	var status int
	var headers []string
	var body strings.Builder
	complete := false

	p := NewParser(Handler{
		OnStatus: func(code int, reason string) { status = code },
		OnHeader: func(k, v string) { headers = append(headers, k+":"+v) },
		OnBody:   func(b []byte) { body.Write(b) },
		OnComplete: func() { complete = true },
	})

	feedAll(t, p,
		"HTTP/1.1 200 OK\r\n",
		"Content-Length: 5\r\n",
		"Content-Type: text/plain\r\n",
		"\r\n",
		"hel",
		"lo",
	)

	if status != 200 {
		t.Fatalf("status = %d, want 200", status)
	}
	if body.String() != "hello" {
		t.Fatalf("body = %q, want %q", body.String(), "hello")
	}
	if !complete {
		t.Fatalf("expected OnComplete to fire")
	}
	if p.ContentType != "text/plain" {
		t.Fatalf("ContentType = %q", p.ContentType)
	}
}

func TestParserChunkedBody(t *testing.T) {
	var body strings.Builder
	complete := false
	p := NewParser(Handler{
		OnBody:     func(b []byte) { body.Write(b) },
		OnComplete: func() { complete = true },
	})

	feedAll(t, p,
		"HTTP/1.1 200 OK\r\n",
		"Transfer-Encoding: chunked\r\n",
		"\r\n",
		"4\r\nWiki\r\n",
		"5\r\npedia\r\n",
		"0\r\n\r\n",
	)

	if body.String() != "Wikipedia" {
		t.Fatalf("body = %q, want %q", body.String(), "Wikipedia")
	}
	if !complete {
		t.Fatalf("expected OnComplete to fire")
	}
}

func TestParserBodyUntilClose(t *testing.T) {
	var body strings.Builder
	complete := false
	p := NewParser(Handler{
		OnBody:     func(b []byte) { body.Write(b) },
		OnComplete: func() { complete = true },
	})

	feedAll(t, p,
		"HTTP/1.1 200 OK\r\n",
		"\r\n",
		"some bytes with no length",
	)
	if complete {
		t.Fatalf("should not be complete before Close")
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !complete {
		t.Fatalf("expected OnComplete to fire on Close")
	}
	if body.String() != "some bytes with no length" {
		t.Fatalf("body = %q", body.String())
	}
}

func TestParserNoBodyStatuses(t *testing.T) {
	complete := false
	bodyCalled := false
	p := NewParser(Handler{
		OnBody:     func(b []byte) { bodyCalled = true },
		OnComplete: func() { complete = true },
	})
	feedAll(t, p, "HTTP/1.1 204 No Content\r\n", "\r\n")
	if !complete {
		t.Fatalf("expected OnComplete for 204")
	}
	if bodyCalled {
		t.Fatalf("204 must not have a body")
	}
}

func TestParserRedirectLocation(t *testing.T) {
	p := NewParser(Handler{})
	feedAll(t, p,
		"HTTP/1.1 302 Found\r\n",
		"Location: https://example.com/new\r\n",
		"Content-Length: 0\r\n",
		"\r\n",
	)
	if p.Location != "https://example.com/new" {
		t.Fatalf("Location = %q", p.Location)
	}
	if p.StatusCode != 302 {
		t.Fatalf("StatusCode = %d", p.StatusCode)
	}
}

func TestParserSetCookieCollected(t *testing.T) {
	p := NewParser(Handler{})
	feedAll(t, p,
		"HTTP/1.1 200 OK\r\n",
		"Set-Cookie: a=1\r\n",
		"Set-Cookie: b=2\r\n",
		"Content-Length: 0\r\n",
		"\r\n",
	)
	if len(p.SetCookies) != 2 || p.SetCookies[0] != "a=1" || p.SetCookies[1] != "b=2" {
		t.Fatalf("SetCookies = %v", p.SetCookies)
	}
}
