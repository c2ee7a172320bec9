package httpsrc

import "testing"

func TestCookieStoreReplaceInPlace(t *testing.T) {
	s := NewCookieStore()
	s.Set("example.com", "/", "a=1")
	s.Set("example.com", "/", "b=2")
	s.Set("example.com", "/", "a=3")

	got := s.Match("example.com", "/")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Name != "a" || got[0].Value != "3" {
		t.Fatalf("first cookie = %+v, want a=3 (replaced in place)", got[0])
	}
	if got[1].Name != "b" || got[1].Value != "2" {
		t.Fatalf("second cookie = %+v, want b=2", got[1])
	}
}

func TestCookieStorePerScope(t *testing.T) {
	s := NewCookieStore()
	s.Set("example.com", "/a", "x=1")
	s.Set("example.com", "/b", "x=2")

	a := s.Match("example.com", "/a")
	b := s.Match("example.com", "/b")
	if len(a) != 1 || a[0].Value != "1" {
		t.Fatalf("/a scope = %+v", a)
	}
	if len(b) != 1 || b[0].Value != "2" {
		t.Fatalf("/b scope = %+v", b)
	}
	if len(s.Match("other.com", "/a")) != 0 {
		t.Fatalf("expected no cookies for a different domain")
	}
}

func TestCookieStoreIgnoresAttributes(t *testing.T) {
	s := NewCookieStore()
	s.Set("example.com", "/", "session=abc; Path=/; HttpOnly; Secure")
	got := s.Match("example.com", "/")
	if len(got) != 1 || got[0].Name != "session" || got[0].Value != "abc" {
		t.Fatalf("got = %+v", got)
	}
}

func TestCookieStoreMalformedIgnored(t *testing.T) {
	s := NewCookieStore()
	s.Set("example.com", "/", "not-a-cookie")
	if len(s.Match("example.com", "/")) != 0 {
		t.Fatalf("expected malformed Set-Cookie value to be dropped")
	}
}
