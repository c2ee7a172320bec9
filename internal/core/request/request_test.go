package request

import "testing"

func TestProbeChainBubbles(t *testing.T) {
	var outerSaw EventType
	outer := ProbeFunc(func(e Event) bool {
		outerSaw = e.Type
		return true
	})
	inner := ProbeFunc(func(e Event) bool {
		return false // always unhandled, bubbles
	})
	chain := NewChain(inner, outer)
	if !chain.Throw(Event{Type: EventSourceEnd}) {
		t.Fatalf("expected outer probe to handle bubbled event")
	}
	if outerSaw != EventSourceEnd {
		t.Fatalf("expected outer to see SOURCE_END, got %v", outerSaw)
	}
}

func TestProbeChainStopsAtFirstHandler(t *testing.T) {
	calledOuter := false
	inner := ProbeFunc(func(e Event) bool { return true })
	outer := ProbeFunc(func(e Event) bool { calledOuter = true; return true })
	chain := NewChain(inner, outer)
	chain.Throw(Event{Type: EventReady})
	if calledOuter {
		t.Fatalf("outer should not be invoked once inner handles the event")
	}
}

func TestRequestProvideInvokesCallback(t *testing.T) {
	var got any
	r := New(KindClock, nil, func(answer any) error {
		got = answer
		return nil
	})
	chain := NewChain(ProbeFunc(func(e Event) bool {
		if e.Type == EventProvideRequest {
			return e.Request.Provide("clock-instance") == nil
		}
		return false
	}))
	if !r.Register(chain) {
		t.Fatalf("expected chain to claim the request")
	}
	if got != "clock-instance" {
		t.Fatalf("expected provide callback to receive answer, got %v", got)
	}
}

func TestProxyForwardsAnswerToOriginal(t *testing.T) {
	var forwarded any
	original := New(KindUbufMgr, nil, func(answer any) error {
		forwarded = answer
		return nil
	})
	proxy := NewProxy(original)
	if err := proxy.Upstream.Provide("ubuf-mgr-42"); err != nil {
		t.Fatalf("provide: %v", err)
	}
	if forwarded != "ubuf-mgr-42" {
		t.Fatalf("expected original to receive forwarded answer, got %v", forwarded)
	}
}

func TestProxyListUnregisterReregister(t *testing.T) {
	original := New(KindClock, nil, func(any) error { return nil })
	proxy := NewProxy(original)
	var list ProxyList
	list.Add(proxy)

	provided := false
	chain := NewChain(ProbeFunc(func(e Event) bool {
		if e.Type == EventProvideRequest {
			provided = true
			return true
		}
		return false
	}))
	list.ReregisterAll(chain)
	if !provided || !proxy.Upstream.Registered() {
		t.Fatalf("expected reregister to register upstream request")
	}
	list.UnregisterAll()
	if proxy.Upstream.Registered() {
		t.Fatalf("expected unregister to clear registered flag")
	}
}
