package request

import "fmt"

// Kind enumerates the capability kinds a Request can ask for (spec §3/§4.F).
type Kind int

const (
	KindUrefMgr Kind = iota
	KindUbufMgr
	KindClock
	KindFlowFormat
	KindUpumpMgr
)

func (k Kind) String() string {
	switch k {
	case KindUrefMgr:
		return "uref_mgr"
	case KindUbufMgr:
		return "ubuf_mgr"
	case KindClock:
		return "clock"
	case KindFlowFormat:
		return "flow_format"
	case KindUpumpMgr:
		return "upump_mgr"
	default:
		return "unknown"
	}
}

// Request is an asynchronous ask for a capability (spec §3). It travels up
// the parent chain via Register; a capable ancestor answers by calling
// Provide. Stateful: once registered it may be re-provided when upstream
// changes (e.g. the output pipe changes, as in the output helper of §4.D).
type Request struct {
	Kind       Kind
	Args       any // kind-specific parameters, e.g. a flow-def for KindFlowFormat
	registered bool
	answered   bool
	answer     any
	onProvide  func(answer any) error
}

// New creates a request of the given kind with an answer callback.
func New(kind Kind, args any, onProvide func(answer any) error) *Request {
	return &Request{Kind: kind, Args: args, onProvide: onProvide}
}

// Register marks the request as in flight up chain, and asks chain to
// service it by throwing a PROVIDE_REQUEST event. Returns whether a probe
// up the chain claimed it (synchronously or will asynchronously via
// Provide later).
func (r *Request) Register(chain *Chain) bool {
	r.registered = true
	return chain.Throw(Event{Type: EventProvideRequest, Request: r})
}

// Unregister marks the request as no longer in flight, e.g. when the
// owning pipe's output changes and requests must be re-registered on the
// new output (spec §4.D output helper).
func (r *Request) Unregister() {
	r.registered = false
}

// Registered reports whether Register has been called without a matching
// Unregister.
func (r *Request) Registered() bool { return r.registered }

// Provide answers the request. Safe to call multiple times (re-provided
// when upstream changes); each call re-invokes onProvide with the new
// answer.
func (r *Request) Provide(answer any) error {
	r.answered = true
	r.answer = answer
	if r.onProvide != nil {
		return r.onProvide(answer)
	}
	return nil
}

// Answer returns the last provided answer, if any.
func (r *Request) Answer() (any, bool) {
	return r.answer, r.answered
}

func (r *Request) String() string {
	return fmt.Sprintf("request(%s registered=%v answered=%v)", r.Kind, r.registered, r.answered)
}

// Proxy is the request-proxy helper of spec §4.D: when a downstream pipe
// registers a request on a transform, the transform allocates a Proxy,
// installs itself as the provider, and registers the Proxy upstream; when
// upstream provides the Proxy, the transform forwards the answer to the
// original.
type Proxy struct {
	Original *Request
	Upstream *Request
}

// NewProxy builds a proxy for original that, once answered by the upstream
// chain, forwards the answer through to original.Provide.
func NewProxy(original *Request) *Proxy {
	p := &Proxy{Original: original}
	p.Upstream = New(original.Kind, original.Args, func(answer any) error {
		return original.Provide(answer)
	})
	return p
}

// ProxyList tracks proxies owned by a single pipe so they can all be
// unregistered (e.g. on an output change) and cleaned up on free (spec
// §4.D: "Proxies are tracked in a per-pipe list and cleaned on free").
type ProxyList struct {
	proxies []*Proxy
}

func (l *ProxyList) Add(p *Proxy) {
	l.proxies = append(l.proxies, p)
}

func (l *ProxyList) Remove(p *Proxy) {
	for i, pp := range l.proxies {
		if pp == p {
			l.proxies = append(l.proxies[:i], l.proxies[i+1:]...)
			return
		}
	}
}

// UnregisterAll unregisters every tracked proxy's upstream request, used
// when the owning pipe's output changes (spec §4.D: "On output change, all
// prior requests are unregistered from the old output and re-registered on
// the new").
func (l *ProxyList) UnregisterAll() {
	for _, p := range l.proxies {
		p.Upstream.Unregister()
	}
}

// ReregisterAll re-registers every tracked proxy's upstream request against
// the new output's chain.
func (l *ProxyList) ReregisterAll(chain *Chain) {
	for _, p := range l.proxies {
		p.Upstream.Register(chain)
	}
}

// All returns the tracked proxies, for iteration during pipe teardown.
func (l *ProxyList) All() []*Proxy {
	return l.proxies
}
