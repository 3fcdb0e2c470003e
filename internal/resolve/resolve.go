// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package resolve implements the reverse-DNS resolver: a bounded worker
// pool answering "visited host" lookups for internal/stats, with an LRU
// cache and a hard per-lookup timeout. It is a pure
// request/response service with no reference back to its callers, which is
// what breaks the resolver/subscriber cyclic dependency.
package resolve

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/miekg/dns"

	"github.com/oryxhq/oryx/internal/logging"
)

// DefaultCacheSize is the LRU entry cap.
const DefaultCacheSize = 1024

// DefaultTimeout bounds a single in-flight lookup.
const DefaultTimeout = 2 * time.Second

// DefaultWorkers is the bounded pool size.
const DefaultWorkers = 4

// Resolver answers reverse-DNS lookups without blocking its callers: a miss
// enqueues a request and returns immediately with ok=false; the caller
// checks back (or re-calls Lookup) once the background worker has posted
// the result into the cache.
type Resolver struct {
	client  *dns.Client
	server  string
	logger  *logging.Logger
	timeout time.Duration

	// TimeoutHook, if set before Start, is called once per lookup that
	// times out (the diagnostics DnsTimeout counter).
	TimeoutHook func()

	mutex   sync.Mutex
	cache   *lru.Cache
	pending map[string]struct{}

	jobs   chan string
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Resolver using server (host:port, e.g. from /etc/resolv.conf)
// as the upstream nameserver. Pass "" for server to use New's default of
// 127.0.0.53:53 (systemd-resolved's stub, the common case on Linux hosts).
func New(server string, logger *logging.Logger) *Resolver {
	if server == "" {
		server = "127.0.0.53:53"
	}
	r := &Resolver{
		client:  &dns.Client{Timeout: DefaultTimeout},
		server:  server,
		logger:  logger,
		timeout: DefaultTimeout,
		cache:   lru.New(DefaultCacheSize),
		pending: make(map[string]struct{}),
		jobs:    make(chan string, DefaultWorkers*4),
	}
	return r
}

// Start launches the bounded worker pool. Excess requests beyond the job
// queue's capacity are dropped, never queued unbounded.
func (r *Resolver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for i := 0; i < DefaultWorkers; i++ {
		r.wg.Add(1)
		go r.worker(ctx)
	}
}

// Stop cancels all workers and waits for them to exit.
func (r *Resolver) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Resolver) worker(ctx context.Context) {
	defer r.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ip := <-r.jobs:
			r.resolve(ctx, ip)
		}
	}
}

// Lookup returns a cached hostname for ip if one is known. On a cache miss
// it enqueues a background lookup (dropped silently if the queue is full)
// and returns ok=false — callers display the literal address until a
// subsequent call finds the cached result.
func (r *Resolver) Lookup(ip string) (name string, ok bool) {
	r.mutex.Lock()
	if v, found := r.cache.Get(ip); found {
		r.mutex.Unlock()
		return v.(string), true
	}
	_, inFlight := r.pending[ip]
	if !inFlight {
		r.pending[ip] = struct{}{}
	}
	r.mutex.Unlock()

	if !inFlight {
		select {
		case r.jobs <- ip:
		default:
			// Queue full: drop rather than block.
			r.mutex.Lock()
			delete(r.pending, ip)
			r.mutex.Unlock()
		}
	}
	return "", false
}

func (r *Resolver) resolve(ctx context.Context, ip string) {
	defer func() {
		r.mutex.Lock()
		delete(r.pending, ip)
		r.mutex.Unlock()
	}()

	lookupCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	name, err := r.ptrQuery(lookupCtx, ip)
	if err != nil {
		if isTimeout(err) && r.TimeoutHook != nil {
			r.TimeoutHook()
		}
		r.logger.Debug("reverse dns lookup failed", "ip", ip, "error", err)
		return
	}

	r.mutex.Lock()
	r.cache.Add(ip, name)
	r.mutex.Unlock()
}

func (r *Resolver) ptrQuery(ctx context.Context, ip string) (string, error) {
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return "", err
	}

	msg := new(dns.Msg)
	msg.SetQuestion(arpa, dns.TypePTR)
	msg.RecursionDesired = true

	reply, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return "", err
	}
	for _, rr := range reply.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			return strings.TrimSuffix(ptr.Ptr, "."), nil
		}
	}
	return "", errNoPTRRecord
}

var errNoPTRRecord = &net.DNSError{Err: "no PTR record", IsNotFound: true}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
