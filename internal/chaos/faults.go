package chaos

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Fault is the failure mode an Injector applies to every request.
type Fault int

const (
	FaultNone Fault = iota
	FaultLatency
	FaultError
	FaultPartition
)

// ParseFault is the inverse of Fault.String.
func ParseFault(s string) (Fault, error) {
	for _, f := range []Fault{FaultNone, FaultLatency, FaultError, FaultPartition} {
		if f.String() == s {
			return f, nil
		}
	}
	return FaultNone, fmt.Errorf("unknown fault %q", s)
}

func (f Fault) String() string {
	switch f {
	case FaultLatency:
		return "latency"
	case FaultError:
		return "failure"
	case FaultPartition:
		return "partition"
	default:
		return "none"
	}
}

// Injector is HTTP middleware that degrades the wrapped handler on demand.
type Injector struct {
	mu      sync.RWMutex
	fault   Fault
	latency time.Duration
	status  int
}

func NewInjector() *Injector {
	return &Injector{}
}

// InjectLatency delays every request by d before serving it.
func (i *Injector) InjectLatency(d time.Duration) {
	i.set(FaultLatency, d, 0)
}

// InjectError answers every request with status without serving it.
func (i *Injector) InjectError(status int) {
	i.set(FaultError, 0, status)
}

// Partition drops every connection without a response.
func (i *Injector) Partition() {
	i.set(FaultPartition, 0, 0)
}

func (i *Injector) Clear() {
	i.set(FaultNone, 0, 0)
}

// Apply sets fault f in process. It implements Target.
func (i *Injector) Apply(_ context.Context, f Fault, latency time.Duration, status int) error {
	switch f {
	case FaultLatency:
		i.InjectLatency(latency)
	case FaultError:
		i.InjectError(status)
	case FaultPartition:
		i.Partition()
	default:
		i.Clear()
	}
	return nil
}

func (i *Injector) Fault() Fault {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.fault
}

func (i *Injector) set(f Fault, latency time.Duration, status int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.fault, i.latency, i.status = f, latency, status
}

func (i *Injector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		i.mu.RLock()
		fault, latency, status := i.fault, i.latency, i.status
		i.mu.RUnlock()

		switch fault {
		case FaultLatency:
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		case FaultError:
			w.WriteHeader(status)
			return
		case FaultPartition:
			if hj, ok := w.(http.Hijacker); ok {
				if conn, _, err := hj.Hijack(); err == nil {
					conn.Close()
					return
				}
			}
			// Without hijacking, abort the handler so the server resets the stream.
			panic(http.ErrAbortHandler)
		}
		next.ServeHTTP(w, r)
	})
}
