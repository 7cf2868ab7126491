package chaos

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	jsoniter "github.com/json-iterator/go"

	"librarysync/internal/httpx"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ControlPath is where a chaos-enabled service mounts ControlHandler. It sits
// under /internal so the gateway never exposes it.
const ControlPath = "/internal/chaos"

// Target is anything an experiment can degrade: an Injector in process, or a
// RemoteTarget driving one over HTTP.
type Target interface {
	Apply(ctx context.Context, f Fault, latency time.Duration, status int) error
}

// FaultState is the wire form of an Injector's current fault.
type FaultState struct {
	Fault   string `json:"fault" validate:"required,oneof=none latency failure partition"`
	Latency string `json:"latency,omitempty"`
	Status  int    `json:"status,omitempty"`
}

func (i *Injector) state() FaultState {
	i.mu.RLock()
	defer i.mu.RUnlock()
	s := FaultState{Fault: i.fault.String()}
	switch i.fault {
	case FaultLatency:
		s.Latency = i.latency.String()
	case FaultError:
		s.Status = i.status
	}
	return s
}

// ControlHandler lets a chaos runner set and clear the injector's fault:
// GET reports it, PUT replaces it, DELETE clears it.
func ControlHandler(inj *Injector, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, inj.state())
	})
	r.Put("/", func(w http.ResponseWriter, r *http.Request) {
		var req FaultState
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		f, latency, status, err := req.parse()
		if err != nil {
			httpx.WriteDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		_ = inj.Apply(r.Context(), f, latency, status)
		logger.WarnContext(r.Context(), "fault injected", "fault", f.String(), "latency", latency, "status", status)
		httpx.WriteJSON(w, http.StatusOK, inj.state())
	})
	r.Delete("/", func(w http.ResponseWriter, r *http.Request) {
		inj.Clear()
		logger.InfoContext(r.Context(), "fault cleared")
		httpx.WriteJSON(w, http.StatusOK, inj.state())
	})
	return r
}

func (s FaultState) parse() (Fault, time.Duration, int, error) {
	f, err := ParseFault(s.Fault)
	if err != nil {
		return FaultNone, 0, 0, err
	}
	switch f {
	case FaultLatency:
		d, err := time.ParseDuration(s.Latency)
		if err != nil || d <= 0 {
			return FaultNone, 0, 0, fmt.Errorf("latency must be a positive duration, got %q", s.Latency)
		}
		return f, d, 0, nil
	case FaultError:
		status := s.Status
		if status == 0 {
			status = http.StatusServiceUnavailable
		}
		if status < 400 || status > 599 {
			return FaultNone, 0, 0, fmt.Errorf("status must be an error code, got %d", status)
		}
		return f, 0, status, nil
	}
	return f, 0, 0, nil
}

// RemoteTarget drives the ControlHandler of a running service.
type RemoteTarget struct {
	url        string
	httpClient *http.Client
}

// NewRemoteTarget points at the service's base URL. A nil client gets a
// five second timeout.
func NewRemoteTarget(baseURL string, hc *http.Client) *RemoteTarget {
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &RemoteTarget{url: baseURL + ControlPath + "/", httpClient: hc}
}

func (t *RemoteTarget) Apply(ctx context.Context, f Fault, latency time.Duration, status int) error {
	if f == FaultNone {
		return t.do(ctx, http.MethodDelete, nil)
	}
	state := FaultState{Fault: f.String(), Status: status}
	if f == FaultLatency {
		state.Latency = latency.String()
	}
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal fault: %w", err)
	}
	return t.do(ctx, http.MethodPut, body)
}

func (t *RemoteTarget) do(ctx context.Context, method string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chaos control %s: %w", method, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chaos control %s: unexpected status code: %d", method, resp.StatusCode)
	}
	return nil
}
