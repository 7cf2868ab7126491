package chaos

import (
	"context"
	"net/http"
	"time"
)

// SyncExperiments degrades the lending service behind target in three ways.
// The probe is expected to exercise catalogue mutations on the authority,
// which must keep succeeding whatever happens to the sync push.
func SyncExperiments(target Target, latency time.Duration, probe func(context.Context) error) []Experiment {
	inject := func(f Fault, d time.Duration, status int) func(context.Context) error {
		return func(ctx context.Context) error {
			return target.Apply(ctx, f, d, status)
		}
	}
	rollback := []Action{{
		Type:    "clear",
		Target:  "lending",
		Execute: inject(FaultNone, 0, 0),
	}}

	return []Experiment{
		{
			Name:       "lending-latency",
			Hypothesis: "Catalogue mutations succeed and stay bounded when the replica is slower than the sync timeout",
			Probe:      probe,
			Method: []Action{{
				Type:    "latency",
				Target:  "lending",
				Execute: inject(FaultLatency, latency, 0),
			}},
			Rollback: rollback,
		},
		{
			Name:       "lending-failure",
			Hypothesis: "Catalogue mutations succeed when the replica answers with server errors",
			Probe:      probe,
			Method: []Action{{
				Type:    "failure",
				Target:  "lending",
				Execute: inject(FaultError, 0, http.StatusServiceUnavailable),
			}},
			Rollback: rollback,
		},
		{
			Name:       "lending-partition",
			Hypothesis: "Catalogue mutations succeed when the replica drops connections",
			Probe:      probe,
			Method: []Action{{
				Type:    "partition",
				Target:  "lending",
				Execute: inject(FaultPartition, 0, 0),
			}},
			Rollback: rollback,
		},
	}
}
