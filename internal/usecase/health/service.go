package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates partial failure.
	Degraded Status = "degraded"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// Report aggregates component checks with the current index size.
type Report struct {
	Status          Status
	ModelLoaded     bool
	CollectionCount int
	Checks          map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	store   StorePinger
	encoder EncoderChecker
	counter ListingCounter
}

// New creates a Service. encoder can be nil.
func New(store StorePinger, encoder EncoderChecker, counter ListingCounter) *Service {
	return &Service{store: store, encoder: encoder, counter: counter}
}

// Check runs health checks against all components. The listing count is
// best effort: a failing count degrades the report but never errors.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = CheckError
	} else {
		checks["store"] = CheckOK
	}

	modelLoaded := false
	if s.encoder != nil {
		if err := s.encoder.HealthCheck(ctx); err != nil {
			checks["encoder"] = CheckError
		} else {
			checks["encoder"] = CheckOK
			modelLoaded = true
		}
	}

	count := 0
	if n, err := s.counter.Count(ctx); err != nil {
		checks["index"] = CheckError
	} else {
		checks["index"] = CheckOK
		count = n
	}

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}

	return Report{
		Status:          status,
		ModelLoaded:     modelLoaded,
		CollectionCount: count,
		Checks:          checks,
	}
}
