package health

import "context"

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded indicates the pipeline runs on the local fallback.
	Degraded Status = "degraded"
	// Unhealthy indicates the graph store is unreachable.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
	// CheckOpen indicates an open circuit breaker.
	CheckOpen CheckResult = "open"
)

// Report aggregates health check results.
type Report struct {
	Status Status
	Checks map[string]CheckResult
}

// Service coordinates health checks.
type Service struct {
	db         DBPinger
	classifier ClassifierChecker
	breaker    BreakerReporter
}

// New creates a Service. classifier and breaker can be nil.
func New(db DBPinger, classifier ClassifierChecker, breaker BreakerReporter) *Service {
	return &Service{db: db, classifier: classifier, breaker: breaker}
}

// Check runs health checks against all components.
// Classifier problems only degrade the service: phrases still reach the
// graph through the local fallback.
func (s *Service) Check(ctx context.Context) Report {
	checks := make(map[string]CheckResult)
	status := Healthy

	if s.classifier != nil {
		if err := s.classifier.HealthCheck(ctx); err != nil {
			checks["classifier"] = CheckError
			status = Degraded
		} else {
			checks["classifier"] = CheckOK
		}
	}

	if s.breaker != nil {
		if s.breaker.Open() {
			checks["classifier_breaker"] = CheckOpen
			status = Degraded
		} else {
			checks["classifier_breaker"] = CheckOK
		}
	}

	if err := s.db.Ping(ctx); err != nil {
		checks["database"] = CheckError
		status = Unhealthy
	} else {
		checks["database"] = CheckOK
	}

	return Report{Status: status, Checks: checks}
}
