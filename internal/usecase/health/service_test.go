package health

import (
	"context"
	"errors"
	"testing"
)

// --- Mocks ---

type mockDBPinger struct {
	err error
}

func (m *mockDBPinger) Ping(_ context.Context) error { return m.err }

type mockClassifierChecker struct {
	err error
}

func (m *mockClassifierChecker) HealthCheck(_ context.Context) error { return m.err }

type mockBreaker struct {
	open bool
}

func (m *mockBreaker) Open() bool { return m.open }

// --- Tests ---

func TestCheck(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		classifier ClassifierChecker
		breaker    BreakerReporter
		wantStatus Status
		wantChecks map[string]CheckResult
	}{
		{
			name:       "all healthy",
			classifier: &mockClassifierChecker{},
			breaker:    &mockBreaker{},
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"database": CheckOK, "classifier": CheckOK, "classifier_breaker": CheckOK},
		},
		{
			name:       "db error",
			dbErr:      errors.New("conn refused"),
			classifier: &mockClassifierChecker{},
			wantStatus: Unhealthy,
			wantChecks: map[string]CheckResult{"database": CheckError, "classifier": CheckOK},
		},
		{
			name:       "classifier error",
			classifier: &mockClassifierChecker{err: errors.New("timeout")},
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"database": CheckOK, "classifier": CheckError},
		},
		{
			name:       "breaker open",
			classifier: &mockClassifierChecker{},
			breaker:    &mockBreaker{open: true},
			wantStatus: Degraded,
			wantChecks: map[string]CheckResult{"database": CheckOK, "classifier": CheckOK, "classifier_breaker": CheckOpen},
		},
		{
			name:       "db and classifier fail",
			dbErr:      errors.New("db down"),
			classifier: &mockClassifierChecker{err: errors.New("provider down")},
			wantStatus: Unhealthy,
			wantChecks: map[string]CheckResult{"database": CheckError, "classifier": CheckError},
		},
		{
			name:       "no classifier",
			wantStatus: Healthy,
			wantChecks: map[string]CheckResult{"database": CheckOK},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := New(&mockDBPinger{err: tc.dbErr}, tc.classifier, tc.breaker)
			r := svc.Check(context.Background())

			if r.Status != tc.wantStatus {
				t.Errorf("expected %q, got %q", tc.wantStatus, r.Status)
			}
			if len(r.Checks) != len(tc.wantChecks) {
				t.Errorf("expected checks %v, got %v", tc.wantChecks, r.Checks)
			}
			for k, want := range tc.wantChecks {
				if r.Checks[k] != want {
					t.Errorf("check %s: expected %q, got %q", k, want, r.Checks[k])
				}
			}
		})
	}
}
