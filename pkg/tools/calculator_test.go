package tools

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/NERVsystems/ecotripmcp/pkg/core"
	"github.com/NERVsystems/ecotripmcp/pkg/distance"
	"github.com/NERVsystems/ecotripmcp/pkg/emissions"
	"github.com/NERVsystems/ecotripmcp/pkg/monitoring"
)

type stubLookup struct {
	km    float64
	err   error
	calls int
	from  string
	to    string
}

func (s *stubLookup) LookupDistanceKm(_ context.Context, from, to string) (float64, error) {
	s.calls++
	s.from, s.to = from, to
	return s.km, s.err
}

func newTestCalculator(t *testing.T, opts ...CalculatorOption) *Calculator {
	t.Helper()
	estimator, err := emissions.NewEstimator(emissions.DefaultCatalog(), emissions.DefaultOffsets())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}
	return NewCalculator(estimator, opts...)
}

func intPtr(n int) *int { return &n }

func floatPtr(f float64) *float64 { return &f }

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestCalculateReferenceTrip(t *testing.T) {
	calc := newTestCalculator(t)

	got, err := calc.Calculate(context.Background(), TripInput{From: " Paris ", To: "London", Mode: "plane"})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if got.DistanceKm != 500 || got.DistanceSource != distance.SourceFixed {
		t.Errorf("distance = %v (%s), want 500 (fixed)", got.DistanceKm, got.DistanceSource)
	}
	if got.From != "Paris" {
		t.Errorf("from should be trimmed, got %q", got.From)
	}
	if !approx(got.TotalCO2Kg, 127.5) || got.TotalCO2Display != "127.5" {
		t.Errorf("total = %v (%s), want 127.5", got.TotalCO2Kg, got.TotalCO2Display)
	}
	if got.TreesToOffset != 6 || got.OffsetCostEstimate != 64 {
		t.Errorf("offsets = %d trees, %d cost; want 6, 64", got.TreesToOffset, got.OffsetCostEstimate)
	}

	type row struct {
		ID             string
		Total, Savings float64
		Display        string
		SavingsDisplay string
		Direction      string
	}
	var rows []row
	for _, alt := range got.Alternatives {
		rows = append(rows, row{alt.Mode.ID, alt.TotalCO2Kg, alt.SavingsKg, alt.TotalCO2Display, alt.SavingsDisplay, alt.Direction})
	}
	want := []row{
		{"train", 20.5, 107.0, "20.5", "107.0", "reduction"},
		{"bus", 44.5, 83.0, "44.5", "83.0", "reduction"},
		{"car", 85.5, 42.0, "85.5", "42.0", "reduction"},
	}
	if diff := cmp.Diff(want, rows, cmpopts.EquateApprox(0, 1e-9)); diff != "" {
		t.Errorf("alternatives mismatch (-want +got):\n%s", diff)
	}

	if pct := got.Alternatives[0].PercentChange; pct < 83.9 || pct > 84.0 {
		t.Errorf("train percent change = %v, want about 83.9", pct)
	}
}

func TestCalculateReportsIncreases(t *testing.T) {
	calc := newTestCalculator(t)

	got, err := calc.Calculate(context.Background(), TripInput{Mode: "train", DistanceKm: floatPtr(500), Passengers: intPtr(2), RoundTrip: true})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if got.DistanceSource != SourceExplicit {
		t.Errorf("source = %s, want %s", got.DistanceSource, SourceExplicit)
	}
	// 500 * 0.041 * 2 passengers * 2 legs
	if !approx(got.TotalCO2Kg, 82) {
		t.Errorf("total = %v, want 82", got.TotalCO2Kg)
	}
	for _, alt := range got.Alternatives {
		if alt.Direction != "increase" || alt.SavingsKg >= 0 || alt.PercentChange >= 0 {
			t.Errorf("%s: expected an increase, got %+v", alt.Mode.ID, alt)
		}
		if alt.SavingsDisplay[0] == '-' {
			t.Errorf("%s: savings display should be unsigned, got %s", alt.Mode.ID, alt.SavingsDisplay)
		}
	}
}

func TestCalculateUsesLookup(t *testing.T) {
	lookup := &stubLookup{km: 343.5}
	calc := newTestCalculator(t, WithDistanceLookup(lookup, distance.SourceGreatCircle))

	got, err := calc.Calculate(context.Background(), TripInput{From: "Paris", To: " London", Mode: "car"})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if lookup.calls != 1 || lookup.to != "London" {
		t.Errorf("lookup called %d times with to=%q", lookup.calls, lookup.to)
	}
	if got.DistanceKm != 343.5 || got.DistanceSource != distance.SourceGreatCircle {
		t.Errorf("distance = %v (%s)", got.DistanceKm, got.DistanceSource)
	}

	// explicit distance wins
	if _, err := calc.Calculate(context.Background(), TripInput{From: "Paris", To: "London", Mode: "car", DistanceKm: floatPtr(10)}); err != nil {
		t.Fatal(err)
	}
	if lookup.calls != 1 {
		t.Errorf("explicit distance should skip the lookup, calls=%d", lookup.calls)
	}
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name   string
		lookup *stubLookup
		input  TripInput
		code   core.ErrorCode
	}{
		{"missing mode", nil, TripInput{From: "a", To: "b"}, core.ErrInvalidRequest},
		{"unknown mode", nil, TripInput{From: "a", To: "b", Mode: "rocket"}, core.ErrUnknownMode},
		{"zero passengers", nil, TripInput{From: "a", To: "b", Mode: "car", Passengers: intPtr(0)}, core.ErrInvalidRequest},
		{"too many passengers", nil, TripInput{From: "a", To: "b", Mode: "car", Passengers: intPtr(11)}, core.ErrInvalidRequest},
		{"zero distance", nil, TripInput{Mode: "car", DistanceKm: floatPtr(0)}, core.ErrInvalidRequest},
		{"negative distance", nil, TripInput{Mode: "car", DistanceKm: floatPtr(-5)}, core.ErrInvalidRequest},
		{"missing origin", nil, TripInput{To: "b", Mode: "car"}, core.ErrMissingParameter},
		{"missing destination", nil, TripInput{From: "a", To: "  ", Mode: "car"}, core.ErrMissingParameter},
		{"lookup failure", &stubLookup{err: errors.New("boom")}, TripInput{From: "a", To: "b", Mode: "car"}, core.ErrDistanceUnavailable},
		{"lookup MCP error", &stubLookup{err: core.NewError(core.ErrDistanceUnavailable, "no place").WithQuery("b")}, TripInput{From: "a", To: "b", Mode: "car"}, core.ErrDistanceUnavailable},
		{"same place", &stubLookup{km: 0}, TripInput{From: "Paris", To: "paris", Mode: "car"}, core.ErrInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []CalculatorOption
			if tt.lookup != nil {
				opts = append(opts, WithDistanceLookup(tt.lookup, distance.SourceGreatCircle))
			}
			calc := newTestCalculator(t, opts...)

			_, err := calc.Calculate(context.Background(), tt.input)
			var mcpErr *core.MCPError
			if !errors.As(err, &mcpErr) {
				t.Fatalf("expected *core.MCPError, got %T (%v)", err, err)
			}
			if mcpErr.Code != string(tt.code) {
				t.Errorf("code = %s, want %s (%s)", mcpErr.Code, tt.code, mcpErr.Message)
			}
		})
	}
}

func TestCalculateUnknownModeSuggestsCatalog(t *testing.T) {
	calc := newTestCalculator(t)

	_, err := calc.Calculate(context.Background(), TripInput{Mode: "rocket", DistanceKm: floatPtr(10)})
	var mcpErr *core.MCPError
	if !errors.As(err, &mcpErr) {
		t.Fatalf("expected *core.MCPError, got %v", err)
	}
	if diff := cmp.Diff([]string{"plane", "car", "train", "bus"}, mcpErr.Suggestions); diff != "" {
		t.Errorf("suggestions mismatch (-want +got):\n%s", diff)
	}
	if mcpErr.HTTPStatus() != 404 {
		t.Errorf("HTTP status = %d, want 404", mcpErr.HTTPStatus())
	}
}

func TestCalculateRecordsMetrics(t *testing.T) {
	monitoring.EstimatesTotal.Reset()
	monitoring.DistanceLookupsTotal.Reset()

	lookup := &stubLookup{km: 100}
	calc := newTestCalculator(t, WithDistanceLookup(lookup, distance.SourceRoad))

	if _, err := calc.Calculate(context.Background(), TripInput{From: "a", To: "b", Mode: "bus"}); err != nil {
		t.Fatal(err)
	}
	_, _ = calc.Calculate(context.Background(), TripInput{From: "a", To: "b", Mode: "hoverboard"})

	if got := testutil.ToFloat64(monitoring.EstimatesTotal.WithLabelValues("bus", "success")); got != 1 {
		t.Errorf("bus successes = %v, want 1", got)
	}
	if got := testutil.ToFloat64(monitoring.EstimatesTotal.WithLabelValues("unknown", "error")); got != 1 {
		t.Errorf("unknown-mode failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(monitoring.DistanceLookupsTotal.WithLabelValues(distance.SourceRoad, "success")); got != 1 {
		t.Errorf("road lookups = %v, want 1", got)
	}
}

func TestListModes(t *testing.T) {
	calc := newTestCalculator(t, WithMaxPassengers(4))

	got := calc.ListModes()
	var ids []string
	for _, m := range got.Modes {
		ids = append(ids, m.ID)
	}
	if diff := cmp.Diff([]string{"plane", "car", "train", "bus"}, ids); diff != "" {
		t.Errorf("catalog order mismatch (-want +got):\n%s", diff)
	}
	if !approx(got.Modes[0].CO2Per100KmKg, 25.5) {
		t.Errorf("plane per 100 km = %v, want 25.5", got.Modes[0].CO2Per100KmKg)
	}
	if got.Offsets != emissions.DefaultOffsets() || got.MaxPassengers != 4 {
		t.Errorf("unexpected offsets/max passengers: %+v", got)
	}
}
