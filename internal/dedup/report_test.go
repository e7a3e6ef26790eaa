package dedup

import (
	"context"
	"testing"

	"assisted-venue-dedup/internal/models"
)

func TestCityReportHealthy(t *testing.T) {
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Webster Hall", 400),
	)
	rep, err := svc.CityReport(context.Background(), testLocality)
	if err != nil {
		t.Fatalf("CityReport: %v", err)
	}
	if rep.Severity != models.SeverityHealthy {
		t.Fatalf("severity = %q, want healthy", rep.Severity)
	}
	if len(rep.Pairs) != 0 || rep.UniqueVenues != 0 || rep.AffectedEvents != 0 {
		t.Fatalf("healthy report not empty: %+v", rep)
	}
}

func TestCityReportWarning(t *testing.T) {
	// Three same-name venues within 20m produce three pairs at full
	// confidence; two high-confidence pairs already trip the warning gate.
	svc, _, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 5),
		venueAt(3, "Blue Note", 10),
	)
	rep, err := svc.CityReport(context.Background(), testLocality)
	if err != nil {
		t.Fatalf("CityReport: %v", err)
	}
	if rep.Severity != models.SeverityWarning {
		t.Fatalf("severity = %q, want warning", rep.Severity)
	}
	if rep.HighConfidence != 3 {
		t.Fatalf("high confidence pairs = %d, want 3", rep.HighConfidence)
	}
	if rep.UniqueVenues != 3 {
		t.Fatalf("unique venues = %d, want 3", rep.UniqueVenues)
	}
}

func TestCityReportCriticalByAffectedEvents(t *testing.T) {
	svc, repo, _ := newTestService(t,
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 5),
	)
	// One duplicate pair, but the venues carry heavy event traffic.
	repo.EventCounts[1] = 80
	repo.EventCounts[2] = 40

	rep, err := svc.CityReport(context.Background(), testLocality)
	if err != nil {
		t.Fatalf("CityReport: %v", err)
	}
	if rep.AffectedEvents != 120 {
		t.Fatalf("affected events = %d, want 120", rep.AffectedEvents)
	}
	if rep.Severity != models.SeverityCritical {
		t.Fatalf("severity = %q, want critical", rep.Severity)
	}
}

func TestCityReportCriticalByPairCount(t *testing.T) {
	// Five same-name venues within one weight tier yield ten
	// high-confidence pairs, past the critical gate of five.
	venues := []models.Venue{
		venueAt(1, "Blue Note", 0),
		venueAt(2, "Blue Note", 3),
		venueAt(3, "Blue Note", 6),
		venueAt(4, "Blue Note", 9),
		venueAt(5, "Blue Note", 12),
	}
	svc, _, _ := newTestService(t, venues...)
	rep, err := svc.CityReport(context.Background(), testLocality)
	if err != nil {
		t.Fatalf("CityReport: %v", err)
	}
	if rep.HighConfidence != 10 {
		t.Fatalf("high confidence pairs = %d, want 10", rep.HighConfidence)
	}
	if rep.Severity != models.SeverityCritical {
		t.Fatalf("severity = %q, want critical", rep.Severity)
	}
}

func TestClassifySeverityGates(t *testing.T) {
	cases := []struct {
		name                                 string
		highConf, uniqueVenues, affectedEvts int
		want                                 string
	}{
		{"all zero", 0, 0, 0, models.SeverityHealthy},
		{"one weak pair", 1, 2, 3, models.SeverityHealthy},
		{"two strong pairs", 2, 3, 0, models.SeverityWarning},
		{"wide spread", 0, 10, 0, models.SeverityWarning},
		{"five strong pairs", 5, 4, 0, models.SeverityCritical},
		{"heavy event impact", 0, 2, 100, models.SeverityCritical},
	}
	for _, c := range cases {
		if got := classifySeverity(c.highConf, c.uniqueVenues, c.affectedEvts); got != c.want {
			t.Fatalf("%s: severity = %q, want %q", c.name, got, c.want)
		}
	}
}
