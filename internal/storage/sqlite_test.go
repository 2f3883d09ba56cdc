package storage

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"fareprobe/internal/resolve"
	"fareprobe/internal/scenario"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sampleReport(testID, status string) scenario.Report {
	return scenario.Report{
		TestID:      testID,
		Description: "one stop window",
		Origin: resolve.Result{
			Query:       resolve.Query{RawName: "Delhi", Role: resolve.Origin},
			AirportCode: "DEL",
			Strategy:    "full-name",
			Attempts:    1,
		},
		Destination: resolve.Result{
			Query:       resolve.Query{RawName: "Mumbai", Role: resolve.Destination},
			AirportCode: "BOM",
			Strategy:    "full-name",
			Attempts:    2,
		},
		BeforeCount:   42,
		AfterCount:    5,
		OffersChecked: 5,
		OffersPassed:  5,
		Status:        status,
	}
}

func TestInsertAndQuery(t *testing.T) {
	db := testDB(t)

	id, err := db.InsertReport("run-1", sampleReport("TC01", "PASS"))
	if err != nil {
		t.Fatalf("InsertReport: %v", err)
	}
	if id == 0 {
		t.Error("expected non-zero row id")
	}

	runs, err := db.Query(QueryParams{RunID: "run-1"})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}

	r := runs[0]
	if r.TestID != "TC01" {
		t.Errorf("TestID = %q, want TC01", r.TestID)
	}
	if r.OriginCode != "DEL" || r.DestCode != "BOM" {
		t.Errorf("route = %s-%s, want DEL-BOM", r.OriginCode, r.DestCode)
	}
	if r.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (both ends summed)", r.Attempts)
	}
	if r.Status != "PASS" {
		t.Errorf("Status = %q, want PASS", r.Status)
	}

	// The full report must round-trip through the JSON column.
	var rep scenario.Report
	if err := json.Unmarshal([]byte(r.ReportJSON), &rep); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if rep.Origin.Query.RawName != "Delhi" {
		t.Errorf("report origin = %q, want Delhi", rep.Origin.Query.RawName)
	}
	if rep.BeforeCount != 42 {
		t.Errorf("report BeforeCount = %d, want 42", rep.BeforeCount)
	}
}

func TestQueryFilters(t *testing.T) {
	db := testDB(t)

	mustInsert := func(runID string, rep scenario.Report) {
		t.Helper()
		if _, err := db.InsertReport(runID, rep); err != nil {
			t.Fatalf("InsertReport: %v", err)
		}
	}

	mustInsert("run-1", sampleReport("TC01", "PASS"))
	mustInsert("run-1", sampleReport("TC02", "FAIL"))
	mustInsert("run-2", sampleReport("TC01", "PASS"))

	goaRep := sampleReport("TC03", "PASS")
	goaRep.Destination.AirportCode = "GOI"
	goaRep.Destination.Query.RawName = "Goa"
	mustInsert("run-2", goaRep)

	tests := []struct {
		name   string
		params QueryParams
		want   int
	}{
		{"by run id", QueryParams{RunID: "run-1"}, 2},
		{"by test id", QueryParams{TestID: "TC01"}, 2},
		{"by status", QueryParams{Status: "FAIL"}, 1},
		{"by route", QueryParams{Route: "DEL-BOM"}, 3},
		{"by route lowercase", QueryParams{Route: "del-goi"}, 1},
		{"combined", QueryParams{RunID: "run-2", Status: "PASS"}, 2},
		{"limit", QueryParams{Limit: 1}, 1},
		{"no match", QueryParams{RunID: "run-9"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runs, err := db.Query(tt.params)
			if err != nil {
				t.Fatalf("Query: %v", err)
			}
			if len(runs) != tt.want {
				t.Errorf("got %d runs, want %d", len(runs), tt.want)
			}
		})
	}
}

func TestQueryOrdering(t *testing.T) {
	db := testDB(t)

	for _, id := range []string{"TC01", "TC02", "TC03"} {
		if _, err := db.InsertReport("run-1", sampleReport(id, "PASS")); err != nil {
			t.Fatalf("InsertReport: %v", err)
		}
	}

	runs, err := db.Query(QueryParams{OrderDesc: true})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].TestID != "TC03" || runs[2].TestID != "TC01" {
		t.Errorf("descending order broken: %s .. %s", runs[0].TestID, runs[2].TestID)
	}
}

func TestGetStats(t *testing.T) {
	db := testDB(t)

	inserts := []struct {
		testID string
		status string
	}{
		{"TC01", "PASS"},
		{"TC02", "PASS"},
		{"TC03", "FAIL"},
	}
	for _, in := range inserts {
		if _, err := db.InsertReport("run-1", sampleReport(in.testID, in.status)); err != nil {
			t.Fatalf("InsertReport: %v", err)
		}
	}

	stats, err := db.GetStats()
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}

	if stats.TotalRuns != 3 {
		t.Errorf("TotalRuns = %d, want 3", stats.TotalRuns)
	}
	if stats.ByStatus["PASS"] != 2 {
		t.Errorf("ByStatus[PASS] = %d, want 2", stats.ByStatus["PASS"])
	}
	if stats.ByStatus["FAIL"] != 1 {
		t.Errorf("ByStatus[FAIL] = %d, want 1", stats.ByStatus["FAIL"])
	}
	if stats.ByRoute["DEL-BOM"] != 3 {
		t.Errorf("ByRoute[DEL-BOM] = %d, want 3", stats.ByRoute["DEL-BOM"])
	}
}
