package projects_test

import (
	"errors"
	"testing"
	"time"

	"github.com/medienhaus/rundgang-frontend-21/internal/projects"
)

func TestStore_ReadsAreCopies(t *testing.T) {
	store := projects.NewStore()
	store.Replace(map[string]projects.ProjectRecord{
		"!p": {ID: "!p", Authors: []string{"Ada"}, Location: [][]string{{"Hall"}}},
	})

	listed := store.List()
	listed["!p"].Authors[0] = "Mallory"
	listed["!p"].Location[0][0] = "Basement"
	delete(listed, "!p")

	record, ok := store.Get("!p")
	if !ok {
		t.Fatalf("expected record to survive caller mutation")
	}
	if record.Authors[0] != "Ada" || record.Location[0][0] != "Hall" {
		t.Fatalf("expected stored record to be unchanged, got %+v", record)
	}
	record.Authors[0] = "Eve"
	again, _ := store.Get("!p")
	if again.Authors[0] != "Ada" {
		t.Fatalf("expected Get to return a copy")
	}
}

func TestStore_ReplaceIsWholesale(t *testing.T) {
	store := projects.NewStore()
	source := map[string]projects.ProjectRecord{"!a": {ID: "!a"}, "!b": {ID: "!b"}}
	store.Replace(source)
	source["!c"] = projects.ProjectRecord{ID: "!c"}

	if store.Len() != 2 {
		t.Fatalf("expected store to ignore later mutation of the source map, got %d", store.Len())
	}
	store.Replace(map[string]projects.ProjectRecord{"!c": {ID: "!c"}})
	if _, ok := store.Get("!a"); ok {
		t.Fatalf("expected previous snapshot to be discarded")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 record, got %d", store.Len())
	}
}

func TestStore_RunningFlag(t *testing.T) {
	store := projects.NewStore()
	if !store.TryBegin() {
		t.Fatalf("expected first TryBegin to succeed")
	}
	if store.TryBegin() {
		t.Fatalf("expected second TryBegin to fail while running")
	}
	if !store.Status().InProgress {
		t.Fatalf("expected status to report in progress")
	}
	store.End()
	if !store.TryBegin() {
		t.Fatalf("expected TryBegin to succeed after End")
	}
}

func TestStore_StatusBookkeeping(t *testing.T) {
	store := projects.NewStore()
	success := time.Date(2021, 7, 16, 10, 0, 0, 0, time.UTC)
	store.Replace(map[string]projects.ProjectRecord{"!p": {ID: "!p"}})
	store.RecordSuccess(projects.CrawlReport{CrawlID: "one", ProjectCount: 1}, success)

	failure := success.Add(time.Hour)
	store.RecordFailure("two", errors.New("root unreachable"), failure)

	status := store.Status()
	if status.LastCrawlID != "two" || status.LastError != "root unreachable" {
		t.Fatalf("unexpected failure bookkeeping %+v", status)
	}
	if !status.LastSuccessAt.Equal(success) || !status.LastFailureAt.Equal(failure) {
		t.Fatalf("unexpected timestamps %+v", status)
	}
	if status.LastReport == nil || status.LastReport.CrawlID != "one" || status.ProjectCount != 1 {
		t.Fatalf("expected last successful report to be kept, got %+v", status)
	}

	status.LastReport.CrawlID = "mutated"
	if store.Status().LastReport.CrawlID != "one" {
		t.Fatalf("expected Status to return a copy of the report")
	}
}
