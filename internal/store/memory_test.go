package store

import (
	"context"
	"testing"
)

func TestMemoryStoreCommitLog(t *testing.T) {
	s := NewMemoryStore(DefaultPresidents)
	ctx := context.Background()

	presidents, err := s.ListPresidents(ctx)
	if err != nil {
		t.Fatalf("ListPresidents() error = %v", err)
	}
	if len(presidents) != 5 || presidents[4].Name != "Anura Kumara Dissanayake" {
		t.Fatalf("unexpected presidents: %+v", presidents)
	}
	presidents[0].Name = "mutated"
	again, _ := s.ListPresidents(ctx)
	if again[0].Name == "mutated" {
		t.Fatal("ListPresidents() must return a copy")
	}

	for _, rec := range []CommitRecord{
		{Scope: "mindep", Number: "1", Payload: []byte(`[]`)},
		{Scope: "person", Number: "2"},
		{Scope: "mindep", Number: "3"},
	} {
		saved, err := s.RecordCommit(ctx, rec)
		if err != nil {
			t.Fatalf("RecordCommit() error = %v", err)
		}
		if saved.ID == "" || saved.CommittedAt.IsZero() {
			t.Fatalf("expected id and timestamp, got %+v", saved)
		}
	}

	items, err := s.ListCommits(ctx, CommitFilter{Scope: "mindep"})
	if err != nil {
		t.Fatalf("ListCommits() error = %v", err)
	}
	if len(items) != 2 || items[0].Number != "3" || items[1].Number != "1" {
		t.Fatalf("unexpected commits: %+v", items)
	}
	if items[1].Payload != nil {
		t.Fatal("payloads are not listed")
	}

	limited, _ := s.ListCommits(ctx, CommitFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestCommitFilterLimit(t *testing.T) {
	cases := map[int]int{0: 50, -1: 50, 10: 10, 900: 500}
	for in, want := range cases {
		if got := (CommitFilter{Limit: in}).limit(); got != want {
			t.Fatalf("limit(%d) = %d, want %d", in, got, want)
		}
	}
}
