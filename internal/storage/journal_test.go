package storage

import (
	"context"
	"fmt"
	"testing"

	"onboardbridge/pkg/model"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	j, err := Open(dsn, "test_", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestJournal_RecordAndList(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	in := []model.Outcome{
		{Session: "s1", Kind: model.OutcomeLoad, Payload: "https://x"},
		{Session: "s2", Kind: model.OutcomeError, Payload: "other"},
		{Session: "s1", Kind: model.OutcomeSuccess, Payload: `{"a":1}`},
	}
	for _, o := range in {
		if err := j.Record(ctx, o); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	got, err := j.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 2 || got[0] != in[0] || got[1] != in[2] {
		t.Fatalf("List() = %v", got)
	}
}

func TestJournal_Terminal(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	obs := j.Observer()

	obs(model.Outcome{Session: "s1", Kind: model.OutcomeEvent, Payload: "step"})
	if _, ok, err := j.Terminal(ctx, "s1"); err != nil || ok {
		t.Fatalf("Terminal() ok = %v, err = %v, want none", ok, err)
	}

	obs(model.Outcome{Session: "s1", Kind: model.OutcomeClose, Payload: "bye"})
	got, ok, err := j.Terminal(ctx, "s1")
	if err != nil || !ok {
		t.Fatalf("Terminal() ok = %v, err = %v", ok, err)
	}
	if got.Kind != model.OutcomeClose || got.Payload != "bye" {
		t.Errorf("Terminal() = %+v", got)
	}
}
