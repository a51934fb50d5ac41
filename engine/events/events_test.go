package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/beakerflow/beaker/engine/report"
)

func TestNilPublisherIsNoop(t *testing.T) {
	var p *Publisher
	ctx := context.Background()
	rep := &report.RunReport{RunMode: report.Waterfall, Nodes: map[string]map[string]int{}}

	if err := p.RunStarted(ctx, report.Waterfall, nil); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
	if err := p.RunCompleted(ctx, rep); err != nil {
		t.Fatalf("RunCompleted: %v", err)
	}
	if err := p.RunFailed(ctx, rep, errors.New("boom")); err != nil {
		t.Fatalf("RunFailed: %v", err)
	}
	if err := p.SeedCompleted(ctx, "words", "word", 3); err != nil {
		t.Fatalf("SeedCompleted: %v", err)
	}
	if err := p.SeedFailed(ctx, "words", errors.New("boom")); err != nil {
		t.Fatalf("SeedFailed: %v", err)
	}
}

func TestUnconnectedPublisherIsNoop(t *testing.T) {
	p := NewPublisher(nil)
	ctx := context.Background()
	if err := p.RunStarted(ctx, report.River, []string{"word"}); err != nil {
		t.Fatalf("RunStarted: %v", err)
	}
}

func TestRunCompletedMarshalsNodes(t *testing.T) {
	evt := RunCompleted{
		RunMode: report.Waterfall,
		Nodes:   map[string]map[string]int{"word": {"normalized": 3}},
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunCompleted
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Nodes["word"]["normalized"] != 3 {
		t.Fatalf("unexpected decoded nodes: %+v", decoded.Nodes)
	}
}

func TestRunFailedCarriesPartialReportAndError(t *testing.T) {
	rep := &report.RunReport{
		RunMode: report.River,
		Nodes:   map[string]map[string]int{"word": {"normalized": 1}},
	}
	evt := RunFailed{Error: "boom"}
	if rep != nil {
		evt.RunMode = rep.RunMode
		evt.Nodes = rep.Nodes
	}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	var decoded RunFailed
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Error != "boom" || decoded.Nodes["word"]["normalized"] != 1 {
		t.Fatalf("unexpected decoded: %+v", decoded)
	}
}

func TestSeedCompletedMarshalsFields(t *testing.T) {
	evt := SeedCompleted{Name: "words", BeakerName: "word", NumItems: 5}
	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	var decoded SeedCompleted
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.Name != "words" || decoded.NumItems != 5 {
		t.Fatalf("unexpected decoded: %+v", decoded)
	}
}
