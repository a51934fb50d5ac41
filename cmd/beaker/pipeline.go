package main

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"sort"
	"strings"

	"github.com/beakerflow/beaker/engine/beaker"
	"github.com/beakerflow/beaker/engine/dag"
	"github.com/beakerflow/beaker/engine/edge"
	"github.com/beakerflow/beaker/engine/seed"
)

// Word is the raw seed payload: an unnormalized word.
type Word struct {
	Word string `json:"word"`
}

// Sentence is produced from a fruit's full lineage, demonstrating a
// whole-record edge.
type Sentence struct {
	Sentence string `json:"sentence"`
}

var errEmptyWord = errors.New("empty word")

var fruitNames = map[string]bool{
	"apple": true, "banana": true, "cherry": true, "durian": true,
	"elderberry": true, "fig": true, "grape": true, "honeydew": true,
	"jackfruit": true, "kiwi": true, "lemon": true, "mango": true,
	"nectarine": true, "orange": true, "pear": true, "quince": true,
	"raspberry": true, "strawberry": true, "tangerine": true, "watermelon": true,
}

// beakerOrder lists every beaker this pipeline declares, in dependency
// order, for display and seeding purposes.
var beakerOrder = []string{"word", "normalized", "nonword", "fruit", "errors", "sentence"}

// buildGraph declares the fruit-classification pipeline used throughout this
// CLI: word -> normalized -> fruit -> sentence, with error-map destinations
// nonword (empty words) and errors (classification failures). Non-fruit
// words are dropped by the classifier, not routed to an error beaker.
func buildGraph() (*dag.Graph, error) {
	g := dag.NewGraph()

	wordSchema := beaker.NewTypedSchema[Word]("demo.Word", nil)
	sentenceSchema := beaker.NewTypedSchema[Sentence]("demo.Sentence", nil)

	if err := g.AddBeaker("word", wordSchema, beaker.Durable); err != nil {
		return nil, err
	}
	if err := g.AddBeaker("normalized", wordSchema, beaker.Ephemeral); err != nil {
		return nil, err
	}
	if err := g.AddBeaker("nonword", edge.ErrorSchema, beaker.Durable); err != nil {
		return nil, err
	}
	if err := g.AddBeaker("fruit", wordSchema, beaker.Durable); err != nil {
		return nil, err
	}
	if err := g.AddBeaker("errors", edge.ErrorSchema, beaker.Durable); err != nil {
		return nil, err
	}
	if err := g.AddBeaker("sentence", sentenceSchema, beaker.Durable); err != nil {
		return nil, err
	}

	normalize := &edge.Transform{
		Destination: "normalized",
		Fn: func(_ context.Context, in edge.Input) (edge.Result, error) {
			var w Word
			if err := json.Unmarshal(in.Payload, &w); err != nil {
				return edge.Result{}, err
			}
			if strings.TrimSpace(w.Word) == "" {
				return edge.Result{}, errEmptyWord
			}
			return edge.One(Word{Word: strings.ToLower(w.Word)}), nil
		},
		ErrorMap: []edge.ErrorRoute{
			{Matches: func(err error) bool { return errors.Is(err, errEmptyWord) }, Destination: "nonword"},
		},
	}
	if err := g.AddTransform("word", normalize); err != nil {
		return nil, err
	}

	classifyFruit := &edge.Transform{
		Destination: "fruit",
		AllowFilter: true, // drops non-fruit words instead of failing, matching the original conditional edge
		Fn: func(_ context.Context, in edge.Input) (edge.Result, error) {
			var w Word
			if err := json.Unmarshal(in.Payload, &w); err != nil {
				return edge.Result{}, err
			}
			if w.Word == "error" {
				return edge.Result{}, errors.New("simulated classification error")
			}
			if !fruitNames[w.Word] {
				return edge.Nothing(), nil
			}
			return edge.One(w), nil
		},
		ErrorMap: []edge.ErrorRoute{
			{Matches: func(error) bool { return true }, Destination: "errors"},
		},
	}
	if err := g.AddTransform("normalized", classifyFruit); err != nil {
		return nil, err
	}

	describe := &edge.Transform{
		Destination: "sentence",
		WholeRecord: true,
		Fn: func(_ context.Context, in edge.Input) (edge.Result, error) {
			var w Word
			payload, ok := in.Lineage.Get("normalized")
			if !ok {
				payload = in.Payload
			}
			if err := json.Unmarshal(payload, &w); err != nil {
				return edge.Result{}, err
			}
			return edge.One(Sentence{Sentence: w.Word + " is a delicious fruit."}), nil
		},
	}
	if err := g.AddTransform("fruit", describe); err != nil {
		return nil, err
	}

	return g, nil
}

// registerSeeds binds the pipeline's demo seeds against the word beaker.
func registerSeeds(mgr *seed.Manager, stores map[string]beaker.Store) {
	wordStore := stores["word"]
	mgr.RegisterSeed("basics", wordStore, func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for _, w := range []string{"apple", "BANANA", "cat"} {
				if !yield(Word{Word: w}, nil) {
					return
				}
			}
		}
	})
	mgr.RegisterSeed("errors", wordStore, func(ctx context.Context) iter.Seq2[any, error] {
		return func(yield func(any, error) bool) {
			for _, w := range []string{"", "pear", "error"} {
				if !yield(Word{Word: w}, nil) {
					return
				}
			}
		}
	})
}

// sortedBeakerNames returns g's declared beakers sorted for stable display.
func sortedBeakerNames(g *dag.Graph) []string {
	names := g.BeakerNames()
	sort.Strings(names)
	return names
}
