package amadeus_test

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/alecmocatta/amadeus/pkg/amadeus"
	"github.com/alecmocatta/amadeus/pkg/source"
)

func TestMostFrequent(t *testing.T) {
	// Two heavy items spread across partitions, plus distinct noise.
	var parts [][]string
	for p := 0; p < 4; p++ {
		var part []string
		for i := 0; i < 2000; i++ {
			part = append(part, "hot")
			if i%2 == 0 {
				part = append(part, "warm")
			}
			part = append(part, fmt.Sprintf("noise-%d-%d", p, i))
		}
		parts = append(parts, part)
	}
	const n = 4 * 5000 // total items

	s := amadeus.New(source.Slice(parts...))
	got, err := amadeus.Run(context.Background(), testPool(), s, amadeus.MostFrequent[string](2, 0.99, 0.01))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(got))
	}
	if got[0].Item != "hot" || got[1].Item != "warm" {
		t.Fatalf("top = %v, want hot then warm", got)
	}
	truth := map[string]float64{"hot": 8000, "warm": 4000}
	for _, entry := range got {
		if math.Abs(float64(entry.Count)-truth[entry.Item]) > 0.01*n {
			t.Errorf("%s count = %d, want %0.f ± %0.f", entry.Item, entry.Count, truth[entry.Item], 0.01*n)
		}
	}
}

func TestMostDistinct(t *testing.T) {
	// Key "wide" sees 5000 distinct values, "mid" 500, "narrow" 10;
	// every pair repeated so frequency does not track distinctness.
	var parts [][]amadeus.KV[string, int]
	for p := 0; p < 2; p++ {
		var part []amadeus.KV[string, int]
		for i := p * 2500; i < (p+1)*2500; i++ {
			part = append(part, amadeus.Pair("wide", i))
			part = append(part, amadeus.Pair("mid", i%500))
			part = append(part, amadeus.Pair("narrow", i%10))
			part = append(part, amadeus.Pair("narrow", i%10))
		}
		parts = append(parts, part)
	}

	s := amadeus.New(source.Slice(parts...))
	got, err := amadeus.Run(context.Background(), testPool(), s, amadeus.MostDistinct[string, int](2, 0.99, 0.01, 0.01))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(top) = %d, want 2", len(got))
	}
	if got[0].Key != "wide" || got[1].Key != "mid" {
		t.Fatalf("top keys = %v, want wide then mid", got)
	}
	if math.Abs(float64(got[0].Distinct)-5000) > 0.05*5000 {
		t.Errorf("wide distinct = %d, want ≈5000", got[0].Distinct)
	}
	if math.Abs(float64(got[1].Distinct)-500) > 0.05*500+5 {
		t.Errorf("mid distinct = %d, want ≈500", got[1].Distinct)
	}
}

// TestSampleUniformAcrossPartitions: sampling must not favor any
// partition beyond its share of the stream.
func TestSampleUniformAcrossPartitions(t *testing.T) {
	const trials = 300
	perPartition := []int{2000, 2000} // equal halves
	totals := make([]int, len(perPartition))
	for trial := 0; trial < trials; trial++ {
		parts := make([][]int, len(perPartition))
		for p, size := range perPartition {
			parts[p] = make([]int, size)
			for i := range parts[p] {
				parts[p][i] = p*10000 + i
			}
		}
		s := amadeus.New(source.Slice(parts...))
		sample, err := amadeus.Run(context.Background(), testPool(), s, amadeus.SampleUnstable[int](100))
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		for _, item := range sample {
			totals[item/10000]++
		}
	}
	// Each partition holds half the stream; expect ≈half the samples.
	expected := float64(trials) * 50
	for p, n := range totals {
		if math.Abs(float64(n)-expected) > 0.1*expected {
			t.Errorf("partition %d drew %d samples, want within 10%% of %.0f", p, n, expected)
		}
	}
}
