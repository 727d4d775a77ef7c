//go:build ignore

// Package main generates a synthetic JSON Lines owner file for benchmarking
// `fuzzidx index` and `fuzzidx search`.
// Usage: go run scripts/generate-test-corpus.go -owners 100000 -output testdata/bench/users.jsonl
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

var (
	numOwners = flag.Int("owners", 10000, "Number of owners to generate")
	output    = flag.String("output", "testdata/bench/users.jsonl", "Output file")
	seed      = flag.Int64("seed", 42, "Random seed for reproducibility")
	blankPct  = flag.Int("blank", 2, "Percentage of owners with an empty name")
)

var firstNames = []string{
	"Ada", "Alan", "Barbara", "Claude", "Dennis", "Edsger", "Frances", "Grace",
	"Hedy", "Ivan", "Jean", "Ken", "Linus", "Margaret", "Niklaus", "Radia",
	"Renée", "Søren", "Tim", "Zoë",
}

var lastNames = []string{
	"Lovelace", "Turing", "Liskov", "Shannon", "Ritchie", "Dijkstra", "Allen",
	"Hopper", "Lamarr", "Sutherland", "Sammet", "Thompson", "Torvalds",
	"Hamilton", "Wirth", "Perlman", "Descartes", "Kierkegaard", "Berners-Lee",
}

var domains = []string{"example.com", "example.org", "mail.test", "corp.invalid"}

type owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*output), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output directory: %v\n", err)
		os.Exit(1)
	}
	f, err := os.Create(*output)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating %s: %v\n", *output, err)
		os.Exit(1)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 1; i <= *numOwners; i++ {
		o := owner{ID: strconv.Itoa(i)}
		if rng.Intn(100) >= *blankPct {
			first := firstNames[rng.Intn(len(firstNames))]
			last := lastNames[rng.Intn(len(lastNames))]
			o.Name = first + " " + last
			o.Email = fmt.Sprintf("%s.%s%d@%s", first, last, rng.Intn(100), domains[rng.Intn(len(domains))])
		}
		if err := enc.Encode(o); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing owner %d: %v\n", i, err)
			os.Exit(1)
		}
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error flushing %s: %v\n", *output, err)
		os.Exit(1)
	}

	fmt.Printf("Generated %d owners in %s\n", *numOwners, *output)
}
