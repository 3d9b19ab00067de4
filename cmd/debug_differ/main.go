// Standalone diff inspector: generates packs from a snapshot file and
// diffs them against a second snapshot's packs, printing the full
// comparison as JSON. Runs entirely offline, no database needed.
//
// Usage: go run ./cmd/debug_differ old.json new.json
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	"packsync/feature/packs/differ"
	"packsync/feature/packs/generator"
	"packsync/feature/packs/models"
	"packsync/feature/reconcile"
)

func main() {
	if len(os.Args) != 3 {
		log.Fatal("usage: debug_differ <old-snapshot.json> <new-snapshot.json>")
	}

	gen := generator.New(generator.Config{Source: "debug", Prefix: "dbg", MinPackSize: 2})

	oldPacks := generate(gen, os.Args[1])
	newPacks := generate(gen, os.Args[2])

	fmt.Printf("old packs: %d, new packs: %d\n", len(oldPacks), len(newPacks))

	cmp := differ.Diff(oldPacks, newPacks)

	out, err := json.MarshalIndent(cmp, "", "  ")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(out))

	fmt.Println("=== Lineage ===")
	for parent, children := range cmp.Lineage {
		fmt.Printf("%s -> %v\n", parent, children)
	}
}

func generate(gen *generator.Generator, path string) []*models.SeatPack {
	raw, err := os.ReadFile(path)
	if err != nil {
		log.Fatal(err)
	}
	var snap reconcile.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Fatal(err)
	}

	schemes := make(map[string]generator.Scheme)
	for section, scheme := range snap.Schemes {
		schemes[section] = scheme
	}
	return gen.Generate(snap.PerformanceID, snap.VenueID, snap.Seats, schemes)
}
