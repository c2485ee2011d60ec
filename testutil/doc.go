// Package testutil provides test fixtures for c2vprep.
//
// This package is intended for use in tests and benchmarks only.
//
// # Datasets
//
//	paths := testutil.WriteDataset(t, dataDir, "ds", testutil.Dataset{
//		Words:   []string{"a", "b"},
//		Paths:   []string{"P"},
//		Targets: []string{"get"},
//	})
//
// # Random Examples
//
//	rng := testutil.NewRNG(seed)
//	line := rng.RawExample("get", words, paths, 40, 0.25)
package testutil
