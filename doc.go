// Package c2vprep prepares code2vec training input at scale.
//
// Raw path-context lines ("<target> <origin,path,dest> ...") are reduced to
// fixed-width records using three vocabularies built from frequency
// histograms. Because thousands of short-lived worker processes need those
// vocabularies, they are resolved in tiers, first success wins:
//
//  1. a shared-memory segment published by a running distributor (package shm)
//  2. the on-disk cache artifact (package cachestore)
//  3. the raw histogram files (package vocab), which also builds the cache
//     when none exists yet
//
// # Quick Start
//
//	r, err := c2vprep.NewResolver("java14m", vocab.Sizes{Word: 1301136, Path: 911417, Target: 261245},
//	    c2vprep.WithDataDir("/code2vec/data"))
//	if err != nil {
//	    return err
//	}
//	stats, err := c2vprep.Preprocess(ctx, r, c2vprep.Job{
//	    Input:       "java14m.test.raw.txt",
//	    Output:      "java14m.test.c2v",
//	    MaxContexts: 200,
//	})
//
// # Distributing vocabularies
//
// Start one distributor per dataset before fanning out workers:
//
//	srv := shm.NewServer("java14m", sizes, resolver)
//	err := srv.Start(ctx) // blocks until ctx is canceled
//
// Workers attach automatically through Resolve, either via the registry or
// via HISTOGRAM_SHM_NAME / HISTOGRAM_SHM_SIZE.
//
// # Errors
//
// Errors returned by this package match one of ErrNotFound, ErrFormat,
// ErrStaleCache, ErrAttachFailure or ErrCorrupt with errors.Is, and keep the
// package-level cause in their chain.
package c2vprep
