// Package pkg provides the core libraries for certgen certificate generation.
//
// # Overview
//
// Certgen renders personalized certificates: one document per CSV row,
// drawn onto a template image and packaged into ZIP archives. The pkg
// directory is organized into four main areas:
//
//  1. Inputs - template, dataset, fontcat (layouts, CSV rows, fonts)
//  2. Engine - render, pool, batch (drawing, parallelism, orchestration)
//  3. Output - archive (ZIP packaging and export)
//  4. State - jobstore, history (async jobs, run records for retry)
//
// # Architecture
//
// The typical data flow through certgen:
//
//	Template Image + Layout + CSV
//	         ↓
//	dataset.BuildTasks (dedup rows → tasks)
//	         ↓
//	batch.Orchestrator (probe → chunk → generate)
//	         ↓
//	pool.Pool (parallel render workers)
//	         ↓
//	archive.Build + Exporter (ZIP parts)
//
// The orchestrator probes one document to estimate memory cost, splits the
// task list into memory-bounded chunks, and drives the worker pool chunk by
// chunk. Per-record failures never abort a run; they are reported in the
// final summary and can be retried later from run history.
package pkg
