// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

// Package reconcile defines the result vocabulary for idempotent
// ensure-exists operations. Every reconciliation — rooms, communities,
// users — reports one of three outcomes: the resource was created, it
// already existed in the desired state, or the attempt failed. Summary
// responses count outcomes per category, so the type carries enough
// to aggregate without re-deriving anything from errors.
package reconcile

import "fmt"

// Status classifies the result of one ensure-exists attempt.
type Status int

const (
	// Created means the resource did not exist and was created.
	Created Status = iota
	// AlreadyExists means the resource was already present; nothing
	// was changed.
	AlreadyExists
	// Failed means the attempt errored. The Outcome carries the
	// detail; the overall run continues with the remaining resources.
	Failed
)

// String returns the status name for logs and summaries.
func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case AlreadyExists:
		return "already exists"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is the result of reconciling a single resource.
type Outcome struct {
	Status Status
	// Detail is the failure description when Status is Failed, empty
	// otherwise.
	Detail string
}

// OK constructs a non-failure outcome.
func OK(status Status) Outcome {
	return Outcome{Status: status}
}

// Failure constructs a Failed outcome wrapping the error's message.
func Failure(err error) Outcome {
	return Outcome{Status: Failed, Detail: err.Error()}
}

// Failed reports whether the outcome is a failure.
func (o Outcome) Failed() bool {
	return o.Status == Failed
}

// Summary tallies outcomes across a reconciliation run.
type Summary struct {
	Created       int
	AlreadyExists int
	Failed        int
}

// Add counts one outcome into the summary.
func (s *Summary) Add(outcome Outcome) {
	switch outcome.Status {
	case Created:
		s.Created++
	case AlreadyExists:
		s.AlreadyExists++
	case Failed:
		s.Failed++
	}
}

// Total returns the number of outcomes counted.
func (s *Summary) Total() int {
	return s.Created + s.AlreadyExists + s.Failed
}
