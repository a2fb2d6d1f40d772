// Copyright 2026 The Strix Authors
// SPDX-License-Identifier: Apache-2.0

package reconcile

import (
	"errors"
	"testing"
)

func TestOutcome(t *testing.T) {
	ok := OK(Created)
	if ok.Failed() {
		t.Error("Created outcome reported as failed")
	}
	if ok.Status.String() != "created" {
		t.Errorf("Status = %q", ok.Status.String())
	}

	failure := Failure(errors.New("alias taken"))
	if !failure.Failed() {
		t.Error("Failure outcome not reported as failed")
	}
	if failure.Detail != "alias taken" {
		t.Errorf("Detail = %q", failure.Detail)
	}
}

func TestSummary(t *testing.T) {
	var summary Summary
	summary.Add(OK(Created))
	summary.Add(OK(AlreadyExists))
	summary.Add(OK(AlreadyExists))
	summary.Add(Failure(errors.New("boom")))

	if summary.Created != 1 || summary.AlreadyExists != 2 || summary.Failed != 1 {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Total() != 4 {
		t.Errorf("Total = %d", summary.Total())
	}
}
