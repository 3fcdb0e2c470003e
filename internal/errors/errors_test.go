// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindUser, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindRuntime, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindUser, "invalid input")
	if GetKind(err) != KindUser {
		t.Errorf("expected KindUser, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindRuntime, "failed")
	if GetKind(wrapped) != KindRuntime {
		t.Errorf("expected KindRuntime, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindUser, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	if attrs["field"] != "port" {
		t.Errorf("expected port, got %v", attrs["field"])
	}
	if attrs["value"] != 80 {
		t.Errorf("expected 80, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindRuntime, "failed")
	wrapped = Attr(wrapped, "operation", "start")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "port" || allAttrs["operation"] != "start" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}

func TestExitCode_SetupConstructors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{NoCapabilities(nil), 1},
		{InterfaceMissing("eth9", nil), 2},
		{ProgramLoadFailed(errors.New("verifier rejected")), 3},
		{RulesParseFailed(errors.New("bad json")), 4},
		{New(KindUser, "not a setup error"), 0},
		{errors.New("std error"), 0},
	}
	for _, tc := range cases {
		if got := ExitCode(tc.err); got != tc.want {
			t.Errorf("ExitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestExitCode_SurvivesWrapping(t *testing.T) {
	inner := InterfaceMissing("wlan0", nil)
	wrapped := Wrap(inner, KindSetup, "attach to wlan0")
	if got := ExitCode(wrapped); got != 2 {
		t.Errorf("ExitCode of wrapped setup error = %d, want 2", got)
	}
}
