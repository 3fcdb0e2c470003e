// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package host

import (
	"os"
	"testing"
)

func TestHasCapability(t *testing.T) {
	const mask = uint64(1<<12 | 1<<39) // CAP_NET_ADMIN | CAP_BPF
	if !hasCapability(mask, 12) {
		t.Fatal("expected CAP_NET_ADMIN bit set")
	}
	if !hasCapability(mask, capBPF) {
		t.Fatal("expected CAP_BPF bit set")
	}
	if hasCapability(mask, 21) {
		t.Fatal("did not expect CAP_SYS_ADMIN bit set")
	}
}

func TestVerifyCapabilities_RootAlwaysPasses(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("requires root")
	}
	if err := VerifyCapabilities(); err != nil {
		t.Fatalf("expected nil error for root, got %v", err)
	}
}
