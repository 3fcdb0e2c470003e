// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package host

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	oryxerrors "github.com/oryxhq/oryx/internal/errors"
)

// capBPF is not yet exposed by x/sys/unix on every supported kernel target,
// so it's named directly (kernel constant CAP_BPF, added in 5.8).
const capBPF = 39

// effectiveCapabilities reads the CapEff bitmask from /proc/self/status.
func effectiveCapabilities() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "CapEff:") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			continue
		}
		mask, err := strconv.ParseUint(fields[1], 16, 64)
		if err != nil {
			return 0, err
		}
		return mask, nil
	}
	return 0, scanner.Err()
}

func hasCapability(mask uint64, cap uint) bool {
	return mask&(1<<cap) != 0
}

// VerifyCapabilities checks that the process has CAP_NET_ADMIN and CAP_BPF
// (or is running as root, which implies both), returning a KindSetup error
// carrying exit code 1 when either is missing.
func VerifyCapabilities() error {
	if os.Geteuid() == 0 {
		return nil
	}

	mask, err := effectiveCapabilities()
	if err != nil {
		return oryxerrors.NoCapabilities(err)
	}

	if !hasCapability(mask, unix.CAP_NET_ADMIN) || !hasCapability(mask, capBPF) {
		return oryxerrors.NoCapabilities(nil)
	}
	return nil
}
