// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package maps

import (
	"fmt"
	"net"
	"sync"

	"github.com/cilium/ebpf"

	"github.com/oryxhq/oryx/internal/wire"
)

// BlockMap wraps one of BLOCKLIST_IPV4 / BLOCKLIST_IPV6: a hash map keyed by
// address, valued by a BlockMaskTriple that is the OR of every active
// BlockRule touching that address.
type BlockMap struct {
	m     *ebpf.Map
	v6    bool
	mutex sync.Mutex
}

// NewBlockMapV4 wraps a loaded BLOCKLIST_IPV4 map (4-byte keys).
func NewBlockMapV4(m *ebpf.Map) *BlockMap { return &BlockMap{m: m} }

// NewBlockMapV6 wraps a loaded BLOCKLIST_IPV6 map (16-byte keys).
func NewBlockMapV6(m *ebpf.Map) *BlockMap { return &BlockMap{m: m, v6: true} }

func (b *BlockMap) key(ip net.IP) (any, error) {
	if b.v6 {
		// To16 maps IPv4 addresses into ::ffff:a.b.c.d, so reject those
		// explicitly; a v4 address belongs in BLOCKLIST_IPV4.
		addr := ip.To16()
		if addr == nil || ip.To4() != nil {
			return nil, fmt.Errorf("not an IPv6 address: %s", ip)
		}
		var key [16]byte
		copy(key[:], addr)
		return key, nil
	}
	addr := ip.To4()
	if addr == nil {
		return nil, fmt.Errorf("not an IPv4 address: %s", ip)
	}
	var key [4]byte
	copy(key[:], addr)
	return key, nil
}

// Merge OR's mask into whatever triple is already present for ip, creating
// the entry if absent. internal/firewall does not call it; its
// reconciliation pass writes full values with Replace.
func (b *BlockMap) Merge(ip net.IP, mask wire.BlockMaskTriple) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key, err := b.key(ip)
	if err != nil {
		return err
	}

	var existing wire.BlockMaskTriple
	if err := b.m.Lookup(key, &existing); err == nil {
		mask.PortMask |= existing.PortMask
		mask.DirMask |= existing.DirMask
		if existing.ProtoNum == 0 || mask.ProtoNum == 0 {
			mask.ProtoNum = 0 // either side matching "all protocols" wins
		}
	}

	if err := b.m.Update(key, mask, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("update blocklist entry for %s: %w", ip, err)
	}
	return nil
}

// Delete removes the entry for ip entirely. internal/firewall's
// reconciliation pass calls it only for addresses no enabled rule covers;
// addresses still covered are rewritten with Replace instead.
func (b *BlockMap) Delete(ip net.IP) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key, err := b.key(ip)
	if err != nil {
		return err
	}
	if err := b.m.Delete(key); err != nil && err != ebpf.ErrKeyNotExist {
		return fmt.Errorf("delete blocklist entry for %s: %w", ip, err)
	}
	return nil
}

// Replace atomically overwrites the mask for ip without merging — used by
// reconciliation, which computes the full merged mask itself from scratch.
func (b *BlockMap) Replace(ip net.IP, mask wire.BlockMaskTriple) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	key, err := b.key(ip)
	if err != nil {
		return err
	}
	if err := b.m.Update(key, mask, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("replace blocklist entry for %s: %w", ip, err)
	}
	return nil
}

// Entries returns every (ip, mask) pair currently present, for diagnostics
// and firewall reconciliation.
func (b *BlockMap) Entries() (map[string]wire.BlockMaskTriple, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	out := make(map[string]wire.BlockMaskTriple)
	var mask wire.BlockMaskTriple
	iter := b.m.Iterate()
	if b.v6 {
		var key [16]byte
		for iter.Next(&key, &mask) {
			out[net.IP(key[:]).String()] = mask
		}
	} else {
		var key [4]byte
		for iter.Next(&key, &mask) {
			out[net.IP(key[:]).String()] = mask
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocklist: %w", err)
	}
	return out, nil
}
