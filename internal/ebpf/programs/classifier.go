// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package programs

import (
	"fmt"
	"net"

	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"

	"github.com/oryxhq/oryx/internal/logging"
)

// ClassifierProgram owns the loaded TC classifier collection and its
// ingress/egress attachments for a single interface.
type ClassifierProgram struct {
	collection *ebpf.Collection
	links      []link.Link
	logger     *logging.Logger
}

// NewClassifierProgram loads the embedded classifier collection without
// attaching it to any interface yet.
func NewClassifierProgram(logger *logging.Logger) (*ClassifierProgram, error) {
	spec, err := LoadClassifier()
	if err != nil {
		return nil, fmt.Errorf("load classifier spec: %w", err)
	}

	// No pinning: maps are re-created on every attach (a re-attach is
	// equivalent to detach+attach).
	for _, m := range spec.Maps {
		m.Pinning = ebpf.PinNone
	}

	collection, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("load classifier collection: %w", err)
	}

	return &ClassifierProgram{
		collection: collection,
		links:      make([]link.Link, 0, 2),
		logger:     logger,
	}, nil
}

// Attach attaches the ingress and egress TC programs to the named interface.
func (p *ClassifierProgram) Attach(ifaceName string) error {
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return fmt.Errorf("find interface %s: %w", ifaceName, err)
	}

	ingress := p.collection.Programs["tc_classifier_ingress"]
	if ingress == nil {
		return fmt.Errorf("tc_classifier_ingress program not found")
	}
	ingressLink, err := link.AttachTCX(link.TCXOptions{
		Program:   ingress,
		Interface: iface.Index,
		Attach:    ebpf.AttachTCXIngress,
	})
	if err != nil {
		return fmt.Errorf("attach ingress classifier: %w", err)
	}
	p.links = append(p.links, ingressLink)

	egress := p.collection.Programs["tc_classifier_egress"]
	if egress == nil {
		ingressLink.Close()
		p.links = p.links[:0]
		return fmt.Errorf("tc_classifier_egress program not found")
	}
	egressLink, err := link.AttachTCX(link.TCXOptions{
		Program:   egress,
		Interface: iface.Index,
		Attach:    ebpf.AttachTCXEgress,
	})
	if err != nil {
		ingressLink.Close()
		p.links = p.links[:0]
		return fmt.Errorf("attach egress classifier: %w", err)
	}
	p.links = append(p.links, egressLink)

	p.logger.Info("attached classifier", "interface", ifaceName)
	return nil
}

// Detach removes both TC attachments, leaving the collection loaded.
func (p *ClassifierProgram) Detach() error {
	var firstErr error
	for _, lnk := range p.links {
		if err := lnk.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	p.links = p.links[:0]
	return firstErr
}

// Map returns a named map from the loaded collection (FILTERS,
// BLOCKLIST_IPV4, BLOCKLIST_IPV6, DATA).
func (p *ClassifierProgram) Map(name string) (*ebpf.Map, error) {
	m, ok := p.collection.Maps[name]
	if !ok {
		return nil, fmt.Errorf("map %s not found in classifier collection", name)
	}
	return m, nil
}

// Close detaches and releases the collection.
func (p *ClassifierProgram) Close() error {
	err := p.Detach()
	if p.collection != nil {
		p.collection.Close()
	}
	return err
}
