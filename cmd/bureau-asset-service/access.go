// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/bureau-foundation/assets/lib/config"
	"github.com/bureau-foundation/assets/lib/service"
)

// role is the grant an action requires.
type role int

const (
	roleReader role = iota
	roleWriter
	roleAdmin
)

// actionRoles lists actions that need more than read access. Actions
// not listed are open to every peer.
var actionRoles = map[string]role{
	"upload":    roleWriter,
	"delete":    roleWriter,
	"set-trust": roleAdmin,
}

// accessPolicy authorizes socket actions by peer uid.
//
// An empty writer list grants write access to every peer, and an
// empty admin list does the same for admin actions. Admins are also
// writers. Peers whose credentials are unknown only pass open grants.
type accessPolicy struct {
	writers map[uint32]struct{}
	admins  map[uint32]struct{}
}

func newAccessPolicy(access config.AccessConfig) *accessPolicy {
	policy := &accessPolicy{
		writers: make(map[uint32]struct{}, len(access.Writers)),
		admins:  make(map[uint32]struct{}, len(access.Admins)),
	}
	for _, uid := range access.Writers {
		policy.writers[uid] = struct{}{}
	}
	for _, uid := range access.Admins {
		policy.admins[uid] = struct{}{}
	}
	return policy
}

// Authorize implements service.Authorizer.
func (p *accessPolicy) Authorize(peer service.Peer, action string) error {
	switch actionRoles[action] {
	case roleWriter:
		if len(p.writers) == 0 || p.isAdmin(peer) || p.grants(p.writers, peer) {
			return nil
		}
	case roleAdmin:
		if len(p.admins) == 0 || p.grants(p.admins, peer) {
			return nil
		}
	default:
		return nil
	}
	if !peer.Known {
		return fmt.Errorf("%s denied: peer credentials unavailable", action)
	}
	return fmt.Errorf("%s denied for uid %d", action, peer.UID)
}

func (p *accessPolicy) isAdmin(peer service.Peer) bool {
	return p.grants(p.admins, peer)
}

func (p *accessPolicy) grants(uids map[uint32]struct{}, peer service.Peer) bool {
	if !peer.Known {
		return false
	}
	_, ok := uids[peer.UID]
	return ok
}
