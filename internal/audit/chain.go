package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"aeroledger/pkg/platform/canonical"
	pkgerrors "aeroledger/pkg/domain-errors"
)

// Chain appends and verifies hash-linked audit entries. Each scope, a
// (resource, resourceId) pair, forms its own chain: an entry's hash covers
// the previous hash in scope plus the entry's own canonical content, so any
// later edit or removal breaks every link after it.
type Chain struct {
	store   Store
	metrics *Metrics
}

func NewChain(store Store, metrics *Metrics) *Chain {
	return &Chain{store: store, metrics: metrics}
}

// Append stores the entry and links it into its scope's chain. The write is
// two-step: the entry row first, then the chain fields. A crash in between
// leaves an entry with blank chain fields, which Verify reports as a break
// rather than hiding it.
func (c *Chain) Append(ctx context.Context, entry Entry) (Entry, error) {
	if entry.Action == ActionRectify && strings.TrimSpace(entry.Justification) == "" {
		return Entry{}, pkgerrors.New(pkgerrors.CodeValidation, "rectify audit entries require a justification")
	}
	prev, found, err := c.store.Latest(ctx, entry.Resource, entry.ResourceID)
	if err != nil {
		return Entry{}, fmt.Errorf("resolve chain head: %w", err)
	}
	prevHash := ""
	if found {
		prevHash = prev.Hash
	}

	stored, err := c.store.Create(ctx, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("store audit entry: %w", err)
	}
	hash, err := hashEntry(prevHash, stored)
	if err != nil {
		return Entry{}, err
	}
	if err := c.store.SetChain(ctx, stored.ID, prevHash, hash); err != nil {
		return Entry{}, fmt.Errorf("link audit entry: %w", err)
	}
	stored.PrevHash = prevHash
	stored.Hash = hash
	c.metrics.EntryAppended(stored.Resource, stored.Action)
	return stored, nil
}

// Verify replays the full chain of a scope from its genesis entry.
func (c *Chain) Verify(ctx context.Context, resource, resourceID string) (VerifyResult, error) {
	entries, _, err := c.store.ListAsc(ctx, Filters{Resource: resource, ResourceID: resourceID}, 0, 0)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("load chain: %w", err)
	}
	result := verifyEntries(entries, true)
	c.metrics.ChainVerified(resource, result)
	return result, nil
}

// List returns an oldest-first page plus the total matching the filters.
// With verify set it additionally checks the returned window: hash
// recomputation for every entry plus link continuity within each scope seen
// in the window. Genesis anchoring is only asserted by Verify, which always
// loads a scope in full.
func (c *Chain) List(ctx context.Context, filters Filters, limit, offset int, verify bool) ([]Entry, int, *VerifyResult, error) {
	entries, total, err := c.store.ListAsc(ctx, filters, limit, offset)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list audit entries: %w", err)
	}
	var result *VerifyResult
	if verify {
		r := verifyWindow(entries)
		result = &r
	}
	return entries, total, result, nil
}

// hashEntry computes SHA-256(prevHash + "|" + canonical(entry)) over the
// entry with storage-assigned fields stripped.
func hashEntry(prevHash string, e Entry) (string, error) {
	e.ID = ""
	e.PrevHash = ""
	e.Hash = ""
	body, err := canonical.Canonicalize(hashableEntry(e))
	if err != nil {
		return "", fmt.Errorf("canonicalize audit entry: %w", err)
	}
	sum := sha256.Sum256(append([]byte(prevHash+"|"), body...))
	return hex.EncodeToString(sum[:]), nil
}

// hashableEntry projects the fields covered by the hash. CreatedAt is
// included so backdating a stored entry breaks its link.
func hashableEntry(e Entry) map[string]any {
	m := map[string]any{
		"resource":  e.Resource,
		"action":    string(e.Action),
		"createdAt": e.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if e.ResourceID != "" {
		m["resourceId"] = e.ResourceID
	}
	if e.Actor != "" {
		m["actor"] = e.Actor
	}
	if e.Method != "" {
		m["method"] = e.Method
	}
	if e.StatusCode != 0 {
		m["statusCode"] = e.StatusCode
	}
	if e.IP != "" {
		m["ip"] = e.IP
	}
	if e.UserAgent != "" {
		m["userAgent"] = e.UserAgent
	}
	if e.Payload != nil {
		m["payload"] = e.Payload
	}
	if e.OldValue != nil {
		m["oldValue"] = e.OldValue
	}
	if e.NewValue != nil {
		m["newValue"] = e.NewValue
	}
	if len(e.Changes) > 0 {
		m["changes"] = e.Changes
	}
	if e.Justification != "" {
		m["justification"] = e.Justification
	}
	return m
}

func verifyEntries(entries []Entry, anchored bool) VerifyResult {
	result := VerifyResult{Total: len(entries), Valid: true}
	for i, e := range entries {
		if i == 0 && anchored && e.PrevHash != "" {
			return broken(result, i)
		}
		if i > 0 && e.PrevHash != entries[i-1].Hash {
			return broken(result, i)
		}
		computed, err := hashEntry(e.PrevHash, e)
		if err != nil || computed != e.Hash {
			return broken(result, i)
		}
	}
	return result
}

func verifyWindow(entries []Entry) VerifyResult {
	result := VerifyResult{Total: len(entries), Valid: true}
	lastHash := make(map[string]string)
	for i, e := range entries {
		scope := e.Resource + "\x00" + e.ResourceID
		if prev, seen := lastHash[scope]; seen && e.PrevHash != prev {
			return broken(result, i)
		}
		computed, err := hashEntry(e.PrevHash, e)
		if err != nil || computed != e.Hash {
			return broken(result, i)
		}
		lastHash[scope] = e.Hash
	}
	return result
}

func broken(r VerifyResult, index int) VerifyResult {
	r.Valid = false
	r.BreakIndex = &index
	return r
}
