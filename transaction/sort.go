package transaction

import (
	"github.com/voidpkg/xbps-go/match"
	"github.com/voidpkg/xbps-go/model"
	"github.com/voidpkg/xbps-go/pkgdb"
)

// Sort implements spec §4.8's transaction sort: a deterministic
// reverse-insertion sort over a doubly-linked list, ensuring every
// package is processed after its installable run-dependencies and
// before its reverse dependencies. Removals are inserted at the head
// so they run first; everything else is inserted at the tail with its
// run-deps pulled in immediately before it.
func Sort(db *pkgdb.DB, entries []model.TransactionEntry) []model.TransactionEntry {
	byName := make(map[string]*node, len(entries))
	var head, tail *node

	insertHead := func(n *node) {
		n.next = head
		if head != nil {
			head.prev = n
		}
		head = n
		if tail == nil {
			tail = n
		}
	}
	insertTail := func(n *node) {
		n.prev = tail
		if tail != nil {
			tail.next = n
		}
		tail = n
		if head == nil {
			head = n
		}
	}
	moveBefore := func(n, before *node) {
		unlink(n, &head, &tail)
		n.prev = before.prev
		n.next = before
		if before.prev != nil {
			before.prev.next = n
		} else {
			head = n
		}
		before.prev = n
	}

	pending := make(map[string]model.TransactionEntry, len(entries))
	for _, entry := range entries {
		pending[entry.Package.Pkgname] = entry
	}
	var visit func(entry model.TransactionEntry)
	visit = func(entry model.TransactionEntry) {
		name := entry.Package.Pkgname
		if existing, ok := byName[name]; ok {
			existing.entry = entry
			return
		}

		n := &node{entry: entry}
		byName[name] = n

		if entry.Action == model.ActionRemove {
			insertHead(n)
			return
		}

		insertTail(n)
		for _, dep := range entry.Package.RunDepends {
			depName := match.PatternName(dep)
			if depName == name {
				continue // self-edge, dropped per spec §4.8
			}

			if d, queued := byName[depName]; queued {
				if d.prev == nil && d.next == nil && head != d {
					continue // out of the list while its own deps are placed: a cycle
				}
				if isBefore(d, n) {
					continue
				}
				moveBefore(d, n)
				continue
			}
			if pend, ok := pending[depName]; ok {
				// later in the input: place it (and its run-deps) first, then n
				unlink(n, &head, &tail)
				n.prev, n.next = nil, nil
				visit(pend)
				insertTail(n)
				continue
			}

			if installed, ok := db.GetPkg(depName); ok && match.Match(dep, installed.Pkgver) {
				// satisfied by an installed package outside the
				// transaction: no-op marker, nothing to order.
				continue
			}
			// Not yet in the list and not satisfied externally: the
			// caller's resolver should already have queued it: ignore
			// here since this pass only orders what's given.
		}
	}

	for _, entry := range entries {
		visit(entry)
	}

	out := make([]model.TransactionEntry, 0, len(entries))
	for n := head; n != nil; n = n.next {
		out = append(out, n.entry)
	}
	return out
}

type node struct {
	entry      model.TransactionEntry
	prev, next *node
}

func unlink(n *node, head, tail **node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		*head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		*tail = n.prev
	}
}

// isBefore reports whether n appears strictly before target in the
// list, walking forward from n.
func isBefore(n, target *node) bool {
	for cur := n; cur != nil; cur = cur.next {
		if cur == target {
			return true
		}
	}
	return false
}
