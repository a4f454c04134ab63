// Package treesync mirrors a flat list of document paths as folders and
// documents under a remote root folder.
package treesync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"

	"github.com/JYU-DI/timsync/internal/tim"
)

var (
	ErrSyncTargetDoesNotExist = errors.New("sync target does not exist")
	ErrSyncTargetNotAFolder   = errors.New("sync target is not a folder")
	ErrItemNameConflict       = errors.New("item name conflict")
	ErrItemTypeConflict       = errors.New("item type conflict")
)

// PathError records a structural problem with a remote path.
type PathError struct {
	Op   string
	Path string
	Err  error
}

func (e *PathError) Error() string {
	switch {
	case errors.Is(e.Err, ErrSyncTargetDoesNotExist):
		return fmt.Sprintf("The sync target path %s does not exist in TIM. Create the folder first in TIM and set appropriate permissions before syncing files.", e.Path)
	case errors.Is(e.Err, ErrSyncTargetNotAFolder):
		return fmt.Sprintf("The sync target path %s is not a folder in TIM. The target path must be a folder for sync to work.", e.Path)
	case errors.Is(e.Err, ErrItemNameConflict):
		return fmt.Sprintf("Multiple documents found for the same TIM path '%s'. Make sure there are no duplicate paths in the project.", e.Path)
	case errors.Is(e.Err, ErrItemTypeConflict):
		return fmt.Sprintf("There is a document and a folder with the same path '%s'. TIM requires that all items (folders, documents) have a unique path.", e.Path)
	}
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// Store is the part of tim.Store the synchronizer calls.
type Store interface {
	GetItemInfo(ctx context.Context, path string) (tim.ItemInfo, error)
	CreateOrUpdateItem(ctx context.Context, typ tim.ItemType, path, title string) (tim.ItemInfo, error)
}

// Document is a document to place in the remote tree. Path is relative to
// the root folder and slash separated.
type Document struct {
	Path  string
	Title string
}

// Result holds the outcome of Sync.
type Result struct {
	// IDs has the remote id of every input document, in input order.
	IDs []int64
	// Items lists every folder and document ensured, level by level.
	Items []tim.ItemInfo
}

// Synchronizer creates remote folders and documents below Root.
type Synchronizer struct {
	store       Store
	root        string
	host        string
	concurrency int
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithConcurrency bounds the number of concurrent calls within one level.
func WithConcurrency(n int) Option {
	return func(s *Synchronizer) { s.concurrency = n }
}

// WithHost sets the host shown in root verification errors.
func WithHost(host string) Option {
	return func(s *Synchronizer) { s.host = strings.TrimRight(host, "/") }
}

// New returns a Synchronizer for the remote folder root.
func New(store Store, root string, opts ...Option) *Synchronizer {
	s := &Synchronizer{store: store, root: strings.Trim(root, "/"), concurrency: 8}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Synchronizer) targetURL() string {
	if s.host == "" {
		return s.root
	}
	return s.host + "/" + s.root
}

// VerifyRoot checks that the root exists and is a folder.
func (s *Synchronizer) VerifyRoot(ctx context.Context) error {
	info, err := s.store.GetItemInfo(ctx, s.root)
	if errors.Is(err, tim.ErrNotFound) {
		return &PathError{Op: "verify", Path: s.targetURL(), Err: ErrSyncTargetDoesNotExist}
	}
	if err != nil {
		return fmt.Errorf("verify sync target: %w", err)
	}
	if info.Type != tim.Folder {
		return &PathError{Op: "verify", Path: s.targetURL(), Err: ErrSyncTargetNotAFolder}
	}
	return nil
}

// entry is a document with the part of its path still to be placed.
type entry struct {
	base string
	rest string
	doc  int
}

type level struct {
	prefix  string
	entries []entry
}

type job struct {
	typ   tim.ItemType
	path  string
	title string
}

// Sync creates the folders and documents of docs breadth first. All calls
// of one level finish before the next level starts, so a parent folder
// always exists before its children are created. The first failure aborts
// the run.
func (s *Synchronizer) Sync(ctx context.Context, docs []Document) (Result, error) {
	entries := make([]entry, len(docs))
	for i, d := range docs {
		entries[i] = entry{rest: d.Path, doc: i}
	}
	queue := []level{{prefix: s.root, entries: entries}}

	var (
		mu    sync.Mutex
		ids   = make(map[string]int64, len(docs))
		items []tim.ItemInfo
	)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		jobs, next, err := s.split(cur, docs)
		if err != nil {
			return Result{}, err
		}
		queue = append(queue, next...)

		p := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(max(s.concurrency, 1))
		for _, j := range jobs {
			p.Go(func(ctx context.Context) error {
				log.WithField("path", j.path).WithField("type", j.typ).Debug("sync: ensuring item")
				info, err := s.store.CreateOrUpdateItem(ctx, j.typ, j.path, j.title)
				if err != nil {
					return fmt.Errorf("create %s %s: %w", j.typ, j.path, err)
				}
				mu.Lock()
				ids[s.relative(j.path)] = info.ID
				items = append(items, info)
				mu.Unlock()
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return Result{}, err
		}
	}

	res := Result{IDs: make([]int64, len(docs)), Items: items}
	for i, d := range docs {
		id, ok := ids[d.Path]
		if !ok {
			panic(fmt.Sprintf("treesync: no remote id recorded for %q", d.Path))
		}
		res.IDs[i] = id
	}
	return res, nil
}

// split groups one level by its next path segment, checks for conflicts and
// returns the create calls for the level together with the child levels.
func (s *Synchronizer) split(cur level, docs []Document) ([]job, []level, error) {
	for i, e := range cur.entries {
		base, rest, _ := strings.Cut(e.rest, "/")
		cur.entries[i] = entry{base: base, rest: rest, doc: e.doc}
	}
	sort.SliceStable(cur.entries, func(i, j int) bool { return cur.entries[i].base < cur.entries[j].base })

	var (
		jobs []job
		next []level
	)
	for start := 0; start < len(cur.entries); {
		end := start + 1
		for end < len(cur.entries) && cur.entries[end].base == cur.entries[start].base {
			end++
		}
		group := cur.entries[start:end]
		start = end

		base := group[0].base
		itemPath := cur.prefix + "/" + base
		leaves := 0
		for _, e := range group {
			if e.rest == "" {
				leaves++
			}
		}
		folders := len(group) - leaves
		if len(group) > 1 {
			if leaves > 1 && folders == 0 {
				return nil, nil, &PathError{Op: "create", Path: s.relative(itemPath), Err: ErrItemNameConflict}
			}
			if leaves > 0 && folders > 0 {
				return nil, nil, &PathError{Op: "create", Path: s.relative(itemPath), Err: ErrItemTypeConflict}
			}
		}

		if leaves == 1 {
			jobs = append(jobs, job{typ: tim.Document, path: itemPath, title: docs[group[0].doc].Title})
			continue
		}
		children := make([]entry, len(group))
		copy(children, group)
		jobs = append(jobs, job{typ: tim.Folder, path: itemPath, title: base})
		next = append(next, level{prefix: itemPath, entries: children})
	}
	return jobs, next, nil
}

func (s *Synchronizer) relative(p string) string {
	return strings.TrimPrefix(p, s.root+"/")
}
