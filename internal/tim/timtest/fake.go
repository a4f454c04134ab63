// Package timtest provides an in-memory tim.Store for tests.
package timtest

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"

	"github.com/JYU-DI/timsync/internal/tim"
)

// Operation names recorded by Fake.
const (
	OpLogin      = "login"
	OpInfo       = "info"
	OpCreate     = "create"
	OpSetTitle   = "set_title"
	OpDownload   = "download"
	OpUpload     = "upload"
	OpUploadFile = "upload_file"
)

// Call is one recorded store operation.
type Call struct {
	Op   string
	Path string
	Type tim.ItemType
}

type item struct {
	info     tim.ItemInfo
	markdown string
}

// Fake is a tim.Store keeping folders, documents and files in memory.
// Creating an item whose parent folder does not exist fails, so tests catch
// out-of-order creation.
type Fake struct {
	mu     sync.Mutex
	nextID int64
	items  map[string]*item
	files  map[string][]byte
	calls  []Call
	fail   map[string]error
}

var _ tim.Store = (*Fake)(nil)

// New returns an empty Fake.
func New() *Fake {
	return &Fake{nextID: 1, items: map[string]*item{}, files: map[string][]byte{}, fail: map[string]error{}}
}

// AddFolder creates a folder, with all missing parents, and returns its id.
func (f *Fake) AddFolder(p, title string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addLocked(tim.Folder, p, title, true)
}

// AddDocument creates a document with the given markup and returns its id.
func (f *Fake) AddDocument(p, title, markdown string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.addLocked(tim.Document, p, title, true)
	f.items[p].markdown = markdown
	return id
}

// FailOn makes the next operations op on path p return err.
func (f *Fake) FailOn(op, p string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail[op+" "+p] = err
}

func (f *Fake) addLocked(typ tim.ItemType, p, title string, parents bool) int64 {
	dir, name := path.Split(p)
	dir = path.Clean(dir)
	if dir == "." {
		dir = ""
	}
	if parents && dir != "" {
		if _, ok := f.items[dir]; !ok {
			f.addLocked(tim.Folder, dir, path.Base(dir), true)
		}
	}
	id := f.nextID
	f.nextID++
	f.items[p] = &item{info: tim.ItemInfo{ID: id, Type: typ, Title: title, Location: dir, ShortName: name}}
	return id
}

func (f *Fake) record(op, p string, typ tim.ItemType) error {
	f.calls = append(f.calls, Call{Op: op, Path: p, Type: typ})
	return f.fail[op+" "+p]
}

// Login accepts any credentials.
func (f *Fake) Login(_ context.Context, username, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.record(OpLogin, username, "")
}

// GetItemInfo implements tim.Store.
func (f *Fake) GetItemInfo(_ context.Context, p string) (tim.ItemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpInfo, p, ""); err != nil {
		return tim.ItemInfo{}, err
	}
	it, ok := f.items[p]
	if !ok {
		return tim.ItemInfo{}, &tim.StatusError{Op: "get item info", Path: p, Status: 404}
	}
	return it.info, nil
}

// CreateItem implements tim.Store.
func (f *Fake) CreateItem(_ context.Context, typ tim.ItemType, p, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpCreate, p, typ); err != nil {
		return err
	}
	if _, ok := f.items[p]; ok {
		return fmt.Errorf("create item %s: already exists", p)
	}
	if dir := path.Dir(p); dir != "." {
		parent, ok := f.items[dir]
		if !ok || parent.info.Type != tim.Folder {
			return fmt.Errorf("create item %s: parent folder %s does not exist", p, dir)
		}
	}
	f.addLocked(typ, p, title, false)
	return nil
}

// CreateOrUpdateItem implements tim.Store.
func (f *Fake) CreateOrUpdateItem(ctx context.Context, typ tim.ItemType, p, title string) (tim.ItemInfo, error) {
	return tim.CreateOrUpdate(ctx, f, typ, p, title)
}

// SetItemTitle implements tim.Store.
func (f *Fake) SetItemTitle(_ context.Context, p, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpSetTitle, p, ""); err != nil {
		return err
	}
	it, ok := f.items[p]
	if !ok {
		return &tim.StatusError{Op: "set title", Path: p, Status: 404}
	}
	it.info.Title = title
	return nil
}

func (f *Fake) documentLocked(p string) (*item, error) {
	it, ok := f.items[p]
	if !ok {
		return nil, &tim.StatusError{Op: "get item info", Path: p, Status: 404}
	}
	if it.info.Type != tim.Document {
		return nil, &tim.ItemTypeError{Path: p, Want: tim.Document, Got: it.info.Type}
	}
	return it, nil
}

// DownloadMarkdown implements tim.Store.
func (f *Fake) DownloadMarkdown(_ context.Context, p string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpDownload, p, ""); err != nil {
		return "", err
	}
	it, err := f.documentLocked(p)
	if err != nil {
		return "", err
	}
	return it.markdown, nil
}

// UploadMarkdown implements tim.Store.
func (f *Fake) UploadMarkdown(_ context.Context, p, markdown string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record(OpUpload, p, ""); err != nil {
		return err
	}
	it, err := f.documentLocked(p)
	if err != nil {
		return err
	}
	it.markdown = markdown
	return nil
}

// UploadFile implements tim.Store.
func (f *Fake) UploadFile(_ context.Context, folder, name string, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := folder + "/" + name
	if err := f.record(OpUploadFile, key, ""); err != nil {
		return err
	}
	f.files[key] = append([]byte(nil), data...)
	return nil
}

// Item returns the stored info of path.
func (f *Fake) Item(p string) (tim.ItemInfo, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it, ok := f.items[p]
	if !ok {
		return tim.ItemInfo{}, false
	}
	return it.info, true
}

// Markdown returns the stored markup of the document at path.
func (f *Fake) Markdown(p string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it, ok := f.items[p]; ok {
		return it.markdown
	}
	return ""
}

// File returns an uploaded asset.
func (f *Fake) File(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	return data, ok
}

// Files lists the keys of all uploaded assets, sorted.
func (f *Fake) Files() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.files))
	for k := range f.files {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Calls returns a copy of the recorded operations in call order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallsOf returns the recorded operations of kind op.
func (f *Fake) CallsOf(op string) []Call {
	var out []Call
	for _, c := range f.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Reset forgets the recorded calls but keeps the stored items.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
