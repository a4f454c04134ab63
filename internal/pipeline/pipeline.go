// Package pipeline runs a full synchronization of a project to a sync
// target: collect, create the remote tree, publish the site data and push
// changed content.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"github.com/spf13/afero"

	"github.com/JYU-DI/timsync/internal/config"
	"github.com/JYU-DI/timsync/internal/globalctx"
	"github.com/JYU-DI/timsync/internal/processing"
	"github.com/JYU-DI/timsync/internal/project"
	"github.com/JYU-DI/timsync/internal/stamp"
	"github.com/JYU-DI/timsync/internal/templating"
	"github.com/JYU-DI/timsync/internal/tim"
	"github.com/JYU-DI/timsync/internal/treesync"
)

// ErrNoDocument is returned by Preview for files that produce no document.
var ErrNoDocument = errors.New("file does not produce a document")

// Pipeline synchronizes one project with one target.
type Pipeline struct {
	store       tim.Store
	project     *project.Project
	target      config.Target
	root        string
	concurrency int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithConcurrency overrides the project's [sync] concurrency.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// New returns a pipeline pushing proj to target through store.
func New(store tim.Store, proj *project.Project, target config.Target, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:       store,
		project:     proj,
		target:      target,
		root:        strings.Trim(target.FolderRoot, "/"),
		concurrency: proj.Config.Sync.Concurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.concurrency < 1 {
		p.concurrency = 1
	}
	return p
}

// Run performs the synchronization. Any failure aborts the run; documents
// already uploaded stay uploaded.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	logger := log.WithFields(log.Fields{"host": p.target.Host, "root": p.root})

	logger.Info("sync: logging in")
	password, err := config.ResolvePassword(p.target)
	if err != nil {
		return nil, err
	}
	if err := p.store.Login(ctx, p.target.Username, password); err != nil {
		return nil, fmt.Errorf("log in to %s: %w", p.target.Host, err)
	}

	tree := treesync.New(p.store, p.root,
		treesync.WithConcurrency(p.concurrency),
		treesync.WithHost(p.target.Host))
	if err := tree.VerifyRoot(ctx); err != nil {
		return nil, err
	}

	logger.Info("sync: collecting files")
	reg, docs, err := collect(p.project, p.root)
	if err != nil {
		return nil, err
	}
	logger.WithField("documents", len(docs)).Info("sync: creating documents")
	tsDocs := make([]treesync.Document, len(docs))
	for i, d := range docs {
		tsDocs[i] = treesync.Document{Path: d.Path, Title: d.Title}
	}
	tr, err := tree.Sync(ctx, tsDocs)
	if err != nil {
		return nil, err
	}
	for i, d := range docs {
		d.ID = tr.IDs[i]
	}

	site, err := siteContext(p.project, p.target, reg, docs)
	if err != nil {
		return nil, err
	}

	logger.Info("sync: uploading document contents")
	results, err := p.syncContents(ctx, site, reg, docs)
	if err != nil {
		return nil, fmt.Errorf("could not sync documents: %w", err)
	}

	report := newReport(p.target, len(tr.Items), results, time.Since(start))
	logger.WithFields(log.Fields{
		"uploaded":  report.Uploaded,
		"unchanged": report.Unchanged,
		"assets":    report.Assets,
	}).Info("sync: done")
	return report, nil
}

func (p *Pipeline) syncContents(ctx context.Context, site *globalctx.Context, reg *processing.Registry, docs []*processing.Document) ([]DocumentResult, error) {
	results := make([]DocumentResult, len(docs))
	pl := pool.New().WithContext(ctx).WithCancelOnError().WithFirstError().WithMaxGoroutines(p.concurrency)
	for i, doc := range docs {
		pl.Go(func(ctx context.Context) error {
			res, err := p.syncDocument(ctx, site, reg, doc)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := pl.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// syncDocument renders doc and uploads it unless the remote copy already
// carries the same fingerprint. Assets go first so the new markup never
// points at a missing file.
func (p *Pipeline) syncDocument(ctx context.Context, site *globalctx.Context, reg *processing.Registry, doc *processing.Document) (DocumentResult, error) {
	remotePath := p.root + "/" + doc.Path
	res := DocumentResult{Path: doc.Path, Title: doc.Title, RemoteID: doc.ID, Action: ActionUnchanged}

	prepared, err := reg.Render(site, doc)
	if err != nil {
		return res, err
	}
	current, err := p.store.DownloadMarkdown(ctx, remotePath)
	if err != nil {
		return res, fmt.Errorf("download %s: %w", remotePath, err)
	}
	if stamp.Matches(current, prepared.Markup) {
		log.WithField("path", remotePath).Debug("sync: unchanged")
		return res, nil
	}

	n, err := p.uploadAssets(ctx, remotePath, prepared.Uploads)
	if err != nil {
		return res, err
	}
	if err := p.store.UploadMarkdown(ctx, remotePath, stamp.Apply(prepared.Markup)); err != nil {
		return res, fmt.Errorf("upload %s: %w", remotePath, err)
	}
	log.WithFields(log.Fields{"path": remotePath, "assets": n}).Debug("sync: uploaded")
	res.Action = ActionUploaded
	res.Assets = n
	return res, nil
}

func (p *Pipeline) uploadAssets(ctx context.Context, folder string, uploads map[string]string) (int, error) {
	for _, local := range slices.Sorted(maps.Keys(uploads)) {
		data, err := afero.ReadFile(p.project.FS, local)
		if err != nil {
			return 0, fmt.Errorf("read asset %s: %w", local, err)
		}
		if err := p.store.UploadFile(ctx, folder, uploads[local], data); err != nil {
			return 0, fmt.Errorf("upload asset %s: %w", local, err)
		}
	}
	return len(uploads), nil
}

// collect walks the project and feeds every file to the processors.
func collect(proj *project.Project, root string) (*processing.Registry, []*processing.Document, error) {
	partials, err := templating.LoadPartials(proj.FS, proj.Root)
	if err != nil {
		return nil, nil, err
	}
	scripts, err := templating.LoadScripts(proj.FS, proj.Root)
	if err != nil {
		return nil, nil, err
	}
	reg := processing.NewRegistry(processing.Env{
		FS:         proj.FS,
		ProjectDir: proj.Root,
		FolderRoot: root,
		Partials:   partials,
		Scripts:    scripts,
	})

	sources, err := proj.Files()
	if err != nil {
		return nil, nil, err
	}
	for _, f := range sources {
		handled, err := reg.AddFile(f)
		if err != nil {
			return nil, nil, err
		}
		if !handled {
			log.WithField("path", f.Path()).Debug("sync: no processor")
		}
	}
	return reg, reg.Documents(), nil
}

// siteContext builds and freezes the data shared by every template.
func siteContext(proj *project.Project, target config.Target, reg *processing.Registry, docs []*processing.Document) (*globalctx.Context, error) {
	b := globalctx.NewBuilder()
	if err := b.LoadSiteData(proj.FS, proj.SiteDataPath()); err != nil {
		return nil, err
	}

	byUID := map[string]globalctx.DocInfo{}
	all := make([]globalctx.DocInfo, 0, len(docs))
	for _, d := range docs {
		info := globalctx.DocInfo{ID: d.ID, Path: d.Path, Title: d.Title}
		uid, err := reg.UID(d)
		if err != nil {
			return nil, err
		}
		if uid != "" {
			byUID[uid] = info
		}
		all = append(all, info)
	}

	b.SetDocuments(byUID, all).
		Set(globalctx.KeyHost, target.Host).
		Set(globalctx.KeyBasePath, strings.Trim(target.FolderRoot, "/")).
		Set(globalctx.KeyProjectDir, proj.Root).
		Merge(reg.Context())
	return b.Freeze(), nil
}

// Preview renders the document produced from the local file without
// talking to the remote store. Remote ids are all zero.
func Preview(proj *project.Project, target config.Target, localPath string) (*processing.Document, processing.Prepared, error) {
	reg, docs, err := collect(proj, strings.Trim(target.FolderRoot, "/"))
	if err != nil {
		return nil, processing.Prepared{}, err
	}
	doc, ok := reg.Lookup(docs, localPath)
	if !ok {
		return nil, processing.Prepared{}, fmt.Errorf("%w: %s", ErrNoDocument, localPath)
	}
	site, err := siteContext(proj, target, reg, docs)
	if err != nil {
		return nil, processing.Prepared{}, err
	}
	prepared, err := reg.Render(site, doc)
	if err != nil {
		return nil, processing.Prepared{}, err
	}
	return doc, prepared, nil
}
