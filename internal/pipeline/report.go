package pipeline

import (
	"slices"
	"strings"
	"time"

	"github.com/JYU-DI/timsync/internal/config"
)

// Action is what happened to a document's content.
type Action string

const (
	ActionUploaded  Action = "uploaded"
	ActionUnchanged Action = "unchanged"
)

// DocumentResult is the outcome for one document.
type DocumentResult struct {
	Path     string `json:"path"`
	Title    string `json:"title"`
	RemoteID int64  `json:"remote_id"`
	Action   Action `json:"action"`
	Assets   int    `json:"assets,omitempty"`
}

// Report summarizes a sync run.
type Report struct {
	Host       string `json:"host"`
	FolderRoot string `json:"folder_root"`
	// Items is the number of folders and documents ensured remotely.
	Items     int              `json:"items"`
	Uploaded  int              `json:"uploaded"`
	Unchanged int              `json:"unchanged"`
	Assets    int              `json:"assets"`
	Documents []DocumentResult `json:"documents"`
	Duration  time.Duration    `json:"-"`
}

func newReport(target config.Target, items int, docs []DocumentResult, d time.Duration) *Report {
	r := &Report{
		Host:       strings.TrimRight(target.Host, "/"),
		FolderRoot: strings.Trim(target.FolderRoot, "/"),
		Items:      items,
		Documents:  slices.Clone(docs),
		Duration:   d,
	}
	slices.SortFunc(r.Documents, func(a, b DocumentResult) int { return strings.Compare(a.Path, b.Path) })
	for _, doc := range r.Documents {
		switch doc.Action {
		case ActionUploaded:
			r.Uploaded++
		case ActionUnchanged:
			r.Unchanged++
		}
		r.Assets += doc.Assets
	}
	return r
}

// ViewURL is where the synchronized documents can be browsed.
func (r *Report) ViewURL() string {
	return r.Host + "/view/" + r.FolderRoot
}
