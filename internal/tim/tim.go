// Package tim talks to a TIM document store: a hierarchy of folders and
// documents addressed by slash separated paths, each with a numeric id.
package tim

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ItemType distinguishes folders from documents.
type ItemType string

const (
	Folder   ItemType = "folder"
	Document ItemType = "document"
)

// ItemInfo describes a remote item.
type ItemInfo struct {
	ID        int64    `json:"id"`
	Type      ItemType `json:"type"`
	Title     string   `json:"title"`
	Location  string   `json:"location"`
	ShortName string   `json:"short_name"`
	LangID    *string  `json:"lang_id"`
}

// Path joins the location and short name of the item.
func (i ItemInfo) Path() string {
	if i.Location == "" {
		return i.ShortName
	}
	return i.Location + "/" + i.ShortName
}

var (
	// ErrNotFound is matched by errors for items that do not exist.
	ErrNotFound = errors.New("item not found")
	// ErrNoXSRFToken means the host did not hand out a CSRF token.
	ErrNoXSRFToken = errors.New("no XSRF token received from host")
	// ErrInvalidLogin means the credentials were rejected.
	ErrInvalidLogin = errors.New("invalid username or password")
)

// StatusError is a non-success HTTP response to an operation on a path.
type StatusError struct {
	Op     string
	Path   string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Op, e.Path, e.Status, http.StatusText(e.Status))
}

// Unwrap exposes ErrNotFound for 404 responses.
func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

// ItemTypeError reports an item whose remote type differs from the one the
// operation needs.
type ItemTypeError struct {
	Path string
	Want ItemType
	Got  ItemType
}

func (e *ItemTypeError) Error() string {
	return fmt.Sprintf("item %s is not a %s, but a %s", e.Path, e.Want, e.Got)
}

// Store is the remote document store used by the sync pipeline.
type Store interface {
	Login(ctx context.Context, username, password string) error
	GetItemInfo(ctx context.Context, path string) (ItemInfo, error)
	CreateItem(ctx context.Context, typ ItemType, path, title string) error
	CreateOrUpdateItem(ctx context.Context, typ ItemType, path, title string) (ItemInfo, error)
	SetItemTitle(ctx context.Context, path, title string) error
	DownloadMarkdown(ctx context.Context, path string) (string, error)
	UploadMarkdown(ctx context.Context, path, markdown string) error
	UploadFile(ctx context.Context, folder, name string, data []byte) error
}

// ItemAPI is the subset of Store that CreateOrUpdate needs.
type ItemAPI interface {
	GetItemInfo(ctx context.Context, path string) (ItemInfo, error)
	CreateItem(ctx context.Context, typ ItemType, path, title string) error
	SetItemTitle(ctx context.Context, path, title string) error
}

// CreateOrUpdate makes sure an item of type typ exists at path with the given
// title. An existing item of the same type is reused and retitled; one of a
// different type is an *ItemTypeError.
func CreateOrUpdate(ctx context.Context, api ItemAPI, typ ItemType, path, title string) (ItemInfo, error) {
	info, err := api.GetItemInfo(ctx, path)
	switch {
	case err == nil:
		if info.Type != typ {
			return ItemInfo{}, &ItemTypeError{Path: path, Want: typ, Got: info.Type}
		}
		if info.Title != title {
			if err := api.SetItemTitle(ctx, path, title); err != nil {
				return ItemInfo{}, err
			}
			info.Title = title
		}
		return info, nil
	case errors.Is(err, ErrNotFound):
		if err := api.CreateItem(ctx, typ, path, title); err != nil {
			return ItemInfo{}, err
		}
		return api.GetItemInfo(ctx, path)
	default:
		return ItemInfo{}, err
	}
}
