package disk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/mschuler/nwebdav/internal/bufpool"
	"github.com/mschuler/nwebdav/pkg/dav"
	"github.com/mschuler/nwebdav/pkg/lock"
	"github.com/mschuler/nwebdav/pkg/props"
	"github.com/mschuler/nwebdav/pkg/store"
)

// Registries are built once per resource type, not per resource, and are
// shared by every instance. The disk property surface maps entirely onto
// native file attributes; there is no side-channel metadata.

var itemRegistry = props.NewRegistry(
	append(commonDescriptors(false),
		props.Descriptor{
			Name: props.Name{Space: dav.Namespace, Local: "getcontentlength"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				info, err := statOf(r)
				if err != nil {
					return nil, err
				}
				return strconv.FormatInt(info.Size(), 10), nil
			},
		},
		props.Descriptor{
			Name: props.Name{Space: dav.Namespace, Local: "getcontenttype"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				return contentTypeOf(r.Path()), nil
			},
		},
		props.Descriptor{
			Name:      props.Name{Space: dav.Namespace, Local: "getetag"},
			Expensive: true,
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				return etagOf(r)
			},
		},
	)...,
)

var collectionRegistry = props.NewRegistry(commonDescriptors(true)...)

// commonDescriptors returns the descriptors shared by both resource
// types.
func commonDescriptors(isCollection bool) []props.Descriptor {
	return []props.Descriptor{
		{
			Name: props.Name{Space: dav.Namespace, Local: "displayname"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				return r.DisplayName(), nil
			},
		},
		{
			Name: props.Name{Space: dav.Namespace, Local: "resourcetype"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				return dav.ResourceType{Collection: isCollection}, nil
			},
		},
		{
			Name: props.Name{Space: dav.Namespace, Local: "getlastmodified"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				info, err := statOf(r)
				if err != nil {
					return nil, err
				}
				return info.ModTime().UTC().Format(http.TimeFormat), nil
			},
			Set: setLastModified,
		},
		{
			// The filesystem does not track a creation instant
			// portably; the modification time is the closest truthful
			// stand-in.
			Name: props.Name{Space: dav.Namespace, Local: "creationdate"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				info, err := statOf(r)
				if err != nil {
					return nil, err
				}
				return info.ModTime().UTC().Format(time.RFC3339), nil
			},
		},
		{
			Name: props.Name{Space: dav.Namespace, Local: "supportedlock"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				return dav.SupportedLock{}, nil
			},
		},
		{
			Name: props.Name{Space: dav.Namespace, Local: "lockdiscovery"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				dr, ok := r.(diskResource)
				if !ok {
					return []lock.Lock{}, nil
				}
				return dr.Locks().ActiveLocks(ctx, r.Path())
			},
		},
		{
			Name: props.Name{Space: dav.Namespace, Local: "ishidden"},
			Get: func(ctx context.Context, r props.Resource) (any, error) {
				if strings.HasPrefix(r.DisplayName(), ".") {
					return "1", nil
				}
				return "0", nil
			},
		},
	}
}

// diskResource is the slice of the disk resource surface the property
// getters need beyond props.Resource.
type diskResource interface {
	props.Resource
	Locks() lock.Manager
	absPath() string
}

func (r *resource) absPath() string {
	return r.fsPath
}

func statOf(r props.Resource) (os.FileInfo, error) {
	dr, ok := r.(diskResource)
	if !ok {
		return nil, &store.StoreError{
			Code:    store.ErrInternal,
			Message: "resource is not disk-backed",
			Path:    r.Path(),
		}
	}
	info, err := os.Stat(dr.absPath())
	if err != nil {
		return nil, mapOSError("stat", r.Path(), err)
	}
	return info, nil
}

// contentTypeOf derives the media type from the file extension and falls
// back to the octet-stream default when the extension is unknown.
func contentTypeOf(treePath string) string {
	ext := strings.TrimPrefix(path.Ext(treePath), ".")
	if ext != "" {
		if t := filetype.GetType(strings.ToLower(ext)); t != types.Unknown {
			return t.MIME.Value
		}
	}
	return "application/octet-stream"
}

// etagOf computes a strong, quoted entity tag by hashing the full
// content. This is the one deliberately expensive property: it is only
// computed when a client names it explicitly.
func etagOf(r props.Resource) (string, error) {
	dr, ok := r.(diskResource)
	if !ok {
		return "", &store.StoreError{
			Code:    store.ErrInternal,
			Message: "resource is not disk-backed",
			Path:    r.Path(),
		}
	}

	f, err := os.Open(dr.absPath())
	if err != nil {
		return "", mapOSError("etag", r.Path(), err)
	}
	defer f.Close()

	h := sha256.New()
	buf := bufpool.Get()
	_, err = io.CopyBuffer(h, f, buf)
	bufpool.Put(buf)
	if err != nil {
		return "", mapOSError("etag", r.Path(), err)
	}
	return `"` + hex.EncodeToString(h.Sum(nil)) + `"`, nil
}

// setLastModified applies a client-supplied getlastmodified value to the
// file's timestamps. Both HTTP-date and RFC 3339 forms are accepted.
func setLastModified(ctx context.Context, r props.Resource, value string) error {
	dr, ok := r.(diskResource)
	if !ok {
		return &store.StoreError{
			Code:    store.ErrInternal,
			Message: "resource is not disk-backed",
			Path:    r.Path(),
		}
	}

	t, err := http.ParseTime(value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
	}
	if err != nil {
		return &store.StoreError{
			Code:    store.ErrForbidden,
			Message: "unparseable timestamp value",
			Path:    r.Path(),
		}
	}

	if err := os.Chtimes(dr.absPath(), t, t); err != nil {
		return mapOSError("set-mtime", r.Path(), err)
	}
	return nil
}
