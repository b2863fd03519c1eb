// Package chrome reads bookmarks from a Chromium profile's Bookmarks file.
package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/grovetools/marksync/pkg/bookmarks"
)

// webkitEpochOffset is the number of microseconds between 1601-01-01 and
// 1970-01-01.
const webkitEpochOffset = 11644473600000000

// rootOrder fixes the order of the permanent folders under the synthetic root.
var rootOrder = []string{"bookmark_bar", "other", "synced"}

type file struct {
	Roots   map[string]*entry `json:"roots"`
	Version int               `json:"version"`
}

type entry struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Type         string   `json:"type"`
	URL          string   `json:"url,omitempty"`
	DateAdded    string   `json:"date_added,omitempty"`
	DateModified string   `json:"date_modified,omitempty"`
	Children     []*entry `json:"children,omitempty"`
}

// New returns a Source over the Bookmarks file at path.
func New(path string, pollInterval time.Duration) (*bookmarks.FileSource, error) {
	return bookmarks.NewFileSource(bookmarks.FileSourceOptions{
		Files:        []string{path},
		PollInterval: pollInterval,
		Component:    "chrome",
		Load: func(ctx context.Context) (*bookmarks.Node, error) {
			return Load(path)
		},
	})
}

// Load reads and parses the Bookmarks file at path.
func Load(path string) (*bookmarks.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read chrome bookmarks: %w", err)
	}
	return Parse(data)
}

// Parse converts a Bookmarks document into a tree under a synthetic root
// with id "0", as Chromium itself exposes it.
func Parse(data []byte) (*bookmarks.Node, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse chrome bookmarks: %w", err)
	}
	if f.Roots == nil {
		return nil, fmt.Errorf("parse chrome bookmarks: no roots")
	}

	root := &bookmarks.Node{ID: bookmarks.RootID, Children: []*bookmarks.Node{}}
	for _, key := range rootOrder {
		e, ok := f.Roots[key]
		if !ok || e == nil {
			continue
		}
		root.Children = append(root.Children, convert(e, bookmarks.RootID, len(root.Children)))
	}
	return root, nil
}

func convert(e *entry, parentID string, index int) *bookmarks.Node {
	n := &bookmarks.Node{
		ID:        e.ID,
		ParentID:  parentID,
		Index:     index,
		Title:     e.Name,
		DateAdded: webkitTime(e.DateAdded),
	}
	if e.Type == "url" {
		n.URL = e.URL
		return n
	}
	n.DateGroupModified = webkitTime(e.DateModified)
	n.Children = make([]*bookmarks.Node, 0, len(e.Children))
	for i, c := range e.Children {
		n.Children = append(n.Children, convert(c, e.ID, i))
	}
	return n
}

// webkitTime converts a WebKit timestamp (microseconds since 1601) to a
// time.Time. Zero and unparseable values yield the zero time.
func webkitTime(raw string) time.Time {
	if raw == "" || raw == "0" {
		return time.Time{}
	}
	us, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || us <= webkitEpochOffset {
		return time.Time{}
	}
	return time.UnixMicro(us - webkitEpochOffset).UTC()
}
