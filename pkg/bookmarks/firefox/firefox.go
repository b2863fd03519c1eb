// Package firefox reads bookmarks from a Firefox profile's places.sqlite.
package firefox

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/grovetools/marksync/pkg/bookmarks"

	_ "modernc.org/sqlite"
)

// moz_bookmarks.type values.
const (
	typeBookmark  = 1
	typeFolder    = 2
	typeSeparator = 3
)

// tagsGUID is the root of Firefox's tag folders, which are not bookmarks.
const tagsGUID = "tags________"

const bookmarksQuery = `
SELECT b.id, b.type, b.parent, b.position, COALESCE(b.title, ''),
       COALESCE(p.url, ''), COALESCE(b.dateAdded, 0), COALESCE(b.lastModified, 0),
       COALESCE(b.guid, '')
FROM moz_bookmarks b
LEFT JOIN moz_places p ON p.id = b.fk
ORDER BY b.parent, b.position`

// New returns a Source over the places.sqlite at path.
func New(path string, pollInterval time.Duration) (*bookmarks.FileSource, error) {
	return bookmarks.NewFileSource(bookmarks.FileSourceOptions{
		Files:        []string{path, path + "-wal"},
		PollInterval: pollInterval,
		Component:    "firefox",
		Load: func(ctx context.Context) (*bookmarks.Node, error) {
			return Load(ctx, path)
		},
	})
}

// Load reads the bookmark tree. Firefox keeps places.sqlite locked while
// running, so the database and its WAL are copied to a temp dir first.
func Load(ctx context.Context, path string) (*bookmarks.Node, error) {
	tmpDir, err := os.MkdirTemp("", "marksync-places-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dbCopy := filepath.Join(tmpDir, "places.sqlite")
	if err := copyFile(path, dbCopy); err != nil {
		return nil, fmt.Errorf("copy places database: %w", err)
	}
	if err := copyFile(path+"-wal", dbCopy+"-wal"); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("copy places WAL: %w", err)
	}

	db, err := openReadOnly(dbCopy)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	return Query(ctx, db)
}

// openReadOnly opens a places database copy with mode=ro. The copied WAL is
// still replayed, which immutable=1 would skip.
func openReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open places database: %w", err)
	}
	return db, nil
}

type row struct {
	id, typ, parent, position int64
	title, url, guid           string
	dateAdded, lastModified    int64
}

// Query builds the tree from an open places database. The row whose parent
// is 0 becomes the root; separators and the tags subtree are skipped.
func Query(ctx context.Context, db *sql.DB) (*bookmarks.Node, error) {
	rows, err := db.QueryContext(ctx, bookmarksQuery)
	if err != nil {
		return nil, fmt.Errorf("query moz_bookmarks: %w", err)
	}
	defer rows.Close()

	var all []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.id, &r.typ, &r.parent, &r.position, &r.title, &r.url,
			&r.dateAdded, &r.lastModified, &r.guid); err != nil {
			return nil, fmt.Errorf("scan moz_bookmarks: %w", err)
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate moz_bookmarks: %w", err)
	}

	nodes := make(map[int64]*bookmarks.Node, len(all))
	var root *bookmarks.Node
	skipped := make(map[int64]bool)

	for _, r := range all {
		if r.typ == typeSeparator || r.guid == tagsGUID || skipped[r.parent] {
			skipped[r.id] = true
			continue
		}
		n := &bookmarks.Node{
			ID:        strconv.FormatInt(r.id, 10),
			Title:     r.title,
			DateAdded: prTime(r.dateAdded),
		}
		switch r.typ {
		case typeBookmark:
			n.URL = r.url
		case typeFolder:
			n.Children = []*bookmarks.Node{}
			n.DateGroupModified = prTime(r.lastModified)
		default:
			skipped[r.id] = true
			continue
		}
		nodes[r.id] = n
		if r.parent == 0 {
			root = n
		}
	}
	if root == nil {
		return nil, fmt.Errorf("places database has no root folder")
	}

	// Rows are ordered by (parent, position), so appending keeps sibling order.
	// Index is the stored position, which counts skipped separators.
	for _, r := range all {
		n, ok := nodes[r.id]
		if !ok || n == root {
			continue
		}
		parent, ok := nodes[r.parent]
		if !ok {
			continue
		}
		n.ParentID = parent.ID
		n.Index = int(r.position)
		parent.Children = append(parent.Children, n)
	}
	return root, nil
}

// prTime converts PRTime (microseconds since the Unix epoch).
func prTime(us int64) time.Time {
	if us <= 0 {
		return time.Time{}
	}
	return time.UnixMicro(us).UTC()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
