// Package diff turns the raw unified-diff text of a keyhouse commit range
// into a deduplicated set of change records.
//
// Kind classification checks for the "new file mode" / "deleted file mode"
// markers anywhere in the diff text, not just inside the matched path's own
// hunk. A diff that adds one path and deletes another can therefore
// misclassify. Known limitation, kept deliberately: downstream hosts depend
// on the current classification.
package diff

import (
	"regexp"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Kind classifies one change record. It decides which ref content is read
// from and which identity operation the driver invokes.
type Kind int

const (
	Modified Kind = iota
	Added
	Deleted
	UserAdded
	UserModified
	UserDeleted
)

var kindNames = map[Kind]string{
	Modified:     "modified",
	Added:        "added",
	Deleted:      "deleted",
	UserAdded:    "addeduser",
	UserModified: "modifieduser",
	UserDeleted:  "deleteduser",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Ref picks the commit content is resolved at. Deletions read the pre-change
// state at the base commit, because the file no longer exists at head and the
// username being removed must be recovered. Everything else reads the tracked
// branch pointer.
func (k Kind) Ref(baseCommit, branch string) string {
	if k == Deleted || k == UserDeleted {
		return baseCommit
	}
	return branch
}

// Record is one normalized unit of declared-state change. Provider is the
// first access-path segment and is matched against the local host identity;
// Project is the second segment and names the OS group. Names-tree paths get
// Provider "" and Project "names", so they never match any host.
type Record struct {
	Project  string
	Provider string
	Hash     string
	Kind     Kind
}

// Key identifies a record for deduplication.
type Key struct {
	Project  string
	Provider string
	Hash     string
}

func (r Record) Key() Key {
	return Key{Project: r.Project, Provider: r.Provider, Hash: r.Hash}
}

var (
	reAccess = regexp.MustCompile(`diff --git a/(access/([^/]+)/([^/]+)/([\w\d]+))`)
	reNames  = regexp.MustCompile(`diff --git a/(names/([\w\d]+))`)
)

// Parse scans diff text line by line and returns one record per distinct
// change key. The first classification for a key wins; later diff lines for
// the same key are ignored. Order of the result is unspecified; callers must
// not depend on diff line order. Zero matching lines yield an empty slice.
func Parse(diffText string) []Record {
	hasNewFile := strings.Contains(diffText, "new file mode")
	hasDeletedFile := strings.Contains(diffText, "deleted file mode")

	seen := mapset.NewThreadUnsafeSet[Key]()
	records := make([]Record, 0)

	for _, line := range strings.Split(diffText, "\n") {
		if caps := reAccess.FindStringSubmatch(line); caps != nil {
			fullPath := caps[1]

			kind := Modified
			switch {
			case hasNewFile && strings.Contains(line, fullPath):
				kind = Added
			case hasDeletedFile && strings.Contains(line, fullPath):
				kind = Deleted
			}

			rec := Record{
				Provider: caps[2],
				Project:  caps[3],
				Hash:     caps[4],
				Kind:     kind,
			}
			if seen.Add(rec.Key()) {
				records = append(records, rec)
			}
		} else if caps := reNames.FindStringSubmatch(line); caps != nil {
			fullPath := caps[1]

			kind := UserModified
			if hasDeletedFile && strings.Contains(line, fullPath) {
				kind = UserDeleted
			}

			rec := Record{
				Provider: "",
				Project:  "names",
				Hash:     caps[2],
				Kind:     kind,
			}
			if seen.Add(rec.Key()) {
				records = append(records, rec)
			}
		}
	}

	return records
}
