// Package inmemdb provides mutex-guarded in-memory repositories.
// They back the test suites and local hacking without a PostgreSQL instance,
// and mirror the SQL repositories' semantics (including occupancy recounts).
package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/elimu-cd/elimu/core"
	"github.com/elimu-cd/elimu/core/catalog"
	"github.com/elimu-cd/elimu/core/enrollment"
	"github.com/elimu-cd/elimu/core/liveclass"
	"github.com/elimu-cd/elimu/core/material"
	"github.com/elimu-cd/elimu/core/rating"
	"github.com/elimu-cd/elimu/core/user"
)

// DB holds all tables behind a single lock; cross-table operations
// (enroll, join, rate) stay consistent without row locks.
type DB struct {
	sync.RWMutex

	users     map[string]*user.User
	blacklist map[string]time.Time // jti -> expires_at

	categories map[string]*catalog.Category
	courses    map[string]*catalog.Course

	enrollments map[string]*enrollment.Enrollment
	ratings     map[string]*rating.Rating

	classes      map[string]*liveclass.LiveClass
	participants map[string]*liveclass.Participant
	messages     map[string]*liveclass.Message
	recordings   map[string]*liveclass.Recording

	materials map[string]*material.Material
	folders   map[string]*material.Folder
	accesses  []*material.Access
}

func Open() *DB {
	return &DB{
		users:        make(map[string]*user.User),
		blacklist:    make(map[string]time.Time),
		categories:   make(map[string]*catalog.Category),
		courses:      make(map[string]*catalog.Course),
		enrollments:  make(map[string]*enrollment.Enrollment),
		ratings:      make(map[string]*rating.Rating),
		classes:      make(map[string]*liveclass.LiveClass),
		participants: make(map[string]*liveclass.Participant),
		messages:     make(map[string]*liveclass.Message),
		recordings:   make(map[string]*liveclass.Recording),
		materials:    make(map[string]*material.Material),
		folders:      make(map[string]*material.Folder),
	}
}

// matches does a case-insensitive substring match over the given fields.
func matches(search string, fields ...string) bool {
	if search == "" {
		return true
	}
	search = strings.ToLower(search)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), search) {
			return true
		}
	}
	return false
}

// paginate returns the [lo, hi) bounds of the requested page.
func paginate(n int, pg core.Pagination) (int, int) {
	if pg.Size <= 0 {
		return 0, n
	}
	lo := pg.Offset()
	if lo > n {
		lo = n
	}
	hi := lo + pg.Limit()
	if hi > n {
		hi = n
	}
	return lo, hi
}

// sortBy applies the first ordering entry, or the fallback when none is given.
// The less function receives the ordering field and must report i < j for an
// ascending comparison of that field.
func sortBy(n int, ordering []core.DBOrdering, fallback core.DBOrdering, less func(field string, i, j int) bool, swap func(i, j int)) {
	ord := fallback
	if len(ordering) > 0 {
		ord = ordering[0]
	}
	sort.Stable(sortable{n, func(i, j int) bool {
		if ord.Ascending {
			return less(ord.Field, i, j)
		}
		return less(ord.Field, j, i)
	}, swap})
}

type sortable struct {
	n    int
	less func(i, j int) bool
	swap func(i, j int)
}

func (s sortable) Len() int           { return s.n }
func (s sortable) Less(i, j int) bool { return s.less(i, j) }
func (s sortable) Swap(i, j int)      { s.swap(i, j) }
