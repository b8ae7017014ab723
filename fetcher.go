package video_relay

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/alanbriolat/video-relay/generic"
)

var (
	ErrDuplicateFetcher = errors.New("duplicate fetcher name")
	ErrInvalidFetcher   = errors.New("invalid fetcher")
	ErrNoMatch          = errors.New("no fetcher matched the reference")
	ErrUnknownFetcher   = errors.New("unknown fetcher")
)

var (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

// MatchFunc inspects a source reference, returning the Media to fetch it with, or an error
// explaining why this fetcher cannot handle it.
type MatchFunc = func(string) (Media, error)

// A Fetcher matches any source reference it knows how to handle, giving Media that can fetch
// the video to a local file.
type Fetcher struct {
	Name  string
	Match MatchFunc
	// Priority of the matcher, lower (including negative) means matching earlier.
	Priority int16
}

func (f Fetcher) WithName(name string) Fetcher {
	f.Name = name
	return f
}

func (f Fetcher) WithPriority(priority int16) Fetcher {
	f.Priority = priority
	return f
}

// A FetcherMatch is the result of a Fetcher successfully matching a source reference.
type FetcherMatch struct {
	FetcherName string
	Media       Media
}

// A FetcherRegistry is a collection of Fetcher instances which can be used to try to match
// source references. Registration is expected to happen during init; Match may then be called
// from any goroutine.
type FetcherRegistry struct {
	fetchers   []*Fetcher
	fetcherMap map[string]*Fetcher
}

// Add registers a Fetcher with the FetcherRegistry. Fetcher.Name and Fetcher.Match must be
// set, and Fetcher.Name must be unique within the FetcherRegistry.
func (r *FetcherRegistry) Add(f Fetcher) error {
	if r.fetcherMap == nil {
		r.fetcherMap = make(map[string]*Fetcher)
	}
	if f.Name == "" || f.Match == nil {
		return ErrInvalidFetcher
	}
	if _, ok := r.fetcherMap[f.Name]; ok {
		return ErrDuplicateFetcher
	}
	r.fetcherMap[f.Name] = &f
	r.fetchers = append(r.fetchers, r.fetcherMap[f.Name])
	r.sortByPriority()
	return nil
}

// Create is a shortcut for Add(Fetcher{Name: ..., Match: ...}).
func (r *FetcherRegistry) Create(name string, f MatchFunc) error {
	return r.Add(Fetcher{
		Name:  name,
		Match: f,
	})
}

// CreatePriority is a shortcut for Add(Fetcher{Name: ..., Match: ..., Priority: ...}).
func (r *FetcherRegistry) CreatePriority(name string, f MatchFunc, priority int16) error {
	return r.Add(Fetcher{
		Name:     name,
		Match:    f,
		Priority: priority,
	})
}

// List returns the names of registered fetchers in priority order.
func (r *FetcherRegistry) List() []string {
	names := make([]string, 0, len(r.fetchers))
	for _, f := range r.fetchers {
		names = append(names, f.Name)
	}
	return names
}

// Match a source reference against each Fetcher in priority order. On failure the returned
// error aggregates every fetcher's reason for refusing the reference.
func (r *FetcherRegistry) Match(s string) (*FetcherMatch, error) {
	var result error
	for _, f := range r.fetchers {
		if media, err := f.Match(s); media != nil && err == nil {
			match := &FetcherMatch{
				FetcherName: f.Name,
				Media:       media,
			}
			return match, nil
		} else {
			result = multierror.Append(result, multierror.Prefix(err, fmt.Sprintf("[%v]", f.Name)))
		}
	}
	if result == nil {
		result = ErrNoMatch
	}
	return nil, result
}

// MatchWith will attempt to match a source reference against a specific fetcher.
func (r *FetcherRegistry) MatchWith(name string, s string) (*FetcherMatch, error) {
	if f, ok := r.fetcherMap[name]; ok {
		if media, err := f.Match(s); media != nil && err == nil {
			match := &FetcherMatch{
				FetcherName: f.Name,
				Media:       media,
			}
			return match, nil
		} else {
			return nil, ErrNoMatch
		}
	} else {
		return nil, ErrUnknownFetcher
	}
}

// MustAdd wraps Add but panics if there is an error.
func (r *FetcherRegistry) MustAdd(f Fetcher) {
	generic.Unwrap_(r.Add(f))
}

// MustCreate wraps Create but panics if there is an error.
func (r *FetcherRegistry) MustCreate(name string, f MatchFunc) {
	generic.Unwrap_(r.Create(name, f))
}

// MustCreatePriority wraps CreatePriority but panics if there is an error.
func (r *FetcherRegistry) MustCreatePriority(name string, f MatchFunc, priority int16) {
	generic.Unwrap_(r.CreatePriority(name, f, priority))
}

func (r *FetcherRegistry) sortByPriority() {
	sort.SliceStable(r.fetchers, func(i, j int) bool {
		return r.fetchers[i].Priority < r.fetchers[j].Priority
	})
}

var DefaultFetcherRegistry FetcherRegistry

// FetchError wraps any failure to produce a local artifact from a source reference.
type FetchError struct {
	Reference string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %v", e.Reference, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
