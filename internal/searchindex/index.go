package searchindex

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sirupsen/logrus"

	"github.com/anyfind/anyfind/internal/errs"
	"github.com/anyfind/anyfind/internal/tokenize"
)

// indexVersion is bumped whenever the document mapping or tokenizer
// changes in a way that makes an on-disk index unreadable by a newer
// build; a mismatch forces a wipe-and-rebuild per spec.md §4.C9.
const indexVersion = "anyfind-index-v1"

const versionInternalKey = "anyfind_index_version"

const prefixWalkPageSize = 256

// maxPrefixResults bounds a single PrefixWalk call so a pathological
// directory can't hold the writer goroutine forever; spec.md doesn't
// name a bound, but an unbounded walk is still a liveness risk.
const maxPrefixResults = 1 << 20

// Index is a single bleve index opened against one on-disk directory.
// spec.md §4.C8 describes a writer plus a committed reader and a
// lazily-reopened NRT reader; bleve's scorch index already serves
// every Search call against the latest indexed state from the same
// handle used to write, so the writer and the NRT reader are the same
// underlying *Index here — there is nothing to separately reopen.
type Index struct {
	path    string
	buckets BucketMap
	log     *logrus.Entry

	mu sync.RWMutex
	bi bleve.Index
}

// openIndex opens dir if it already holds an index, creates a fresh
// one if the directory is absent, and wipes-and-rebuilds if opening
// fails for any other reason (corruption), per spec.md §4.C8's
// rebuild-on-corruption rule.
func openIndex(dir string, buckets BucketMap, log *logrus.Entry) (*Index, error) {
	bi, err := bleve.Open(dir)
	switch {
	case err == nil:
		return &Index{path: dir, buckets: buckets, log: log, bi: bi}, nil
	case errors.Is(err, bleve.ErrorIndexPathDoesNotExist):
		bi, err = newBleveIndex(dir)
		if err != nil {
			return nil, fmt.Errorf("anyfind: create index at %s: %w", dir, err)
		}
		return &Index{path: dir, buckets: buckets, log: log, bi: bi}, nil
	default:
		log.WithError(err).WithField("dir", dir).Warn("searchindex: open failed, rebuilding")
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			return nil, fmt.Errorf("%w: open failed (%v) and cleanup failed (%v)", errs.ErrIndexCorrupt, err, rmErr)
		}
		bi, err = newBleveIndex(dir)
		if err != nil {
			return nil, fmt.Errorf("anyfind: rebuild index at %s: %w", dir, err)
		}
		return &Index{path: dir, buckets: buckets, log: log, bi: bi}, nil
	}
}

func newBleveIndex(dir string) (bleve.Index, error) {
	m, err := buildIndexMapping()
	if err != nil {
		return nil, err
	}
	return bleve.New(dir, m)
}

// verifyVersion checks the internal version marker set by
// ensureVersionDoc. A missing or stale marker means the on-disk index
// predates this build's schema and must be treated as corrupt.
func (idx *Index) verifyVersion() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	v, err := idx.bi.GetInternal([]byte(versionInternalKey))
	if err != nil {
		return fmt.Errorf("anyfind: read version marker: %w", err)
	}
	if string(v) != indexVersion {
		return fmt.Errorf("%w: version marker is %q, want %q", errs.ErrIndexCorrupt, v, indexVersion)
	}
	return nil
}

// ensureVersionDoc stamps the current index version, per spec.md
// §4.C8's "after a successful commit, a version document is ensured
// present".
func (idx *Index) ensureVersionDoc() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bi.SetInternal([]byte(versionInternalKey), []byte(indexVersion))
}

// Add indexes (or re-indexes) the file at path, per spec.md §4.C8's
// "update-or-insert by full_path" rule — bleve's Index call already
// replaces any prior document sharing the same ID.
func (idx *Index) Add(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Vanished between the event firing and the job draining;
			// nothing to index, not an error.
			return nil
		}
		return fmt.Errorf("anyfind: stat %s: %w", path, err)
	}
	doc := BuildDocument(path, info, idx.buckets)

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if err := idx.bi.Index(path, doc); err != nil {
		return fmt.Errorf("anyfind: index %s: %w", path, err)
	}
	return nil
}

// Remove deletes the document for path, if any.
func (idx *Index) Remove(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if err := idx.bi.Delete(path); err != nil {
		return fmt.Errorf("anyfind: delete %s: %w", path, err)
	}
	return nil
}

// Update removes src and (re-)adds dst, so dst's document inherits
// dst's own stat info rather than src's, per spec.md §8's round-trip
// law.
func (idx *Index) Update(src, dst string) error {
	if err := idx.Remove(src); err != nil {
		return err
	}
	return idx.Add(dst)
}

// ExistsPath reports whether path already has a document, used by C5
// to decide whether a path is already indexed.
func (idx *Index) ExistsPath(path string) (bool, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, err := idx.bi.Document(path)
	if err != nil {
		return false, fmt.Errorf("anyfind: lookup %s: %w", path, err)
	}
	return doc != nil, nil
}

// PrefixWalk returns every indexed full_path starting with prefix.
// Lifecycle.Refresh calls it with an empty prefix to list every
// document. Update and Remove do not call it: they act on the single
// path given, so documents under a renamed or removed directory keep
// their old paths.
func (idx *Index) PrefixWalk(prefix string) ([]string, error) {
	q := query.NewPrefixQuery(prefix)
	q.SetField("full_path")

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []string
	from := 0
	for {
		req := bleve.NewSearchRequestOptions(q, prefixWalkPageSize, from, false)
		res, err := idx.bi.Search(req)
		if err != nil {
			return nil, fmt.Errorf("anyfind: prefix walk %s: %w", prefix, err)
		}
		for _, hit := range res.Hits {
			out = append(out, hit.ID)
		}
		if len(res.Hits) < prefixWalkPageSize || len(out) >= maxPrefixResults {
			break
		}
		from += prefixWalkPageSize
	}
	return out, nil
}

// Search tokenizes q through the same tokenizer used at index time
// and matches against file_name and pinyin, returning the top-N
// documents. Per spec.md §4.C8, documents matching more query tokens
// must outrank those matching fewer; a disjunction of per-token match
// queries gives bleve's own additive scoring that property without a
// custom scorer.
func (idx *Index) Search(q string, topN int) ([]Document, error) {
	terms := tokenize.Tokens(q)
	if len(terms) == 0 {
		return nil, nil
	}
	clauses := make([]query.Query, 0, len(terms))
	for _, t := range terms {
		fileNameMatch := query.NewMatchQuery(t)
		fileNameMatch.SetField("file_name")
		pinyinMatch := query.NewMatchQuery(t)
		pinyinMatch.SetField("pinyin")
		clauses = append(clauses, query.NewDisjunctionQuery([]query.Query{fileNameMatch, pinyinMatch}))
	}
	disj := query.NewDisjunctionQuery(clauses)

	if topN <= 0 {
		topN = 20
	}
	req := bleve.NewSearchRequestOptions(disj, topN, 0, false)
	req.Fields = []string{"file_name", "file_type", "file_ext", "modify_time", "file_size",
		"modify_time_str", "file_size_str", "pinyin", "is_hidden"}
	req.SortBy([]string{"-_score"})

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	res, err := idx.bi.Search(req)
	if err != nil {
		return nil, fmt.Errorf("anyfind: search %q: %w", q, err)
	}

	docs := make([]Document, 0, len(res.Hits))
	for _, hit := range res.Hits {
		docs = append(docs, documentFromFields(hit.ID, hit.Fields))
	}
	return docs, nil
}

// DocCount reports the number of documents currently in the index,
// used by internal/metrics.
func (idx *Index) DocCount() (uint64, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	n, err := idx.bi.DocCount()
	if err != nil {
		return 0, fmt.Errorf("anyfind: doc count: %w", err)
	}
	return n, nil
}

// Close closes the underlying bleve index.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.bi == nil {
		return nil
	}
	err := idx.bi.Close()
	idx.bi = nil
	return err
}
