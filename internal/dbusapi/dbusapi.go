// Package dbusapi exposes the daemon's search/status/reindex surface
// over session D-Bus. spec.md treats this surface as an external
// collaborator whose contract — not its transport plumbing — is what
// matters, so this package is a thin adapter in front of
// internal/searchindex and internal/jobqueue.
package dbusapi

import (
	"github.com/godbus/dbus/v5"
	"github.com/sirupsen/logrus"

	"github.com/anyfind/anyfind/internal/searchindex"
)

const (
	busName      = "org.anyfind.Daemon"
	objectPath   = dbus.ObjectPath("/org/anyfind/Daemon")
	interfaceName = "org.anyfind.Daemon"
)

// Searcher is the subset of *searchindex.Lifecycle the D-Bus surface
// needs, kept as an interface so tests can exercise Service without a
// real bleve index.
type Searcher interface {
	Search(query string, topN int) ([]searchindex.Document, error)
}

// Reindexer triggers a forced rescan of a path, backing the Reindex
// D-Bus method.
type Reindexer interface {
	Reindex(path string) error
}

// Service is the D-Bus object exposed at objectPath. Its exported
// methods (capitalized, per godbus convention) form the bus contract.
type Service struct {
	idx    Searcher
	reidx  Reindexer
	status func() string
	log    *logrus.Entry
}

// NewService builds a Service ready to be exported onto a connection.
func NewService(idx Searcher, reidx Reindexer, status func() string, log *logrus.Entry) *Service {
	return &Service{idx: idx, reidx: reidx, status: status, log: log}
}

// searchResult mirrors searchindex.Document as a D-Bus-friendly
// struct; godbus marshals exported struct fields positionally.
type searchResult struct {
	FullPath      string
	FileName      string
	FileType      string
	FileExt       string
	ModifyTimeStr string
	FileSizeStr   string
}

// Search implements the bus method org.anyfind.Daemon.Search(query,
// topN) -> []searchResult.
func (s *Service) Search(query string, topN int32) ([]searchResult, *dbus.Error) {
	docs, err := s.idx.Search(query, int(topN))
	if err != nil {
		s.log.WithError(err).WithField("query", query).Warn("dbusapi: search failed")
		return nil, dbus.MakeFailedError(err)
	}
	out := make([]searchResult, 0, len(docs))
	for _, d := range docs {
		out = append(out, searchResult{
			FullPath:      d.FullPath,
			FileName:      d.FileName,
			FileType:      d.FileType,
			FileExt:       d.FileExt,
			ModifyTimeStr: d.ModifyTimeStr,
			FileSizeStr:   d.FileSizeStr,
		})
	}
	return out, nil
}

// Status implements org.anyfind.Daemon.Status() -> string.
func (s *Service) Status() (string, *dbus.Error) {
	return s.status(), nil
}

// Reindex implements org.anyfind.Daemon.Reindex(path) -> error.
func (s *Service) Reindex(path string) *dbus.Error {
	if err := s.reidx.Reindex(path); err != nil {
		s.log.WithError(err).WithField("path", path).Warn("dbusapi: reindex failed")
		return dbus.MakeFailedError(err)
	}
	return nil
}

// Export binds the Service onto conn at the well-known anyfind object
// path and requests the anyfind bus name.
func Export(conn *dbus.Conn, svc *Service) error {
	if err := conn.Export(svc, objectPath, interfaceName); err != nil {
		return err
	}
	reply, err := conn.RequestName(busName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return err
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return errBusNameTaken
	}
	return nil
}
