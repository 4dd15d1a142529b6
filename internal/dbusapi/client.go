package dbusapi

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ClientSearchResult mirrors searchResult for callers outside this
// package that dial the running daemon rather than embedding a Service.
type ClientSearchResult struct {
	FullPath      string
	FileName      string
	FileType      string
	FileExt       string
	ModifyTimeStr string
	FileSizeStr   string
}

// Dial connects to the session bus and returns a proxy for the running
// daemon's object, for use by the CLI subcommands.
func Dial() (*dbus.Object, *dbus.Conn, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, nil, fmt.Errorf("anyfind: connect session bus: %w", err)
	}
	return conn.Object(busName, objectPath), conn, nil
}

// CallSearch invokes the bus's Search method.
func CallSearch(obj *dbus.Object, query string, topN int32) ([]ClientSearchResult, error) {
	var out []ClientSearchResult
	call := obj.Call(interfaceName+".Search", 0, query, topN)
	if call.Err != nil {
		return nil, call.Err
	}
	if err := call.Store(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// CallStatus invokes the bus's Status method.
func CallStatus(obj *dbus.Object) (string, error) {
	var out string
	call := obj.Call(interfaceName+".Status", 0)
	if call.Err != nil {
		return "", call.Err
	}
	if err := call.Store(&out); err != nil {
		return "", err
	}
	return out, nil
}

// CallReindex invokes the bus's Reindex method.
func CallReindex(obj *dbus.Object, path string) error {
	return obj.Call(interfaceName+".Reindex", 0, path).Err
}
