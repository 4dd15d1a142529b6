package dbusapi

import "errors"

// errBusNameTaken is returned by Export when another process already
// owns org.anyfind.Daemon on the session bus. This is a fatal startup
// condition per spec.md §7 ("cannot bind the D-Bus name").
var errBusNameTaken = errors.New("anyfind: dbus name org.anyfind.Daemon already owned")
