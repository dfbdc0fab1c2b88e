// Package log provides per-service loggers on top of logrus.
//
// Every logger obtained with ForService shares one underlying logrus
// instance, so SetOutput and SetJSON affect all of them. Lines carry a
// `service` field and a `[name>]` message prefix, which keeps text output
// grep-friendly:
//
//	api := log.ForService("api")
//	api.Infof("listening on %s", addr)
//	api.Debugf("request %s", id) // only when debug is enabled
//
// Debug logging can be enabled globally (SetGlobalDebug) or for a single
// service (EnableDebugFor / DisableDebugFor).
//
// All exported functions are safe for concurrent use.
package log
