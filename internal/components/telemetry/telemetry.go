package telemetry

import (
	"fmt"
	"strings"
)

// API is an abstraction over logging/metrics, every component of the bot reports through it
// so tests can assert that a failure was (or was not) reported.
//
// note: fault injection point
type API interface {
	// ReportBroken reports a component that has broken in a way that should be addressed.
	//
	// The `id` identifies which **component** broke, not which line of it. If the chrome
	// accessor fails to render a page inside `ChromeAccessor.Render`, the id is
	// `chrome_accessor.render`. Extra detail (the url, the wrapped error) goes into params.
	//
	// Formatting rules:
	// 1) all lowercase
	// 2) use underscores for large components
	// 3) use dashes for methods part of a larger component
	//
	// ScopedAPI takes care of the package prefix, so ids are usually just `<struct>.<method>`.
	ReportBroken(id string, params ...any)

	// ReportWarning reports something that is expected to happen now and then (a slow page,
	// a login redirect, a rejected chat) but should be looked at if it keeps happening.
	ReportWarning(id string, params ...any)

	// ReportDebug reports some debug information that will be ignored in production
	ReportDebug(msg string, params ...any)

	// ReportCount reports the current value of something (open dates, running loops) at the
	// current time, counts are points of data over time and should not be summed.
	ReportCount(id string, count int64)
}

// ScopedAPI prefixes every id with a namespace, usually the package name.
// Scoping an already scoped API joins the namespaces with a dot, unless the
// namespace is already its last segment.
type ScopedAPI struct {
	namespace string
	inner     API
}

func NewScopedAPI(namespace string, inner API) ScopedAPI {
	if parent, ok := inner.(ScopedAPI); ok {
		if parent.namespace == namespace || strings.HasSuffix(parent.namespace, "."+namespace) {
			return parent
		}
		return ScopedAPI{namespace: parent.namespace + "." + namespace, inner: parent.inner}
	}
	return ScopedAPI{namespace: namespace, inner: inner}
}

func (s ScopedAPI) scope(id string) string {
	return fmt.Sprintf("%s: %s", s.namespace, id)
}

func (s ScopedAPI) ReportBroken(id string, params ...any) {
	s.inner.ReportBroken(s.scope(id), params...)
}

func (s ScopedAPI) ReportWarning(id string, params ...any) {
	s.inner.ReportWarning(s.scope(id), params...)
}

func (s ScopedAPI) ReportDebug(msg string, params ...any) {
	s.inner.ReportDebug(s.scope(msg), params...)
}

func (s ScopedAPI) ReportCount(id string, count int64) {
	s.inner.ReportCount(s.scope(id), count)
}
