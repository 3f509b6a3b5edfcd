// Package job owns the lifecycle of a single execution request.
//
// The Coordinator validates {language, code}, allocates a job token and a
// workspace, runs the configured sandbox strategy and turns the outcome into
// the one output string shown to the user. The workspace is released on
// every path out of Execute.
package job
