// Package main is the entry point for the runbox execution service.
//
// runbox accepts a single-file C++ or Python program over HTTP, compiles and
// runs it in a fresh workspace with a hard time limit, and returns the
// program's output. Programs run either inside a container (the default) or
// directly on the host, chosen once at startup by sandbox.mode or
// EXECUTION_MODE.
//
// The application uses Uber's fx framework for dependency injection and
// lifecycle management, with zap for structured logging and viper for
// configuration.
package main
