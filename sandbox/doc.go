// Package sandbox provides the execution engine for untrusted code.
//
// It owns the pieces a single job goes through: the WorkspaceManager hands
// out an exclusive directory, BuildCommand turns a language into one shell
// invocation, a Strategy (containerized or direct-host, chosen once at
// startup) runs that invocation through a CommandRunner, and the result comes
// back as an Outcome whose Kind tells success, execution failure, timeout and
// missing toolchain apart.
//
// Usage:
//
//	strategy, err := sandbox.NewStrategy(logger, cfg)
//	ws, err := workspaces.Acquire(token)
//	defer workspaces.Release(ws)
//	cmd, err := sandbox.BuildCommand(sandbox.LanguagePython, strategy.Toolchain())
//	err = workspaces.Write(ws, cmd.FileName, code)
//	outcome, err := strategy.Execute(ctx, ws, cmd)
package sandbox
