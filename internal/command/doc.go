// Package command runs external programs for coapprobe.
//
// A [Runner] executes one argument vector as a child process, measures the
// wall-clock time spent in the process, captures its standard output and then
// holds the caller for an optional cool-down period:
//
//	res, err := command.ExecRunner{}.Run(ctx, []string{"coap-client", "-m", "get", uri}, time.Second)
//
// Arguments are handed to the process as-is. Nothing is split on whitespace and
// no shell is involved, so payloads containing spaces or quotes arrive intact.
//
// # Errors
//
// A program that cannot be started yields an [*InvocationError]. Output that is
// not valid UTF-8 yields an error wrapping [ErrMalformedOutput]. A non-zero exit
// status is not an error: the exit code is reported in [Result] and the captured
// output is returned for the caller to inspect.
package command
