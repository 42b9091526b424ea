// Package logger provides logging facilities for the subsync application.
//
// Two audiences are served by one Logger:
//
//   - the operator, who sees one colored line per pipeline stage plus
//     success, warning and error lines on the terminal
//   - the debug log, a log/slog text file enabled with --debug that records
//     every message including the ones hidden by --quiet
//
// Colors come from github.com/fatih/color and are dropped automatically when
// stdout is not a terminal, or explicitly with --no-color / NO_COLOR.
package logger
