// Package lock keeps two subsync runs from rewriting the same repository at
// once. The lock is an flock(2) on <git-dir>/subsync.lock holding the PID of
// the owner; the kernel drops it if the process dies, so a leftover file
// never blocks a later run.
package lock
