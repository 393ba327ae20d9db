// Package watch reports file changes to registered callbacks.
//
// A registration names either a file or a directory. Files are watched
// through their parent directory so editors and emhttp, which replace files
// by create+rename, are still seen. A directory registration reports each
// changed direct child.
//
// Bursts are coalesced per registration and changed path: the callback runs
// once the path has been quiet for the debounce window. Changes come from
// fsnotify in native mode or from a periodic stat scan in poll mode; callers
// cannot tell the two apart.
package watch
