// Package notify turns notification files into published records.
//
// Each *.notify file in the unread directory is one notification in the
// state file INI format. New files are parsed, deduplicated by identity
// (timestamp, subject, event) within a recency window and published on the
// NOTIFICATION channel. The notifications state slice holds unread counts
// per importance.
package notify
