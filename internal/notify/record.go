package notify

import (
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

// Importance ranks a notification.
type Importance string

const (
	ImportanceNormal  Importance = "normal"
	ImportanceWarning Importance = "warning"
	ImportanceAlert   Importance = "alert"
)

// Importances lists every level, lowest first.
func Importances() []Importance {
	return []Importance{ImportanceNormal, ImportanceWarning, ImportanceAlert}
}

func parseImportance(raw string) Importance {
	switch Importance(strings.ToLower(strings.TrimSpace(raw))) {
	case ImportanceWarning:
		return ImportanceWarning
	case ImportanceAlert:
		return ImportanceAlert
	}
	return ImportanceNormal
}

// Record is one parsed notification.
type Record struct {
	ID          string     `json:"id"`
	Timestamp   time.Time  `json:"timestamp"`
	Event       string     `json:"event"`
	Subject     string     `json:"subject"`
	Description string     `json:"description"`
	Importance  Importance `json:"importance"`
	Link        string     `json:"link,omitempty"`
	File        string     `json:"file"`
}

var recordNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("nasstate:notification"))

// Identity is the dedup key of a notification. Text is NFC-normalized so the
// same subject written with different Unicode compositions matches.
func Identity(ts time.Time, subject, event string) string {
	return strconv.FormatInt(ts.Unix(), 10) + "\x1f" +
		norm.NFC.String(strings.TrimSpace(subject)) + "\x1f" +
		norm.NFC.String(strings.TrimSpace(event))
}

// RecordID derives a stable id from an identity.
func RecordID(identity string) string {
	return uuid.NewSHA1(recordNamespace, []byte(identity)).String()
}

// ParseRecord builds a Record from a decoded .notify file.
func ParseRecord(path string, s state.Slice) (Record, error) {
	rawTS := strings.TrimSpace(s.String("timestamp"))
	secs, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return Record{}, ferrors.ParseError("notification has no valid timestamp").
			WithContext("path", path).
			WithContext("timestamp", rawTS).
			Build()
	}
	subject := s.String("subject")
	event := s.String("event")
	if subject == "" && event == "" {
		return Record{}, ferrors.ParseError("notification has neither subject nor event").
			WithContext("path", path).
			Build()
	}

	ts := time.Unix(secs, 0).UTC()
	return Record{
		ID:          RecordID(Identity(ts, subject, event)),
		Timestamp:   ts,
		Event:       event,
		Subject:     subject,
		Description: s.String("description"),
		Importance:  parseImportance(s.String("importance")),
		Link:        s.String("link"),
		File:        filepath.Base(path),
	}, nil
}

// Identity returns the dedup key of r.
func (r Record) Identity() string {
	return Identity(r.Timestamp, r.Subject, r.Event)
}
