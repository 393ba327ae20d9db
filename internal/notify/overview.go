package notify

import (
	"strconv"

	"git.home.luguber.info/inful/nasstate/internal/state"
)

// Overview counts unread notifications per importance.
type Overview struct {
	Normal  int `json:"normal"`
	Warning int `json:"warning"`
	Alert   int `json:"alert"`
	Total   int `json:"total"`
}

func (o *Overview) add(imp Importance) {
	switch imp {
	case ImportanceWarning:
		o.Warning++
	case ImportanceAlert:
		o.Alert++
	default:
		o.Normal++
	}
	o.Total++
}

// Slice renders o as the notifications state slice.
func (o Overview) Slice() state.Slice {
	return state.Slice{
		"unread": state.Slice{
			string(ImportanceNormal):  strconv.Itoa(o.Normal),
			string(ImportanceWarning): strconv.Itoa(o.Warning),
			string(ImportanceAlert):   strconv.Itoa(o.Alert),
			"total":                   strconv.Itoa(o.Total),
		},
	}
}

// OverviewFromSlice reads an Overview back from the notifications slice.
// Missing or malformed counts are zero.
func OverviewFromSlice(s state.Slice) Overview {
	unread, _ := s.Section("unread")
	count := func(k string) int {
		n, err := strconv.Atoi(unread.String(k))
		if err != nil {
			return 0
		}
		return n
	}
	return Overview{
		Normal:  count(string(ImportanceNormal)),
		Warning: count(string(ImportanceWarning)),
		Alert:   count(string(ImportanceAlert)),
		Total:   count("total"),
	}
}
