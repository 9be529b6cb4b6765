package postgres

import (
	"encoding/json"
	"time"

	"github.com/voxloop/voxloop/pkg/persistence/iface"
)

func decodeVariables(raw []byte) map[string]string {
	if len(raw) == 0 {
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}
	return m
}

type legalHoursEntry struct {
	Weekday int    `json:"weekday"`
	Start   string `json:"start"`
	End     string `json:"end"`
}

func decodeLegalHours(raw []byte) map[time.Weekday][]iface.LegalHoursWindow {
	if len(raw) == 0 {
		return nil
	}
	var entries []legalHoursEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil
	}
	out := make(map[time.Weekday][]iface.LegalHoursWindow)
	for _, e := range entries {
		wd := time.Weekday(e.Weekday)
		out[wd] = append(out[wd], iface.LegalHoursWindow{Start: e.Start, End: e.End})
	}
	return out
}
