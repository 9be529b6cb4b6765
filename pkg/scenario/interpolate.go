package scenario

import "strings"

// Interpolate substitutes `{{variable}}` placeholders in text using the
// per-call variable table (contact fields such as first_name), falling back
// to the scenario's variable table when the per-call table has no entry.
// Unknown placeholders are left untouched rather than erroring, since a
// prompt only referencing an unset variable is an authoring quirk, not a
// call-time failure (§4.5).
func (s *Scenario) Interpolate(text string, callVariables map[string]string) string {
	if !strings.Contains(text, "{{") {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	i := 0
	for i < len(text) {
		start := strings.Index(text[i:], "{{")
		if start == -1 {
			b.WriteString(text[i:])
			break
		}
		start += i
		b.WriteString(text[i:start])
		end := strings.Index(text[start:], "}}")
		if end == -1 {
			b.WriteString(text[start:])
			break
		}
		end += start
		name := strings.TrimSpace(text[start+2 : end])
		b.WriteString(s.lookupVariable(name, callVariables))
		i = end + 2
	}
	return b.String()
}

func (s *Scenario) lookupVariable(name string, callVariables map[string]string) string {
	if v, ok := callVariables[name]; ok {
		return v
	}
	if v, ok := s.doc.Variables[name]; ok {
		return v
	}
	return "{{" + name + "}}"
}
