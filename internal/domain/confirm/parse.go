package confirm

import (
	"strings"

	"github.com/bytedance/sonic"

	"sentrycam-go/internal/platform/errors"
)

// rawVerdict mirrors the JSON shape the model is prompted to produce.
// PersonPresent is a pointer so a missing field is distinguishable from
// false.
type rawVerdict struct {
	PersonPresent *bool  `json:"person_present"`
	Description   string `json:"description"`
}

// ParseVerdict extracts a Result from the model's reply. It first tries a
// strict parse, then one bounded sanitization pass for replies wrapped in
// code fences or written with Python-style literals. Anything beyond that
// is a parse error, never a guessed verdict.
func ParseVerdict(reply string) (*Result, error) {
	const op = "confirm.ParseVerdict"

	candidate := strings.TrimSpace(reply)

	result, err := tryParse(candidate)
	if err == nil {
		return result, nil
	}

	result, err = tryParse(sanitize(candidate))
	if err != nil {
		return nil, errors.Wrap(errors.KindConfirm, op, "model reply is not a valid verdict", err)
	}
	return result, nil
}

func tryParse(s string) (*Result, error) {
	const op = "confirm.tryParse"

	var raw rawVerdict
	if err := sonic.UnmarshalString(s, &raw); err != nil {
		return nil, err
	}
	if raw.PersonPresent == nil {
		return nil, errors.New(errors.KindConfirm, op, "reply is missing person_present")
	}

	return &Result{
		PersonPresent: raw.PersonPresent,
		Description:   strings.TrimSpace(raw.Description),
	}, nil
}

// sanitize strips markdown code fences and converts Python literals to
// their JSON equivalents. One pass only.
func sanitize(s string) string {
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
		s = strings.TrimPrefix(s, "json")
		if end := strings.Index(s, "```"); end >= 0 {
			s = s[:end]
		}
	}
	s = strings.TrimSpace(s)

	replacer := strings.NewReplacer(
		"'", `"`,
		"True", "true",
		"False", "false",
		"None", "null",
	)
	return replacer.Replace(s)
}
