package realtime

import (
	"encoding/json"
	"errors"
)

// clientError is a failure caused by the frame itself; its text is safe to
// send back.
type clientError string

func (e clientError) Error() string { return string(e) }

func isClientError(err error) bool {
	var ce clientError
	return errors.As(err, &ce)
}

// decode unmarshals an event payload. A missing payload decodes as empty so
// that validation reports the missing fields.
func decode(data json.RawMessage, v any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return clientError(msgBadFrame)
	}
	return nil
}
