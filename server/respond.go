package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// readJSON decodes the request body into out. An empty body or invalid
// JSON returns false; callers respond 400.
func readJSON(r *http.Request, out any) bool {
	body, err := io.ReadAll(r.Body)
	if err != nil || len(body) == 0 {
		return false
	}
	return json.Unmarshal(body, out) == nil
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// gameID accepts both numeric and string-typed ids, as clients have sent
// either form.
type gameID int64

func (id *gameID) UnmarshalJSON(data []byte) error {
	if len(data) > 1 && data[0] == '"' {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			// Leave the id zero; handlers treat that as missing.
			return nil
		}
		*id = gameID(parsed)
		return nil
	}
	var parsed int64
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil
	}
	*id = gameID(parsed)
	return nil
}
