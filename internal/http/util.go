package httpx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/target/brandpulse/internal/domain/model"
)

// maxTriggerBody bounds the optional JSON body of a manual trigger.
const maxTriggerBody = 64 << 10

// parsePathID reads a positive integer path parameter. On failure a 400 response is written.
func parsePathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_path",
			Err:     fmt.Errorf("%s must be a positive integer, got %q", name, raw),
		})
		return 0, false
	}
	return id, true
}

// readTriggerRequest builds a manual TriggerRequest. An optional JSON object body
// becomes its Params; any other body gets a 400 response.
func readTriggerRequest(w http.ResponseWriter, r *http.Request) (model.TriggerRequest, bool) {
	req := model.TriggerRequest{Source: model.TriggerSourceManual}
	if r.Body == nil {
		return req, true
	}
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTriggerBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, ErrorParams{Code: http.StatusRequestEntityTooLarge, ErrCode: "body_too_large", Err: err})
			return req, false
		}
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_body", Err: err})
		return req, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return req, true
	}
	if raw[0] != '{' || !json.Valid(raw) {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_body",
			Err:     errors.New("trigger body must be a JSON object"),
		})
		return req, false
	}
	req.Params = json.RawMessage(raw)
	return req, true
}
