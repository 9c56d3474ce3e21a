package notify

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	errs "github.com/servio/clientcore/internal/errors"
)

// Historical backend responses come in several shapes: a bare array, a
// {success, data} envelope, and the same envelope nested one level deeper
// (data.data). Everything is normalized here, at the network boundary, so
// callers only ever see Record.

type envelope struct {
	Success *bool           `json:"success"`
	Count   *int            `json:"count"`
	Data    json.RawMessage `json:"data"`
}

type wireRecord struct {
	ID               string    `json:"id"`
	LegacyID         string    `json:"_id"`
	Title            string    `json:"title"`
	Body             string    `json:"body"`
	Message          string    `json:"message"`
	Category         string    `json:"category"`
	Priority         string    `json:"priority"`
	IsRead           bool      `json:"isRead"`
	Read             bool      `json:"read"`
	CreatedAt        time.Time `json:"createdAt"`
	RelatedEntityRef string    `json:"relatedEntityRef"`
}

func (w wireRecord) toRecord() Record {
	id := w.ID
	if id == "" {
		id = w.LegacyID
	}
	body := w.Body
	if body == "" {
		body = w.Message
	}
	priority := Priority(w.Priority)
	if priority == "" {
		priority = PriorityNormal
	}
	return Record{
		ID:               id,
		Title:            w.Title,
		Body:             body,
		Category:         w.Category,
		Priority:         priority,
		IsRead:           w.IsRead || w.Read,
		CreatedAt:        w.CreatedAt,
		RelatedEntityRef: w.RelatedEntityRef,
	}
}

func decodeRecords(body []byte) ([]Record, error) {
	payload := bytes.TrimSpace(body)
	for depth := 0; depth < 3; depth++ {
		if len(payload) > 0 && payload[0] == '[' {
			var wires []wireRecord
			if err := json.Unmarshal(payload, &wires); err != nil {
				return nil, errors.Wrap(err, "[decodeRecords] parsing record array")
			}
			records := make([]Record, 0, len(wires))
			for _, w := range wires {
				records = append(records, w.toRecord())
			}
			return records, nil
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, errors.Wrap(err, "[decodeRecords] parsing envelope")
		}
		if env.Success != nil && !*env.Success {
			return nil, errs.ErrBackendRefused
		}
		if len(env.Data) == 0 {
			return []Record{}, nil
		}
		payload = bytes.TrimSpace(env.Data)
	}
	return nil, errors.New("[decodeRecords] unrecognised payload shape")
}

func decodeCount(body []byte) (int, error) {
	payload := bytes.TrimSpace(body)
	for depth := 0; depth < 3; depth++ {
		if len(payload) > 0 && payload[0] != '{' {
			var count int
			if err := json.Unmarshal(payload, &count); err != nil {
				return 0, errors.Wrap(err, "[decodeCount] parsing count")
			}
			return count, nil
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return 0, errors.Wrap(err, "[decodeCount] parsing envelope")
		}
		if env.Success != nil && !*env.Success {
			return 0, errs.ErrBackendRefused
		}
		if env.Count != nil {
			return *env.Count, nil
		}
		if len(env.Data) == 0 {
			return 0, errors.New("[decodeCount] payload missing count")
		}
		payload = bytes.TrimSpace(env.Data)
	}
	return 0, errors.New("[decodeCount] unrecognised payload shape")
}

// decodeAck checks a mutation response. Endpoints return {success} or an
// empty body.
func decodeAck(body []byte) error {
	payload := bytes.TrimSpace(body)
	if len(payload) == 0 {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return errors.Wrap(err, "[decodeAck] parsing envelope")
	}
	if env.Success != nil && !*env.Success {
		return errs.ErrBackendRefused
	}
	return nil
}
