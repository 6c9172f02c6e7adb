package apiclient

import (
	"bytes"
	"encoding/json"

	"github.com/pkg/errors"
)

// Page is one page of a collection response. The CRM API returns either a
// paginated envelope {"results": [...], "count": N} or, for unpaginated
// endpoints, a bare array; Page decodes both.
type Page[T any] struct {
	Results []T
	Count   int
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var results []T
		if err := json.Unmarshal(data, &results); err != nil {
			return errors.Wrap(err, "[Page.UnmarshalJSON] bare array")
		}
		p.Results = results
		p.Count = len(results)
		return nil
	}

	var envelope struct {
		Results []T `json:"results"`
		Count   int `json:"count"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return errors.Wrap(err, "[Page.UnmarshalJSON] envelope")
	}
	p.Results = envelope.Results
	p.Count = envelope.Count
	return nil
}
