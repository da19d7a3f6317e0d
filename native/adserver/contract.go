package adserver

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Execute routes a decoded command to its handler.
func (e *Engine) Execute(msg ExecuteMsg) (*Response, error) {
	switch {
	case msg.AddAd != nil:
		m := msg.AddAd
		return e.AddAd(m.ID, m.ImageURL, m.TargetURL, m.RewardAddress)
	case msg.ServeAd != nil:
		return e.ServeAd(msg.ServeAd.ID)
	case msg.DeleteAd != nil:
		return e.DeleteAd(msg.DeleteAd.ID)
	case msg.BatchServeAds != nil:
		return e.BatchServeAds(msg.BatchServeAds.IDs)
	default:
		return nil, fmt.Errorf("%w: no command set", ErrInvalidMessage)
	}
}

// Query routes a decoded query and returns the JSON-encoded response.
func (e *Engine) Query(msg QueryMsg) ([]byte, error) {
	var (
		resp interface{}
		err  error
	)
	switch {
	case msg.Ad != nil:
		resp, err = e.Ad(msg.Ad.ID)
	case msg.Ads:
		resp, err = e.Ads()
	case msg.TotalViews:
		resp, err = e.TotalViews()
	default:
		return nil, fmt.Errorf("%w: no query set", ErrInvalidMessage)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// InstantiateJSON decodes an InitMsg and instantiates the registry. An empty
// payload is treated as {}.
func (e *Engine) InstantiateJSON(raw []byte) (*Response, error) {
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 {
		var msg InitMsg
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&msg); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
		}
	}
	return e.Instantiate()
}

// ExecuteJSON decodes and executes a serialized command.
func (e *Engine) ExecuteJSON(raw []byte) (*Response, error) {
	var msg ExecuteMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return e.Execute(msg)
}

// QueryJSON decodes and answers a serialized query.
func (e *Engine) QueryJSON(raw []byte) ([]byte, error) {
	var msg QueryMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return e.Query(msg)
}
