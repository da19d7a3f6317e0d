package adserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// InitMsg carries no fields.
type InitMsg struct{}

// AddAdMsg registers a new ad.
type AddAdMsg struct {
	ID            string `json:"id"`
	ImageURL      string `json:"image_url"`
	TargetURL     string `json:"target_url"`
	RewardAddress string `json:"reward_address"`
}

// ServeAdMsg records one impression.
type ServeAdMsg struct {
	ID string `json:"id"`
}

// DeleteAdMsg removes an ad.
type DeleteAdMsg struct {
	ID string `json:"id"`
}

// BatchServeAdsMsg records one impression per listed id.
type BatchServeAdsMsg struct {
	IDs []string `json:"ids"`
}

// ExecuteMsg is the tagged union of state-mutating commands. Exactly one field
// must be set. On the wire it is an object with a single snake_case key, e.g.
// {"serve_ad":{"id":"x"}}.
type ExecuteMsg struct {
	AddAd         *AddAdMsg         `json:"add_ad,omitempty"`
	ServeAd       *ServeAdMsg       `json:"serve_ad,omitempty"`
	DeleteAd      *DeleteAdMsg      `json:"delete_ad,omitempty"`
	BatchServeAds *BatchServeAdsMsg `json:"batch_serve_ads,omitempty"`
}

// AdQuery selects a single ad.
type AdQuery struct {
	ID string `json:"id"`
}

// QueryMsg is the tagged union of read-only queries. Unit variants encode as
// bare strings ("ads", "total_views").
type QueryMsg struct {
	Ad         *AdQuery
	Ads        bool
	TotalViews bool
}

const (
	variantAddAd         = "add_ad"
	variantServeAd       = "serve_ad"
	variantDeleteAd      = "delete_ad"
	variantBatchServeAds = "batch_serve_ads"

	variantAd         = "ad"
	variantAds        = "ads"
	variantTotalViews = "total_views"
)

// splitVariant returns the variant name and body of an externally tagged enum.
// A bare string yields a nil body.
func splitVariant(raw []byte) (string, json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", nil, errors.New("empty message")
	}
	if trimmed[0] == '"' {
		var name string
		if err := json.Unmarshal(trimmed, &name); err != nil {
			return "", nil, err
		}
		return name, nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return "", nil, err
	}
	if len(fields) != 1 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return "", nil, fmt.Errorf("expected exactly one variant, got %v", keys)
	}
	for name, body := range fields {
		return name, body, nil
	}
	return "", nil, errors.New("unreachable")
}

// decodeBody strictly decodes body into out, requiring every listed field.
func decodeBody(body json.RawMessage, out interface{}, required ...string) error {
	if len(bytes.TrimSpace(body)) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return errors.New("missing message body")
	}
	var present map[string]json.RawMessage
	if err := json.Unmarshal(body, &present); err != nil {
		return err
	}
	for _, field := range required {
		value, ok := present[field]
		if !ok {
			return fmt.Errorf("missing field `%s`", field)
		}
		if bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			return fmt.Errorf("field `%s` must not be null", field)
		}
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *ExecuteMsg) UnmarshalJSON(raw []byte) error {
	name, body, err := splitVariant(raw)
	if err != nil {
		return err
	}
	*m = ExecuteMsg{}
	switch name {
	case variantAddAd:
		m.AddAd = &AddAdMsg{}
		return decodeBody(body, m.AddAd, "id", "image_url", "target_url", "reward_address")
	case variantServeAd:
		m.ServeAd = &ServeAdMsg{}
		return decodeBody(body, m.ServeAd, "id")
	case variantDeleteAd:
		m.DeleteAd = &DeleteAdMsg{}
		return decodeBody(body, m.DeleteAd, "id")
	case variantBatchServeAds:
		m.BatchServeAds = &BatchServeAdsMsg{}
		return decodeBody(body, m.BatchServeAds, "ids")
	default:
		return fmt.Errorf("unknown variant `%s`", name)
	}
}

// MarshalJSON implements json.Marshaler.
func (m ExecuteMsg) MarshalJSON() ([]byte, error) {
	switch {
	case m.AddAd != nil:
		return json.Marshal(map[string]*AddAdMsg{variantAddAd: m.AddAd})
	case m.ServeAd != nil:
		return json.Marshal(map[string]*ServeAdMsg{variantServeAd: m.ServeAd})
	case m.DeleteAd != nil:
		return json.Marshal(map[string]*DeleteAdMsg{variantDeleteAd: m.DeleteAd})
	case m.BatchServeAds != nil:
		batch := *m.BatchServeAds
		if batch.IDs == nil {
			batch.IDs = []string{}
		}
		return json.Marshal(map[string]*BatchServeAdsMsg{variantBatchServeAds: &batch})
	default:
		return nil, errors.New("execute message has no variant set")
	}
}

// UnmarshalJSON implements json.Unmarshaler. Unit variants are accepted both
// as bare strings and as objects with an empty body.
func (q *QueryMsg) UnmarshalJSON(raw []byte) error {
	name, body, err := splitVariant(raw)
	if err != nil {
		return err
	}
	*q = QueryMsg{}
	switch name {
	case variantAd:
		q.Ad = &AdQuery{}
		return decodeBody(body, q.Ad, "id")
	case variantAds:
		q.Ads = true
		return unitBody(body)
	case variantTotalViews:
		q.TotalViews = true
		return unitBody(body)
	default:
		return fmt.Errorf("unknown variant `%s`", name)
	}
}

func unitBody(body json.RawMessage) error {
	if body == nil {
		return nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return err
	}
	if len(fields) != 0 {
		return errors.New("unit variant takes no fields")
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (q QueryMsg) MarshalJSON() ([]byte, error) {
	switch {
	case q.Ad != nil:
		return json.Marshal(map[string]*AdQuery{variantAd: q.Ad})
	case q.Ads:
		return json.Marshal(variantAds)
	case q.TotalViews:
		return json.Marshal(variantTotalViews)
	default:
		return nil, errors.New("query message has no variant set")
	}
}

// Name returns the wire variant of the command, or "" when none is set.
func (m ExecuteMsg) Name() string {
	switch {
	case m.AddAd != nil:
		return variantAddAd
	case m.ServeAd != nil:
		return variantServeAd
	case m.DeleteAd != nil:
		return variantDeleteAd
	case m.BatchServeAds != nil:
		return variantBatchServeAds
	default:
		return ""
	}
}

// Name returns the wire variant of the query, or "" when none is set.
func (q QueryMsg) Name() string {
	switch {
	case q.Ad != nil:
		return variantAd
	case q.Ads:
		return variantAds
	case q.TotalViews:
		return variantTotalViews
	default:
		return ""
	}
}
