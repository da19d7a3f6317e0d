package adserver

import (
	"strconv"

	"adserver/core/events"
	"adserver/core/types"
)

const (
	// EventTypeAddAd is emitted when an ad is registered.
	EventTypeAddAd = "add_ad"
	// EventTypeServeAd is emitted once per served impression.
	EventTypeServeAd = "serve_ad"
	// EventTypeDeleteAd is emitted when an ad is removed.
	EventTypeDeleteAd = "delete_ad"
)

type eventEnvelope struct {
	evt *types.Event
}

func (e eventEnvelope) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e eventEnvelope) Event() *types.Event { return e.evt }

// WrapEvent converts a raw event payload into the emitter-friendly envelope.
func WrapEvent(evt *types.Event) events.Event { return eventEnvelope{evt: evt} }

// AddAdEvent returns the structured event payload for a new ad.
func AddAdEvent(ad Ad) *types.Event {
	return types.NewEvent(EventTypeAddAd).
		Add("action", EventTypeAddAd).
		Add("ad_id", ad.ID).
		Add("reward_address", ad.RewardAddress).
		Add("image_url", ad.ImageURL).
		Add("target_url", ad.TargetURL)
}

// ServeAdEvent returns the structured event payload for a served impression.
func ServeAdEvent(ad Ad) *types.Event {
	return types.NewEvent(EventTypeServeAd).
		Add("action", EventTypeServeAd).
		Add("ad_id", ad.ID).
		Add("views", strconv.FormatUint(ad.Views, 10)).
		Add("image_url", ad.ImageURL).
		Add("target_url", ad.TargetURL)
}

// DeleteAdEvent returns the structured event payload for a removed ad.
func DeleteAdEvent(id string) *types.Event {
	return types.NewEvent(EventTypeDeleteAd).
		Add("action", EventTypeDeleteAd).
		Add("ad_id", id)
}
