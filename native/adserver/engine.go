package adserver

import (
	"fmt"
	"io"
	"log/slog"

	"adserver/core/events"
	"adserver/core/types"
)

// Response is the result of a successful command. Events keep emission order.
type Response struct {
	Attributes []types.Attribute `json:"attributes,omitempty"`
	Events     []*types.Event    `json:"events"`
}

func newResponse(evts ...*types.Event) *Response {
	if evts == nil {
		evts = []*types.Event{}
	}
	return &Response{Events: evts}
}

// Engine implements the registry commands and queries. It retains no state
// between calls: every invocation loads the registry from the store and
// commands write it back in full.
type Engine struct {
	state   kvStore
	emitter events.Emitter
	logger  *slog.Logger
}

// NewEngine constructs an engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state kvStore) { e.state = state }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetLogger configures the logger used for command tracing.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		e.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
		return
	}
	e.logger = logger.With(slog.String("module", "adserver"))
}

func (e *Engine) emit(evts ...*types.Event) {
	if e == nil || e.emitter == nil {
		return
	}
	for _, evt := range evts {
		if evt != nil {
			e.emitter.Emit(WrapEvent(evt.Clone()))
		}
	}
}

func (e *Engine) load() (*State, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return loadState(e.state)
}

func (e *Engine) save(st *State) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return saveState(e.state, st)
}

// Instantiated reports whether a registry blob exists in the store. It does
// not validate the blob.
func (e *Engine) Instantiated() (bool, error) {
	if e == nil || e.state == nil {
		return false, errNilState
	}
	return e.state.KVGet(stateKey, nil)
}

// Instantiate writes an empty registry, discarding any prior state.
func (e *Engine) Instantiate() (*Response, error) {
	if err := e.save(newState()); err != nil {
		return nil, err
	}
	e.logger.Info("registry instantiated")
	resp := newResponse()
	resp.Attributes = []types.Attribute{{Key: "method", Value: "instantiate"}}
	return resp, nil
}

// AddAd appends a new ad with zero views. Ids must be unique.
func (e *Engine) AddAd(id, imageURL, targetURL, rewardAddress string) (*Response, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	if st.indexOf(id) >= 0 {
		return nil, fmt.Errorf("add ad %q: %w", id, ErrDuplicateIdentifier)
	}
	ad := Ad{
		ID:            id,
		ImageURL:      imageURL,
		TargetURL:     targetURL,
		Views:         0,
		RewardAddress: rewardAddress,
	}
	st.Ads = append(st.Ads, ad)
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.logger.Debug("ad added", slog.String("ad_id", id), slog.Int("ads", len(st.Ads)))
	evt := AddAdEvent(ad)
	e.emit(evt)
	return newResponse(evt), nil
}

// ServeAd records one impression for the ad.
func (e *Engine) ServeAd(id string) (*Response, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("cannot serve ad %q: %w", id, ErrNotFound)
	}
	served := *st.serve(idx)
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.logger.Debug("ad served", slog.String("ad_id", id), slog.Uint64("views", served.Views))
	evt := ServeAdEvent(served)
	e.emit(evt)
	return newResponse(evt), nil
}

// DeleteAd removes the ad, preserving the order of the remainder. TotalViews
// is left untouched.
func (e *Engine) DeleteAd(id string) (*Response, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("cannot delete ad %q: %w", id, ErrNotFound)
	}
	st.Ads = append(st.Ads[:idx], st.Ads[idx+1:]...)
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.logger.Debug("ad deleted", slog.String("ad_id", id))
	evt := DeleteAdEvent(id)
	e.emit(evt)
	return newResponse(evt), nil
}

// BatchServeAds serves each listed id in order. Unknown ids are skipped and
// repeated ids are served once per occurrence. The registry is saved once and
// events are released only after the save succeeds.
func (e *Engine) BatchServeAds(ids []string) (*Response, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	evts := make([]*types.Event, 0, len(ids))
	for _, id := range ids {
		idx := st.indexOf(id)
		if idx < 0 {
			continue
		}
		evts = append(evts, ServeAdEvent(*st.serve(idx)))
	}
	if err := e.save(st); err != nil {
		return nil, err
	}
	e.logger.Debug("batch served", slog.Int("requested", len(ids)), slog.Int("served", len(evts)))
	e.emit(evts...)
	return newResponse(evts...), nil
}

// Ad returns the projection of a single ad.
func (e *Engine) Ad(id string) (*AdResponse, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	idx := st.indexOf(id)
	if idx < 0 {
		return nil, fmt.Errorf("query ad %q: %w", id, ErrNotFound)
	}
	resp := projectAd(st.Ads[idx])
	return &resp, nil
}

// Ads returns every ad in insertion order.
func (e *Engine) Ads() (*AllAdsResponse, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	ads := make([]AdResponse, 0, len(st.Ads))
	for _, ad := range st.Ads {
		ads = append(ads, projectAd(ad))
	}
	return &AllAdsResponse{Ads: ads}, nil
}

// TotalViews returns the cumulative impression counter.
func (e *Engine) TotalViews() (*TotalViewsResponse, error) {
	st, err := e.load()
	if err != nil {
		return nil, err
	}
	return &TotalViewsResponse{TotalViews: st.TotalViews}, nil
}
