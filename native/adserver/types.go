package adserver

// Ad is a single advertisement record held by the registry.
type Ad struct {
	ID            string `json:"id"`
	ImageURL      string `json:"image_url"`
	TargetURL     string `json:"target_url"`
	Views         uint64 `json:"views"`
	RewardAddress string `json:"reward_address"`
}

// State is the singleton registry aggregate. TotalViews counts every
// impression ever served, including impressions of ads since deleted.
type State struct {
	Ads        []Ad   `json:"ads"`
	TotalViews uint64 `json:"total_views"`
	// PltAddress is reserved and carries no behaviour.
	PltAddress string `json:"plt_address"`
}

func newState() *State {
	return &State{Ads: []Ad{}, TotalViews: 0, PltAddress: ""}
}

// indexOf returns the position of the ad with the supplied id or -1.
func (s *State) indexOf(id string) int {
	for i := range s.Ads {
		if s.Ads[i].ID == id {
			return i
		}
	}
	return -1
}

// serve records a single impression against the ad at index i.
func (s *State) serve(i int) *Ad {
	ad := &s.Ads[i]
	ad.Views++
	s.TotalViews++
	return ad
}

// AdResponse is the query projection of a single ad.
type AdResponse struct {
	ID            string `json:"id"`
	ImageURL      string `json:"image_url"`
	TargetURL     string `json:"target_url"`
	Views         uint64 `json:"views"`
	RewardAddress string `json:"reward_address"`
}

// AllAdsResponse lists every ad in insertion order.
type AllAdsResponse struct {
	Ads []AdResponse `json:"ads"`
}

// TotalViewsResponse reports the cumulative impression counter.
type TotalViewsResponse struct {
	TotalViews uint64 `json:"total_views"`
}

func projectAd(ad Ad) AdResponse {
	return AdResponse{
		ID:            ad.ID,
		ImageURL:      ad.ImageURL,
		TargetURL:     ad.TargetURL,
		Views:         ad.Views,
		RewardAddress: ad.RewardAddress,
	}
}
