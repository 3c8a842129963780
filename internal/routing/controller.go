package routing

import (
	"github.com/samber/lo"
	"overlay-router/internal/common/errors"
)

// SelectOptions narrows endpoint selection. The zero value selects from every
// community except the default one and allows routed endpoints.
type SelectOptions struct {
	// CommunityID restricts candidates to one community
	CommunityID string
	// AllowDefaultCommunity keeps endpoints in the default/bootstrap community
	AllowDefaultCommunity bool
	// DirectOnly drops endpoints in communities the local node is not part of
	DirectOnly bool
}

// Controller chooses the endpoint a member is reached through
type Controller struct {
	directory        Directory
	endpoints        EndpointDirectory
	defaultCommunity string
}

// NewController creates a controller. defaultCommunity may be empty.
func NewController(directory Directory, endpoints EndpointDirectory, defaultCommunity string) *Controller {
	return &Controller{
		directory:        directory,
		endpoints:        endpoints,
		defaultCommunity: defaultCommunity,
	}
}

// DefaultCommunity returns the bootstrap community excluded from selection
func (c *Controller) DefaultCommunity() string {
	return c.defaultCommunity
}

// SelectEndpoint returns the first endpoint of memberID the local node can
// reach directly, or the first routed one when routing is allowed. Order
// within each group is the directory's.
func (c *Controller) SelectEndpoint(memberID string, opts SelectOptions) (Endpoint, error) {
	var excluded []string
	if !opts.AllowDefaultCommunity && c.defaultCommunity != "" {
		excluded = []string{c.defaultCommunity}
	}

	candidates := lo.Filter(c.endpoints.EndpointsForMember(memberID, opts.CommunityID, excluded), func(e Endpoint, _ int) bool {
		if opts.CommunityID != "" && e.CommunityID != opts.CommunityID {
			return false
		}
		return !lo.Contains(excluded, e.CommunityID)
	})

	local := c.directory.CommunityIDs()
	direct, routed := lo.FilterReject(candidates, func(e Endpoint, _ int) bool {
		return lo.Contains(local, e.CommunityID)
	})

	switch {
	case len(direct) > 0:
		return direct[0], nil
	case !opts.DirectOnly && len(routed) > 0:
		return routed[0], nil
	default:
		return Endpoint{}, errors.NoEndpointError(memberID)
	}
}
