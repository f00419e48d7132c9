package domain

// Pagination is the page metadata of a games listing response.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// GamesResponse is the body of GET /api/games.
type GamesResponse struct {
	Games      []CatalogRecord `json:"games"`
	Pagination Pagination      `json:"pagination"`
}

// NewGamesResponse converts a planner page to its wire shape.
func NewGamesResponse(p Page) GamesResponse {
	games := p.Items
	if games == nil {
		games = []CatalogRecord{}
	}
	return GamesResponse{
		Games: games,
		Pagination: Pagination{
			Page:       p.Page,
			Limit:      p.PageSize,
			Total:      p.Total,
			TotalPages: p.TotalPages,
			HasNext:    p.HasNext,
			HasPrev:    p.HasPrev,
		},
	}
}

// Page converts the wire shape back to a planner page.
func (r GamesResponse) Page() Page {
	return Page{
		Items:      r.Games,
		Page:       r.Pagination.Page,
		PageSize:   r.Pagination.Limit,
		Total:      r.Pagination.Total,
		TotalPages: r.Pagination.TotalPages,
		HasNext:    r.Pagination.HasNext,
		HasPrev:    r.Pagination.HasPrev,
	}
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
}
