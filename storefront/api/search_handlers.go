package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/route"
	"github.com/tanpawarit/atelier-storefront/storefront/search"
	"github.com/tanpawarit/atelier-storefront/storefront/session"
)

type createSessionRequest struct {
	// Route is a URL query string such as "q=dress&brand=Atelier".
	Route string `json:"route"`
	Scope string `json:"scope"`
}

type sessionView struct {
	ID      string         `json:"id"`
	Route   string         `json:"route"`
	State   search.State   `json:"state"`
	Scope   string         `json:"scope,omitempty"`
	Results search.Results `json:"results"`
	Cart    cart.Snapshot  `json:"cart"`
}

func viewOf(sess *session.Session) sessionView {
	st := sess.Search.State()
	return sessionView{
		ID:      sess.ID,
		Route:   route.Encode(st).String(),
		State:   st,
		Scope:   sess.Search.Scope(),
		Results: sess.Search.Results(),
		Cart:    sess.Cart.Snapshot(),
	}
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid request body"))
		return
	}

	rs, err := route.Parse(req.Route)
	if err != nil {
		abortWithError(c, fmt.Errorf("%w: %v", contract.ErrValidation, err))
		return
	}
	sess, err := s.sessions.Create(route.Decode(rs), req.Scope)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.persist(c.Request.Context(), sess.ID)

	c.JSON(http.StatusCreated, SuccessResponse(c, "Session created", viewOf(sess)))
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.sessions.Close(c.Param("id")); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Session closed", nil))
}

// getSearch applies the URL query parameters, if any, and waits for the
// resulting generation to settle.
func (s *Server) getSearch(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}

	gen := sess.Search.Generation()
	if c.Request.URL.RawQuery != "" {
		next := route.Decode(route.FromValues(c.Request.URL.Query()))
		var err error
		if gen, err = sess.Search.Restore(next); err != nil {
			abortWithError(c, err)
			return
		}
		s.persist(c.Request.Context(), sess.ID)
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.SettleWait)
	defer cancel()
	res, err := sess.Search.WaitSettled(ctx, gen)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if res.Status == search.StatusError {
		abortWithError(c, fmt.Errorf("%w: search backend failed", contract.ErrUpstream))
		return
	}

	c.JSON(http.StatusOK, SuccessResponse(c, "Search results fetched", gin.H{
		"route":   route.Encode(sess.Search.State()).String(),
		"results": res,
	}))
}

type refineRequest struct {
	Action    string   `json:"action" binding:"required"`
	Query     string   `json:"query"`
	Attribute string   `json:"attribute"`
	Value     string   `json:"value"`
	Path      []string `json:"path"`
	Price     string   `json:"price"`
	Page      *int     `json:"page"`
	Scope     string   `json:"scope"`
}

func (s *Server) refineSearch(c *gin.Context) {
	var req refineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid request body"))
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}

	gen, err := applyRefinement(sess.Search, req)
	if err != nil {
		abortWithError(c, err)
		return
	}
	s.persist(c.Request.Context(), sess.ID)

	st := sess.Search.State()
	c.JSON(http.StatusOK, SuccessResponse(c, "Search state updated", gin.H{
		"generation": gen,
		"state":      st,
		"route":      route.Encode(st).String(),
	}))
}

func applyRefinement(store *search.Store, req refineRequest) (uint64, error) {
	switch req.Action {
	case "setQuery":
		return store.SetQuery(req.Query)
	case "toggleRefinement":
		return store.ToggleRefinement(req.Attribute, req.Value)
	case "selectCategory":
		return store.SelectCategory(req.Path)
	case "setPriceRange":
		if req.Price == "" {
			return store.SetPriceRange(nil)
		}
		r, ok := route.ParsePrice(req.Price)
		if !ok {
			return 0, fmt.Errorf("%w: invalid price range %q", contract.ErrValidation, req.Price)
		}
		return store.SetPriceRange(r)
	case "setPage":
		if req.Page == nil {
			return 0, fmt.Errorf("%w: page is required", contract.ErrValidation)
		}
		return store.SetPage(*req.Page)
	case "setScope":
		return store.SetScope(req.Scope)
	case "reset":
		return store.Reset()
	default:
		return 0, fmt.Errorf("%w: unknown action %q", contract.ErrValidation, req.Action)
	}
}

func (s *Server) getRoute(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	rs := route.Encode(sess.Search.State())
	c.JSON(http.StatusOK, SuccessResponse(c, "Route fetched", gin.H{
		"route": rs,
		"query": rs.String(),
	}))
}

func (s *Server) getSummary(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if sess.Summary == nil {
		c.JSON(http.StatusOK, SuccessResponse(c, "Summaries are disabled", nil))
		return
	}
	sum, ready := sess.Summary.Current()
	if !ready {
		c.JSON(http.StatusOK, SuccessResponse(c, "No summary available", nil))
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Summary fetched", sum))
}
