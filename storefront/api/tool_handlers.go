package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tanpawarit/atelier-storefront/storefront/tool"
)

func (s *Server) listTools(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse(c, "Tools fetched", tool.Infos()))
}

func (s *Server) getProduct(c *gin.Context) {
	if s.catalog == nil {
		c.JSON(http.StatusNotFound, ErrorResponse(c, "Product catalog is not configured"))
		return
	}
	hit, err := s.catalog.GetProduct(c.Request.Context(), strings.TrimSpace(c.Param("id")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Product fetched", hit))
}

// observeToolCall accepts one observation of an agent tool call. The answer,
// when there is one, is collected from tool-results.
func (s *Server) observeToolCall(c *gin.Context) {
	var call tool.Call
	if err := c.ShouldBindJSON(&call); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse(c, "Invalid tool call: "+err.Error()))
		return
	}
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := sess.Bridge.Observe(c.Request.Context(), call); err != nil {
		abortWithError(c, err)
		return
	}
	s.persist(c.Request.Context(), sess.ID)

	state, _ := sess.Bridge.Status(strings.TrimSpace(call.ID))
	c.JSON(http.StatusAccepted, SuccessResponse(c, "Tool call observed", gin.H{
		"toolCallId": call.ID,
		"state":      state,
	}))
}

func (s *Server) drainToolResults(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SuccessResponse(c, "Tool results fetched", sess.Outbox.Drain()))
}
