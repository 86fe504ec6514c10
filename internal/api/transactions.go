package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// limitParam reads ?limit=, falling back to the default when absent.
func limitParam(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		badRequest(c, "limit must be a positive integer")
		return 0, false
	}
	return min(limit, maxListLimit), true
}

func (s *Server) listUncategorized(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userID")
	limit, ok := limitParam(c)
	if !ok {
		return
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		s.fail(c, err)
		return
	}

	txns, err := s.store.ListUncategorized(ctx, userID, limit)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, t := range txns {
		out = append(out, newTransactionResponse(t))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) categorize(c *gin.Context) {
	var req categorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	result, err := s.engine.CategorizeManually(c.Request.Context(), c.Param("userID"), c.Param("txnID"),
		req.CategoryID, contributeOr(req.Contribute, s.engine.Config().Contribute))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) autoCategorize(c *gin.Context) {
	result, err := s.engine.AutoCategorize(c.Request.Context(), c.Param("userID"), c.Param("txnID"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) bulkCategorize(c *gin.Context) {
	var req bulkCategorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	updated, err := s.engine.BulkCategorize(c.Request.Context(), c.Param("userID"), req.TransactionIDs,
		req.CategoryID, contributeOr(req.Contribute, s.engine.Config().Contribute))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": updated})
}

func (s *Server) aiSuggest(c *gin.Context) {
	limit, ok := limitParam(c)
	if !ok {
		return
	}

	result, err := s.engine.BatchSuggest(c.Request.Context(), c.Param("userID"), limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) acceptSuggestions(c *gin.Context) {
	var req acceptSuggestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	accepted, err := s.engine.AcceptSuggestions(c.Request.Context(), c.Param("userID"), req.Suggestions,
		contributeOr(req.Contribute, s.engine.Config().Contribute))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "accepted": accepted})
}
