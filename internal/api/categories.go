package api

import (
	"fmt"
	"net/http"

	"github.com/Veraticus/wantnot/internal/common"
	"github.com/Veraticus/wantnot/internal/model"
	"github.com/gin-gonic/gin"
)

func (s *Server) listCategories(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userID")
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		s.fail(c, err)
		return
	}

	categories, err := s.store.ListCategories(ctx, userID)
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]categoryResponse, 0, len(categories))
	for _, cat := range categories {
		out = append(out, newCategoryResponse(cat))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) createCategory(c *gin.Context) {
	ctx := c.Request.Context()
	userID := c.Param("userID")

	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		badRequest(c, fmt.Sprintf("unknown category type %q", req.Type))
		return
	}
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		s.fail(c, err)
		return
	}

	created, err := s.store.CreateCategory(ctx, req.category(userID))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCategoryResponse(*created))
}

// ownedCategory loads the path category and checks it belongs to the path user.
func (s *Server) ownedCategory(c *gin.Context) (*model.Category, bool) {
	category, err := s.store.GetCategory(c.Request.Context(), c.Param("categoryID"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	if category.UserID != c.Param("userID") {
		s.fail(c, fmt.Errorf("category %s: %w", category.ID, common.ErrForbidden))
		return nil, false
	}
	return category, true
}

func (s *Server) updateCategory(c *gin.Context) {
	var req categoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.Type != "" && !req.Type.Valid() {
		badRequest(c, fmt.Sprintf("unknown category type %q", req.Type))
		return
	}

	existing, ok := s.ownedCategory(c)
	if !ok {
		return
	}

	updated := req.category(existing.UserID)
	updated.ID = existing.ID
	if updated.Type == "" {
		updated.Type = existing.Type
	}
	if err := s.store.UpdateCategory(c.Request.Context(), updated); err != nil {
		s.fail(c, err)
		return
	}

	fresh, err := s.store.GetCategory(c.Request.Context(), existing.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newCategoryResponse(*fresh))
}

func (s *Server) deleteCategory(c *gin.Context) {
	category, ok := s.ownedCategory(c)
	if !ok {
		return
	}
	if err := s.store.DeleteCategory(c.Request.Context(), category.ID); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
