package http

import (
	"github.com/gin-gonic/gin"
	"github.com/resonatehq/syncevents/internal/app/subsystems/api"
	"github.com/resonatehq/syncevents/pkg/model"
	"github.com/resonatehq/syncevents/pkg/persist"
)

type collectionParams struct {
	Collection string `uri:"collection" binding:"required,alphanum,max=64"`
}

type recordParams struct {
	Collection string `uri:"collection" binding:"required,alphanum,max=64"`
	Id         string `uri:"id" binding:"required,max=256"`
}

// Read Records

func (s *server) readRecords(c *gin.Context) {
	var params collectionParams
	if err := c.ShouldBindUri(&params); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	s.sync(c, persist.Read, model.NewCollection("/"+params.Collection, s.hook), nil)
}

// Create Record

func (s *server) createRecord(c *gin.Context) {
	var params collectionParams
	if err := c.ShouldBindUri(&params); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	s.sync(c, persist.Create, model.New("/"+params.Collection, s.hook), body)
}

// Read Record

func (s *server) readRecord(c *gin.Context) {
	m, ok := s.bindRecord(c)
	if !ok {
		return
	}

	s.sync(c, persist.Read, m, nil)
}

// Update Record

func (s *server) updateRecord(c *gin.Context) {
	m, ok := s.bindRecord(c)
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	s.sync(c, persist.Update, m, body)
}

// Patch Record

func (s *server) patchRecord(c *gin.Context) {
	m, ok := s.bindRecord(c)
	if !ok {
		return
	}

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return
	}

	s.sync(c, persist.Patch, m, body)
}

// Delete Record

func (s *server) deleteRecord(c *gin.Context) {
	m, ok := s.bindRecord(c)
	if !ok {
		return
	}

	s.sync(c, persist.Delete, m, nil)
}

func (s *server) bindRecord(c *gin.Context) (*model.Model, bool) {
	var params recordParams
	if err := c.ShouldBindUri(&params); err != nil {
		err := api.RequestValidationError(err)
		c.JSON(err.Code, gin.H{"error": err})
		return nil, false
	}

	return model.New("/"+params.Collection, s.hook, model.WithID(params.Id)), true
}
