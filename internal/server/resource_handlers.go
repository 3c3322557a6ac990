package server

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/apperror"
	"github.com/islandvows/islandvows/internal/gateway"
	"github.com/islandvows/islandvows/internal/resources"
)

// Row is one table row as returned by the backend
type Row = map[string]any

// query parameters that are not column filters
var listParams = map[string]bool{"limit": true, "offset": true}

// readInput decodes a JSON object or a submitted form into field values
func readInput(c *gin.Context) (map[string]any, error) {
	input := map[string]any{}

	if c.ContentType() == gin.MIMEJSON {
		dec := json.NewDecoder(c.Request.Body)
		dec.UseNumber()
		if err := dec.Decode(&input); err != nil {
			return nil, &apperror.ValidationError{Fields: map[string]string{"body": "must be a JSON object"}}
		}
		return input, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, &apperror.ValidationError{Fields: map[string]string{"body": "unreadable form"}}
	}
	for k, vs := range c.Request.PostForm {
		if len(vs) > 0 {
			input[k] = vs[0]
		}
	}
	return input, nil
}

// scope narrows q to the parent named in the route, if any
func scope(c *gin.Context, q *gateway.Query, res *resources.Resource) *gateway.Query {
	if res.Parent != "" {
		if parentID := c.Param("id"); parentID != "" {
			q.Eq(res.ParentKey, parentID)
		}
	}
	return q
}

func (s *Server) listRows(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := scope(c, s.db(c).From(res.Table), res)

		problems := map[string]string{}
		for name, values := range c.Request.URL.Query() {
			if listParams[name] {
				continue
			}
			if _, ok := res.Field(name); !ok {
				problems[name] = "unknown filter"
				continue
			}
			q.Eq(name, values[0])
		}
		if len(problems) > 0 {
			respondWithError(c, s.logger, &apperror.ValidationError{Fields: problems})
			return
		}

		for _, o := range res.Order {
			q.Order(o.Column, o.Ascending)
		}
		if c.Query("limit") != "" {
			limit, offset := pagination(c, defaultPageSize)
			q.Range(offset, offset+limit-1)
		}

		var rows []Row
		if err := q.Execute(c.Request.Context(), &rows); err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		if rows == nil {
			rows = []Row{}
		}

		c.JSON(http.StatusOK, gin.H{"data": rows})
	}
}

func (s *Server) getRow(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var row Row
		err := s.db(c).From(res.Table).
			Eq(res.Key, c.Param("id")).
			Single(c.Request.Context(), &row)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func (s *Server) createRow(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.requireSession(c)
		if !ok {
			return
		}

		input, err := readInput(c)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		// nested routes fix the parent
		if res.Parent != "" {
			if parentID := c.Param("id"); parentID != "" {
				input[res.ParentKey] = parentID
			}
		}

		row, err := res.Prepare(input, resources.Create)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		var created []Row
		if err := s.db(c).From(res.Table).Insert(c.Request.Context(), row, &created); err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		if len(created) == 0 {
			respondWithError(c, s.logger, errNotFound)
			return
		}

		s.logger.Info().
			Str("resource", res.Name).
			Interface("id", created[0][res.Key]).
			Str("user_id", session.UserID).
			Msg("Row created")

		c.JSON(http.StatusCreated, created[0])
	}
}

func (s *Server) updateRow(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.requireSession(c)
		if !ok {
			return
		}

		input, err := readInput(c)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		row, err := res.Prepare(input, resources.Update)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		var updated []Row
		err = s.db(c).From(res.Table).
			Eq(res.Key, c.Param("id")).
			Update(c.Request.Context(), row, &updated)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		if len(updated) == 0 {
			respondWithError(c, s.logger, errNotFound)
			return
		}

		s.logger.Info().
			Str("resource", res.Name).
			Str("id", c.Param("id")).
			Str("user_id", session.UserID).
			Msg("Row updated")

		c.JSON(http.StatusOK, updated[0])
	}
}

func (s *Server) deleteRow(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.requireSession(c)
		if !ok {
			return
		}

		err := s.db(c).From(res.Table).
			Eq(res.Key, c.Param("id")).
			Delete(c.Request.Context())
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		s.logger.Info().
			Str("resource", res.Name).
			Str("id", c.Param("id")).
			Str("user_id", session.UserID).
			Msg("Row deleted")

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// singleton resources hold one row; the first row found is the one served
func (s *Server) getSingleton(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		var rows []Row
		if err := s.db(c).From(res.Table).Limit(1).Execute(c.Request.Context(), &rows); err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		if len(rows) == 0 {
			c.JSON(http.StatusOK, Row{})
			return
		}
		c.JSON(http.StatusOK, rows[0])
	}
}

func (s *Server) putSingleton(res *resources.Resource) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.requireSession(c)
		if !ok {
			return
		}

		input, err := readInput(c)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}
		row, err := res.Prepare(input, resources.Update)
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		ctx := c.Request.Context()
		db := s.db(c)

		var existing []Row
		if err := db.From(res.Table).Select(res.Key).Limit(1).Execute(ctx, &existing); err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		var saved []Row
		if len(existing) > 0 {
			row[res.Key] = existing[0][res.Key]
			err = db.From(res.Table).Upsert(ctx, row, res.Key, &saved)
		} else {
			err = db.From(res.Table).Insert(ctx, row, &saved)
		}
		if err != nil {
			respondWithError(c, s.logger, err)
			return
		}

		s.logger.Info().
			Str("resource", res.Name).
			Str("user_id", session.UserID).
			Strs("fields", fieldNames(row)).
			Msg("Singleton saved")

		if len(saved) == 0 {
			c.JSON(http.StatusOK, row)
			return
		}
		c.JSON(http.StatusOK, saved[0])
	}
}

func fieldNames(row Row) []string {
	names := make([]string, 0, len(row))
	for k := range row {
		names = append(names, k)
	}
	return names
}
