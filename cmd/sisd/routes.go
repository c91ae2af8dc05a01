package main

import (
	"errors"
	"net/http"
	"time"
	"uthsis-backend/lib/scrapers/sisweb"
	"uthsis-backend/services/sis"

	"github.com/gin-gonic/gin"
)

type gradeJson struct {
	Code            string    `json:"code,omitempty"`
	Title           string    `json:"title"`
	Grade           float64   `json:"grade"`
	Credits         float64   `json:"credits"`
	Period          string    `json:"period,omitempty"`
	AcademicYear    string    `json:"academic_year,omitempty"`
	CourseType      string    `json:"course_type,omitempty"`
	Category        string    `json:"category,omitempty"`
	TrackLabel      string    `json:"track_label,omitempty"`
	GroupLabel      string    `json:"group_label,omitempty"`
	InDegreeAverage bool      `json:"in_degree_average"`
	InDegreeCredits bool      `json:"in_degree_credits"`
	Passed          bool      `json:"passed"`
	ExtractedAt     time.Time `json:"extracted_at"`
}

type snapshotJson struct {
	Username  string      `json:"username"`
	Grades    []gradeJson `json:"grades"`
	FetchedAt time.Time   `json:"fetched_at"`
}

func toSnapshotJson(snapshot sis.Snapshot) snapshotJson {
	grades := make([]gradeJson, len(snapshot.Grades))
	for i, g := range snapshot.Grades {
		grades[i] = gradeJson{
			Code:            g.Code,
			Title:           g.Title,
			Grade:           g.Grade,
			Credits:         g.Credits,
			Period:          g.Period,
			AcademicYear:    g.AcademicYear,
			CourseType:      g.CourseType,
			Category:        g.Category,
			TrackLabel:      g.TrackLabel,
			GroupLabel:      g.GroupLabel,
			InDegreeAverage: g.InDegreeAverage,
			InDegreeCredits: g.InDegreeCredits,
			Passed:          g.Passed,
			ExtractedAt:     g.ExtractedAt,
		}
	}
	return snapshotJson{
		Username:  snapshot.Username,
		Grades:    grades,
		FetchedAt: snapshot.FetchedAt,
	}
}

// every failure class maps to one status code, the frontend renders
// them differently: 401 prompts for credentials again, 404 shows a
// "no data" state, 502 a "try again later" one
func statusForError(err error) int {
	var automation *sisweb.AutomationError
	switch {
	case errors.Is(err, sisweb.ErrInvalidCredentials),
		errors.Is(err, sisweb.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, sisweb.ErrExtractionEmpty):
		return http.StatusNotFound
	case errors.Is(err, sisweb.ErrUpstreamUnavailable), errors.As(err, &automation):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func abortWithError(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{"error": err.Error()})
}

func newRouter(service sis.Service) *gin.Engine {
	r := gin.Default()

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api/sis")
	{
		api.POST("/login", func(c *gin.Context) {
			var req struct {
				Username string `json:"username" binding:"required"`
				Password string `json:"password" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
				return
			}

			id, err := service.Login(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"session_id": id})
		})

		api.POST("/grades", func(c *gin.Context) {
			var req struct {
				SessionId string `json:"session_id" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
				return
			}

			snapshot, err := service.FetchGrades(c.Request.Context(), req.SessionId)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, toSnapshotJson(snapshot))
		})

		api.POST("/grades/browser", func(c *gin.Context) {
			var req struct {
				Username string `json:"username" binding:"required"`
				Password string `json:"password" binding:"required"`
			}
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
				return
			}

			snapshot, err := service.FetchGradesBrowser(c.Request.Context(), req.Username, req.Password)
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, toSnapshotJson(snapshot))
		})

		api.GET("/snapshots/:username", func(c *gin.Context) {
			series, err := service.Snapshots(c.Request.Context(), c.Param("username"))
			if err != nil {
				abortWithError(c, err)
				return
			}
			c.JSON(http.StatusOK, gin.H{"courses": series})
		})
	}

	return r
}
